// internal/lobby/memory_store.go
package lobby

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/taleroom/internal/models"
)

// MemoryStore is an in-process Store. It mirrors the Postgres constraints:
// unique room codes, one waiting session per game, unique (session, character).
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.Session
	players  []*models.Player // creation order
	last     time.Time

	now func() time.Time

	// AllowDuplicateCharacters drops the (session, character) constraint so only
	// the coordinator's pre-check guards uniqueness.
	AllowDuplicateCharacters bool
	// NoLastActivity makes DeleteInactiveSessions fail with models.ErrUnsupported.
	NoLastActivity bool
	// BeforeInsertPlayer runs outside the lock before every insert.
	BeforeInsertPlayer func(p models.Player)
}

// NewMemoryStore returns an empty store using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[uuid.UUID]*models.Session),
		now:      time.Now,
	}
}

// SetClock overrides the time source.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// stamp returns a strictly increasing timestamp so creation order is total. Lock held.
func (s *MemoryStore) stamp() time.Time {
	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}

func (s *MemoryStore) GetSessionByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) GetSessionByCode(_ context.Context, code string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.RoomCode == code {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *MemoryStore) GetWaitingSession(_ context.Context, gameID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.waitingLocked(gameID); sess != nil {
		cp := *sess
		return &cp, nil
	}
	return nil, models.ErrNotFound
}

func (s *MemoryStore) waitingLocked(gameID string) *models.Session {
	for _, sess := range s.sessions {
		if sess.GameID == gameID && sess.Status == models.SessionWaiting {
			return sess
		}
	}
	return nil
}

func (s *MemoryStore) RoomCodeExists(ctx context.Context, code string) (bool, error) {
	_, err := s.GetSessionByCode(ctx, code)
	if err == models.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (s *MemoryStore) CreateSession(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions {
		if existing.RoomCode == sess.RoomCode {
			return models.ErrRoomCodeTaken
		}
	}
	if sess.Status == models.SessionWaiting && s.waitingLocked(sess.GameID) != nil {
		return models.ErrWaitingSessionExists
	}
	sess.ID = uuid.New()
	sess.CreatedAt = s.stamp()
	sess.LastActivity = sess.CreatedAt
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *MemoryStore) SetSessionStatus(_ context.Context, id uuid.UUID, status models.SessionStatus) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	sess.Status = status
	sess.LastActivity = s.stamp()
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) TouchSession(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return models.ErrNotFound
	}
	sess.LastActivity = at
	return nil
}

// SetLastActivity is a test helper that backdates a session.
func (s *MemoryStore) SetLastActivity(id uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.LastActivity = at
	}
}

// SetCreatedAt is a test helper that backdates a session's creation time.
func (s *MemoryStore) SetCreatedAt(id uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.CreatedAt = at
	}
}

func (s *MemoryStore) DeleteSession(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteSessionLocked(id)
	return nil
}

// deleteSessionLocked removes the session and cascades to its players.
func (s *MemoryStore) deleteSessionLocked(id uuid.UUID) {
	delete(s.sessions, id)
	kept := s.players[:0]
	for _, p := range s.players {
		if p.SessionID != id {
			kept = append(kept, p)
		}
	}
	s.players = kept
}

// Sessions returns a snapshot of every session, for tests and debugging.
func (s *MemoryStore) Sessions() []models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	return out
}

func (s *MemoryStore) ListPlayers(_ context.Context, sessionID uuid.UUID) ([]models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Player
	for _, p := range s.players {
		if p.SessionID == sessionID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *MemoryStore) CountPlayers(ctx context.Context, sessionID uuid.UUID) (int, error) {
	players, err := s.ListPlayers(ctx, sessionID)
	return len(players), err
}

func (s *MemoryStore) InsertPlayer(_ context.Context, p *models.Player) error {
	if s.BeforeInsertPlayer != nil {
		s.BeforeInsertPlayer(*p)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[p.SessionID]; !ok {
		return models.ErrNotFound
	}
	if !s.AllowDuplicateCharacters {
		for _, existing := range s.players {
			if existing.SessionID == p.SessionID && existing.Character == p.Character {
				return models.ErrCharacterTaken
			}
		}
	}
	p.ID = uuid.New()
	p.CreatedAt = s.stamp()
	if p.Status == "" {
		p.Status = models.PlayerConnected
	}
	cp := *p
	s.players = append(s.players, &cp)
	return nil
}

func (s *MemoryStore) DeletePlayer(_ context.Context, playerID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.players {
		if p.ID == playerID {
			s.players = append(s.players[:i], s.players[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (s *MemoryStore) ListPlayersByConn(_ context.Context, connID string) ([]models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Player
	for _, p := range s.players {
		if p.ConnID == connID {
			out = append(out, *p)
		}
	}
	return out, nil
}

// DeleteInactiveSessions removes every session whose last activity is before cutoff.
func (s *MemoryStore) DeleteInactiveSessions(_ context.Context, cutoff time.Time) (int64, error) {
	if s.NoLastActivity {
		return 0, models.ErrUnsupported
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			s.deleteSessionLocked(id)
			n++
		}
	}
	return n, nil
}

// DeleteStaleWaitingSessions removes waiting sessions created before cutoff.
func (s *MemoryStore) DeleteStaleWaitingSessions(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if sess.Status == models.SessionWaiting && sess.CreatedAt.Before(cutoff) {
			s.deleteSessionLocked(id)
			n++
		}
	}
	return n, nil
}
