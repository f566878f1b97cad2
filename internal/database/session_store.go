package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/taleroom/internal/models"
)

// SessionStore is the Postgres session store. Uniqueness rules live in the schema.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

const sessionColumns = `id, room_code, game_id, status, created_at, last_activity`

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	if err := row.Scan(&s.ID, &s.RoomCode, &s.GameID, &s.Status, &s.CreatedAt, &s.LastActivity); err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (s *SessionStore) GetSessionByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	return scanSession(s.pool.QueryRow(ctx, q, id))
}

func (s *SessionStore) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE room_code = $1`
	return scanSession(s.pool.QueryRow(ctx, q, code))
}

// GetWaitingSession returns the game's waiting session, newest first if the
// partial index was ever bypassed.
func (s *SessionStore) GetWaitingSession(ctx context.Context, gameID string) (*models.Session, error) {
	q := `
	SELECT ` + sessionColumns + `
	FROM sessions
	WHERE game_id = $1 AND status = 'waiting'
	ORDER BY created_at DESC
	LIMIT 1
	`
	return scanSession(s.pool.QueryRow(ctx, q, gameID))
}

func (s *SessionStore) RoomCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE room_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, translate(err)
	}
	return exists, nil
}

// CreateSession inserts sess, filling ID and timestamps.
func (s *SessionStore) CreateSession(ctx context.Context, sess *models.Session) error {
	if sess.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate session id: %w", err)
		}
		sess.ID = id
	}
	q := `
	INSERT INTO sessions (id, room_code, game_id, status)
	VALUES ($1, $2, $3, $4)
	RETURNING created_at, last_activity
	`
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q, sess.ID, sess.RoomCode, sess.GameID, sess.Status).
			Scan(&sess.CreatedAt, &sess.LastActivity)
	})
	return translate(err)
}

func (s *SessionStore) SetSessionStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus) (*models.Session, error) {
	q := `
	UPDATE sessions
	SET status = $1, last_activity = now()
	WHERE id = $2
	RETURNING ` + sessionColumns
	var out *models.Session
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var err error
		out, err = scanSession(tx.QueryRow(ctx, q, status, id))
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *SessionStore) TouchSession(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE sessions SET last_activity = $1 WHERE id = $2`, at, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteSession removes the session; players cascade.
func (s *SessionStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return translate(err)
}

const playerColumns = `id, session_id, name, character_name, socket_id, status, created_at`

func collectPlayers(rows pgx.Rows) ([]models.Player, error) {
	defer rows.Close()
	var out []models.Player
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Name, &p.Character, &p.ConnID, &p.Status, &p.CreatedAt); err != nil {
			return nil, translate(err)
		}
		out = append(out, p)
	}
	return out, translate(rows.Err())
}

// ListPlayers returns the session's players in creation order.
func (s *SessionStore) ListPlayers(ctx context.Context, sessionID uuid.UUID) ([]models.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM players WHERE session_id = $1 ORDER BY created_at, seq`
	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, translate(err)
	}
	return collectPlayers(rows)
}

func (s *SessionStore) CountPlayers(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM players WHERE session_id = $1`, sessionID).Scan(&n); err != nil {
		return 0, translate(err)
	}
	return n, nil
}

// InsertPlayer inserts p, filling ID and CreatedAt. A taken character surfaces as
// models.ErrCharacterTaken from the unique constraint.
func (s *SessionStore) InsertPlayer(ctx context.Context, p *models.Player) error {
	if p.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate player id: %w", err)
		}
		p.ID = id
	}
	if p.Status == "" {
		p.Status = models.PlayerConnected
	}
	q := `
	INSERT INTO players (id, session_id, name, character_name, socket_id, status)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING created_at
	`
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q, p.ID, p.SessionID, p.Name, p.Character, p.ConnID, p.Status).Scan(&p.CreatedAt)
	})
	return translate(err)
}

func (s *SessionStore) DeletePlayer(ctx context.Context, playerID uuid.UUID) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM players WHERE id = $1`, playerID)
	if err != nil {
		return 0, translate(err)
	}
	return tag.RowsAffected(), nil
}

func (s *SessionStore) ListPlayersByConn(ctx context.Context, connID string) ([]models.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM players WHERE socket_id = $1 ORDER BY created_at, seq`
	rows, err := s.pool.Query(ctx, q, connID)
	if err != nil {
		return nil, translate(err)
	}
	return collectPlayers(rows)
}

// DeleteInactiveSessions removes sessions idle since before cutoff, any status.
// A schema without last_activity yields models.ErrUnsupported.
func (s *SessionStore) DeleteInactiveSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE last_activity < $1`, cutoff)
	if err != nil {
		return 0, translate(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteStaleWaitingSessions removes waiting sessions created before cutoff.
func (s *SessionStore) DeleteStaleWaitingSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE status = 'waiting' AND created_at < $1`, cutoff)
	if err != nil {
		return 0, translate(err)
	}
	return tag.RowsAffected(), nil
}
