// internal/lobby/coordinator.go
package lobby

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/taleroom/internal/hub"
	"github.com/jason-s-yu/taleroom/internal/metrics"
	"github.com/jason-s-yu/taleroom/internal/models"
	"github.com/sirupsen/logrus"
)

// Broadcaster is the transport surface the coordinator needs: named groups plus
// emit-to-one and emit-to-group.
type Broadcaster interface {
	Join(connID, group string)
	Leave(connID, group string)
	EmitTo(connID string, msg hub.Message)
	EmitGroup(group string, msg hub.Message)
}

// Options tunes the coordinator.
type Options struct {
	RoomCodeLength    int
	DefaultMaxPlayers int
	Countdown         time.Duration
	StartRequiresHost bool
	// StoreTimeout bounds store calls made outside a caller's context.
	StoreTimeout time.Duration
}

// DefaultOptions matches the observed production policy.
func DefaultOptions() Options {
	return Options{
		RoomCodeLength:    4,
		DefaultMaxPlayers: 5,
		Countdown:         5 * time.Second,
		StoreTimeout:      5 * time.Second,
	}
}

// Selector picks a session by room code (any status) or by game (waiting only).
type Selector struct {
	GameID   string
	RoomCode string
}

// JoinRequest is the join intent. RoomCode wins over GameID when both are set.
type JoinRequest struct {
	GameID        string
	RoomCode      string
	PlayerName    string
	CharacterName string
}

// InspectResult is the lobby_info reply.
type InspectResult struct {
	Exists  bool            `json:"exists"`
	Session *models.Session `json:"session,omitempty"`
	Players []models.Player `json:"players,omitempty"`
}

// JoinResult is the joined_lobby reply.
type JoinResult struct {
	SessionID uuid.UUID       `json:"sessionId"`
	RoomCode  string          `json:"roomCode"`
	PlayerID  uuid.UUID       `json:"playerId"`
	Players   []models.Player `json:"players"`
	IsHost    bool            `json:"isHost"`
}

// seat ties a connection to one player row.
type seat struct {
	sessionID uuid.UUID
	playerID  uuid.UUID
}

// Coordinator runs the session lifecycle. It holds no session state between calls:
// every operation re-reads the store. The only in-memory state is the connection
// index used on disconnect and the pending auto-start countdowns.
type Coordinator struct {
	store Store
	defs  DefinitionProvider
	bc    Broadcaster
	log   *logrus.Logger
	opts  Options

	genCode    codeSource
	countdowns *countdowns
	now        func() time.Time

	seatsMu sync.Mutex
	seats   map[string][]seat
}

// NewCoordinator wires a coordinator. Zero option fields take their defaults.
func NewCoordinator(store Store, defs DefinitionProvider, bc Broadcaster, logger *logrus.Logger, opts Options) *Coordinator {
	def := DefaultOptions()
	if opts.RoomCodeLength == 0 {
		opts.RoomCodeLength = def.RoomCodeLength
	}
	if opts.DefaultMaxPlayers == 0 {
		opts.DefaultMaxPlayers = def.DefaultMaxPlayers
	}
	if opts.Countdown == 0 {
		opts.Countdown = def.Countdown
	}
	if opts.StoreTimeout == 0 {
		opts.StoreTimeout = def.StoreTimeout
	}
	return &Coordinator{
		store:      store,
		defs:       defs,
		bc:         bc,
		log:        logger,
		opts:       opts,
		genCode:    GenerateRoomCode,
		countdowns: newCountdowns(realScheduler),
		now:        time.Now,
		seats:      make(map[string][]seat),
	}
}

// Close stops pending countdowns.
func (c *Coordinator) Close() {
	c.countdowns.stopAll()
}

// group is the broadcast group name for a session.
func group(sessionID uuid.UUID) string {
	return sessionID.String()
}

// Inspect resolves sel and replies lobby_info to connID. No side effects on the store.
func (c *Coordinator) Inspect(ctx context.Context, connID string, sel Selector) (*InspectResult, error) {
	var (
		sess *models.Session
		err  error
	)
	switch {
	case sel.RoomCode != "":
		sess, err = c.store.GetSessionByCode(ctx, sel.RoomCode)
	case sel.GameID != "":
		sess, err = c.store.GetWaitingSession(ctx, sel.GameID)
	default:
		return nil, ErrMissingSelector
	}

	res := &InspectResult{}
	switch {
	case errors.Is(err, models.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("inspect session: %w", err)
	default:
		players, err := c.store.ListPlayers(ctx, sess.ID)
		if err != nil {
			return nil, fmt.Errorf("inspect players: %w", err)
		}
		res = &InspectResult{Exists: true, Session: sess, Players: players}
	}

	msg := hub.Message{"type": "lobby_info", "exists": res.Exists}
	if res.Exists {
		msg["session"] = res.Session
		msg["players"] = res.Players
	}
	c.bc.EmitTo(connID, msg)
	return res, nil
}

// Join seats a player in the resolved session, broadcasts the new lobby state,
// replies joined_lobby to connID and then runs the auto-start check.
func (c *Coordinator) Join(ctx context.Context, connID string, req JoinRequest) (*JoinResult, error) {
	if req.CharacterName == "" {
		metrics.JoinsRejected.WithLabelValues("missing_input").Inc()
		return nil, ErrMissingCharacter
	}
	if req.PlayerName == "" {
		metrics.JoinsRejected.WithLabelValues("missing_input").Inc()
		return nil, ErrMissingName
	}
	if req.RoomCode == "" && req.GameID == "" {
		metrics.JoinsRejected.WithLabelValues("missing_input").Inc()
		return nil, ErrMissingSelector
	}

	log := c.log.WithFields(logrus.Fields{"conn_id": connID, "game_id": req.GameID, "room_code": req.RoomCode})
	log.Infof("player %s joining as %s", req.PlayerName, req.CharacterName)

	sess, err := c.resolveForJoin(ctx, req)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			metrics.JoinsRejected.WithLabelValues("not_found").Inc()
		}
		return nil, err
	}
	log = log.WithField("session_id", sess.ID)

	// Fast path only: the store constraint is the real guard.
	existing, err := c.store.ListPlayers(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}
	if models.HasCharacter(existing, req.CharacterName) {
		metrics.JoinsRejected.WithLabelValues("character_taken").Inc()
		return nil, &CharacterTakenError{Character: req.CharacterName}
	}

	player := &models.Player{
		SessionID: sess.ID,
		Name:      req.PlayerName,
		Character: req.CharacterName,
		ConnID:    connID,
		Status:    models.PlayerConnected,
	}
	if err := c.store.InsertPlayer(ctx, player); err != nil {
		if errors.Is(err, models.ErrCharacterTaken) {
			metrics.JoinsRejected.WithLabelValues("character_taken").Inc()
			return nil, &CharacterTakenError{Character: req.CharacterName}
		}
		return nil, fmt.Errorf("insert player: %w", err)
	}
	metrics.JoinsAccepted.Inc()

	c.addSeat(connID, seat{sessionID: sess.ID, playerID: player.ID})
	c.bc.Join(connID, group(sess.ID))

	if err := c.store.TouchSession(ctx, sess.ID, c.now()); err != nil {
		log.WithError(err).Warn("failed to bump session activity")
	}

	players, err := c.store.ListPlayers(ctx, sess.ID)
	if err != nil {
		// The insert stands; the next inspect will show the seat.
		return nil, fmt.Errorf("reload players: %w", err)
	}
	host, _ := models.EarliestPlayer(players)

	c.bc.EmitGroup(group(sess.ID), hub.Message{
		"type":         "lobby_update",
		"sessionId":    sess.ID,
		"roomCode":     sess.RoomCode,
		"players":      players,
		"hostPlayerId": host.ID,
	})

	res := &JoinResult{
		SessionID: sess.ID,
		RoomCode:  sess.RoomCode,
		PlayerID:  player.ID,
		Players:   players,
		IsHost:    host.ID == player.ID,
	}
	c.bc.EmitTo(connID, hub.Message{
		"type":      "joined_lobby",
		"sessionId": res.SessionID,
		"roomCode":  res.RoomCode,
		"playerId":  res.PlayerID,
		"players":   res.Players,
		"isHost":    res.IsHost,
	})
	log.WithField("player_id", player.ID).Infof("joined, %d players in session", len(players))

	c.checkAutoStart(ctx, sess, len(players))
	return res, nil
}

// resolveForJoin finds the target session, creating a waiting one for a game if needed.
func (c *Coordinator) resolveForJoin(ctx context.Context, req JoinRequest) (*models.Session, error) {
	if req.RoomCode != "" {
		sess, err := c.store.GetSessionByCode(ctx, req.RoomCode)
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrInvalidRoomCode
		}
		if err != nil {
			return nil, fmt.Errorf("find session by code: %w", err)
		}
		return sess, nil
	}

	sess, err := c.store.GetWaitingSession(ctx, req.GameID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("find waiting session: %w", err)
	}
	return c.createSession(ctx, req.GameID)
}

// createSession inserts a waiting session with a fresh room code. A concurrent
// creator for the same game wins; its session is returned instead.
func (c *Coordinator) createSession(ctx context.Context, gameID string) (*models.Session, error) {
	for i := 0; i < maxRoomCodeAttempts; i++ {
		code, err := uniqueRoomCode(ctx, c.store, c.genCode, c.opts.RoomCodeLength)
		if err != nil {
			return nil, err
		}
		sess := &models.Session{GameID: gameID, RoomCode: code, Status: models.SessionWaiting}
		err = c.store.CreateSession(ctx, sess)
		switch {
		case err == nil:
			metrics.SessionsCreated.Inc()
			c.log.WithFields(logrus.Fields{"session_id": sess.ID, "game_id": gameID, "room_code": code}).Info("created session")
			return sess, nil
		case errors.Is(err, models.ErrRoomCodeTaken):
			continue
		case errors.Is(err, models.ErrWaitingSessionExists):
			sess, err := c.store.GetWaitingSession(ctx, gameID)
			if err != nil {
				return nil, fmt.Errorf("find concurrent waiting session: %w", err)
			}
			return sess, nil
		default:
			return nil, fmt.Errorf("create session: %w", err)
		}
	}
	return nil, ErrNoRoomCode
}

// Leave removes playerID from sessionID on behalf of connID and acknowledges it.
// Repeating a leave only re-sends the ack.
func (c *Coordinator) Leave(ctx context.Context, connID string, sessionID, playerID uuid.UUID) error {
	if sessionID == uuid.Nil {
		return ErrMissingSession
	}
	n, err := c.store.DeletePlayer(ctx, playerID)
	if err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	// the connection stays in the group while it holds another seat there
	if !c.removeSeat(connID, playerID, sessionID) {
		c.bc.Leave(connID, group(sessionID))
	}

	if n > 0 {
		if err := c.afterRemoval(ctx, sessionID); err != nil {
			return err
		}
	}
	c.bc.EmitTo(connID, hub.Message{"type": "left_lobby", "sessionId": sessionID})
	return nil
}

// HandleDisconnect removes every seat held by connID. Errors are logged only.
func (c *Coordinator) HandleDisconnect(ctx context.Context, connID string) {
	log := c.log.WithField("conn_id", connID)

	seats := c.takeSeats(connID)
	if len(seats) == 0 {
		players, err := c.store.ListPlayersByConn(ctx, connID)
		if err != nil {
			log.WithError(err).Warn("disconnect lookup failed")
			return
		}
		for _, p := range players {
			seats = append(seats, seat{sessionID: p.SessionID, playerID: p.ID})
		}
	}
	if len(seats) == 0 {
		return
	}

	for _, s := range seats {
		slog := log.WithFields(logrus.Fields{"session_id": s.sessionID, "player_id": s.playerID})
		n, err := c.store.DeletePlayer(ctx, s.playerID)
		if err != nil {
			slog.WithError(err).Warn("disconnect cleanup: delete player failed")
			continue
		}
		c.bc.Leave(connID, group(s.sessionID))
		if n == 0 {
			continue
		}
		if err := c.afterRemoval(ctx, s.sessionID); err != nil {
			slog.WithError(err).Warn("disconnect cleanup failed")
			continue
		}
		slog.Info("player removed on disconnect")
	}
}

// afterRemoval deletes an emptied session or broadcasts the reduced player list.
func (c *Coordinator) afterRemoval(ctx context.Context, sessionID uuid.UUID) error {
	remaining, err := c.store.ListPlayers(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("reload players: %w", err)
	}
	if len(remaining) == 0 {
		if err := c.store.DeleteSession(ctx, sessionID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		c.countdowns.stop(sessionID)
		metrics.SessionsDeleted.WithLabelValues(metrics.ReasonEmpty).Inc()
		c.log.WithField("session_id", sessionID).Info("session deleted, no remaining players")
		return nil
	}
	host, _ := models.EarliestPlayer(remaining)
	c.bc.EmitGroup(group(sessionID), hub.Message{
		"type":         "lobby_update",
		"sessionId":    sessionID,
		"players":      remaining,
		"hostPlayerId": host.ID,
	})
	return nil
}

// StartGame flips the session to playing and broadcasts game_started. With
// StartRequiresHost set, connID must hold the host seat.
func (c *Coordinator) StartGame(ctx context.Context, connID string, sessionID uuid.UUID) error {
	if sessionID == uuid.Nil {
		return ErrMissingSession
	}
	if c.opts.StartRequiresHost {
		players, err := c.store.ListPlayers(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("load players: %w", err)
		}
		host, ok := models.EarliestPlayer(players)
		if !ok || host.ConnID != connID {
			return ErrNotHost
		}
	}

	sess, err := c.store.SetSessionStatus(ctx, sessionID, models.SessionPlaying)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	c.countdowns.stop(sessionID)
	c.log.WithFields(logrus.Fields{"session_id": sessionID, "conn_id": connID}).Info("game started")
	c.bc.EmitGroup(group(sessionID), hub.Message{
		"type":      "game_started",
		"sessionId": sessionID,
		"gameId":    sess.GameID,
	})
	return nil
}

// Touch records activity on a session so the reaper keeps it.
func (c *Coordinator) Touch(ctx context.Context, sessionID uuid.UUID) error {
	if sessionID == uuid.Nil {
		return ErrMissingSession
	}
	if err := c.store.TouchSession(ctx, sessionID, c.now()); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// checkAutoStart starts a countdown when the lobby has reached the game's roster size.
func (c *Coordinator) checkAutoStart(ctx context.Context, sess *models.Session, count int) {
	log := c.log.WithFields(logrus.Fields{"session_id": sess.ID, "game_id": sess.GameID})

	def, err := c.defs.LoadDefinition(ctx, sess.GameID)
	if err != nil {
		log.WithError(err).Warn("auto-start check failed")
		return
	}
	maxPlayers := def.MaxPlayers(c.opts.DefaultMaxPlayers)
	if count < maxPlayers {
		return
	}

	c.bc.EmitGroup(group(sess.ID), hub.Message{
		"type":     "start_timer",
		"duration": int(math.Ceil(c.opts.Countdown.Seconds())),
	})
	metrics.CountdownsScheduled.Inc()
	if c.countdowns.schedule(sess.ID, c.opts.Countdown, func() {
		c.finishCountdown(sess.ID, sess.GameID, maxPlayers)
	}) {
		log.Debug("replaced pending countdown")
	}
	log.Infof("lobby full (%d/%d), countdown started", count, maxPlayers)
}

// finishCountdown re-validates occupancy and starts the game if the lobby is still full.
func (c *Coordinator) finishCountdown(sessionID uuid.UUID, gameID string, maxPlayers int) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.StoreTimeout)
	defer cancel()
	log := c.log.WithFields(logrus.Fields{"session_id": sessionID, "game_id": gameID})

	count, err := c.store.CountPlayers(ctx, sessionID)
	if err != nil {
		log.WithError(err).Warn("countdown re-check failed")
		return
	}
	if count < maxPlayers {
		log.Infof("countdown ended with %d/%d players, not starting", count, maxPlayers)
		return
	}
	if _, err := c.store.SetSessionStatus(ctx, sessionID, models.SessionPlaying); err != nil {
		log.WithError(err).Warn("auto-start status update failed")
		return
	}
	metrics.AutoStartsFired.Inc()
	c.bc.EmitGroup(group(sessionID), hub.Message{
		"type":      "game_started",
		"sessionId": sessionID,
		"gameId":    gameID,
	})
	log.Info("auto-started game")
}

func (c *Coordinator) addSeat(connID string, s seat) {
	c.seatsMu.Lock()
	defer c.seatsMu.Unlock()
	c.seats[connID] = append(c.seats[connID], s)
}

// removeSeat drops playerID from connID's seats and reports whether connID
// still holds a seat in sessionID.
func (c *Coordinator) removeSeat(connID string, playerID, sessionID uuid.UUID) bool {
	c.seatsMu.Lock()
	defer c.seatsMu.Unlock()
	list := c.seats[connID]
	for i, s := range list {
		if s.playerID == playerID {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(c.seats, connID)
		return false
	}
	c.seats[connID] = list
	for _, s := range list {
		if s.sessionID == sessionID {
			return true
		}
	}
	return false
}

func (c *Coordinator) takeSeats(connID string) []seat {
	c.seatsMu.Lock()
	defer c.seatsMu.Unlock()
	s := c.seats[connID]
	delete(c.seats, connID)
	return s
}
