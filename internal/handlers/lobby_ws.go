// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/taleroom/internal/hub"
	"github.com/jason-s-yu/taleroom/internal/lobby"
	"github.com/jason-s-yu/taleroom/internal/metrics"
	"github.com/jason-s-yu/taleroom/internal/middleware"
	"github.com/sirupsen/logrus"
)

const (
	outboundBuffer = 32
	pingInterval   = 30 * time.Second
	writeTimeout   = 5 * time.Second
)

// clientPacket is every client intent. Fields not used by a type are ignored.
type clientPacket struct {
	Type          string `json:"type"`
	GameID        string `json:"gameId"`
	RoomCode      string `json:"roomCode"`
	PlayerName    string `json:"playerName"`
	CharacterName string `json:"characterName"`
	SessionID     string `json:"sessionId"`
	PlayerID      string `json:"playerId"`
}

var errBadID = errors.New("malformed id")

// parseID accepts an empty string as uuid.Nil so the coordinator reports the missing field.
func parseID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errBadID
	}
	return id, nil
}

// LobbyWS serves the lobby websocket: one connection handle per socket, intents
// dispatched to the coordinator in arrival order.
type LobbyWS struct {
	Hub          *hub.Hub
	Coord        *lobby.Coordinator
	Log          *logrus.Logger
	StoreTimeout time.Duration
}

// LobbyWSHandler sets up the lobby WS flow.
func LobbyWSHandler(logger *logrus.Logger, h *hub.Hub, coord *lobby.Coordinator, storeTimeout time.Duration) http.HandlerFunc {
	s := &LobbyWS{Hub: h, Coord: coord, Log: logger, StoreTimeout: storeTimeout}
	return s.ServeHTTP
}

func (s *LobbyWS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"lobby"},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.Log.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != "lobby" {
		c.Close(BadSubprotocolError, "client must speak the lobby subprotocol")
		return
	}

	connID := uuid.NewString()
	log := s.Log.WithField("conn_id", connID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	conn := hub.NewConn(connID, outboundBuffer, cancel)
	s.Hub.Register(conn)
	metrics.LiveConnections.Inc()
	defer metrics.LiveConnections.Dec()
	middleware.LogWebSocketConnect(log, r.RemoteAddr, r.URL.Path)

	go writePump(ctx, c, conn, log)
	readErr := s.readPump(ctx, c, conn, log)

	// The request context is gone by now; cleanup gets its own deadline.
	cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), s.StoreTimeout)
	s.Coord.HandleDisconnect(cleanupCtx, connID)
	cleanupCancel()
	s.Hub.Unregister(connID)
	middleware.LogWebSocketDisconnect(log, r.RemoteAddr, r.URL.Path, readErr)
}

// readPump handles incoming messages until the socket closes. It returns the
// read error unless the close was a normal one.
func (s *LobbyWS) readPump(ctx context.Context, c *websocket.Conn, conn *hub.Conn, log *logrus.Entry) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				return nil
			case errors.Is(err, context.Canceled):
				return nil
			default:
				log.Warnf("read error: %v (CloseStatus: %d)", err, status)
				return err
			}
		}

		if typ != websocket.MessageText {
			log.Warnf("ignoring non-text message type %d", typ)
			continue
		}

		var packet clientPacket
		if err := json.Unmarshal(msg, &packet); err != nil {
			log.Warnf("invalid json: %v", err)
			conn.WriteError("Invalid JSON format")
			continue
		}
		s.handle(ctx, conn, packet, log)
	}
}

// handle runs one intent. Failures become an error event to this connection only.
func (s *LobbyWS) handle(ctx context.Context, conn *hub.Conn, p clientPacket, log *logrus.Entry) {
	var (
		action string
		err    error
	)
	switch p.Type {
	case "inspect_lobby":
		action = "inspect lobby"
		_, err = s.Coord.Inspect(ctx, conn.ID, lobby.Selector{GameID: p.GameID, RoomCode: p.RoomCode})

	case "join_lobby":
		action = "join lobby"
		_, err = s.Coord.Join(ctx, conn.ID, lobby.JoinRequest{
			GameID:        p.GameID,
			RoomCode:      p.RoomCode,
			PlayerName:    p.PlayerName,
			CharacterName: p.CharacterName,
		})

	case "leave_lobby":
		action = "leave lobby"
		var sessionID, playerID uuid.UUID
		if sessionID, err = parseID(p.SessionID); err == nil {
			if playerID, err = parseID(p.PlayerID); err == nil {
				err = s.Coord.Leave(ctx, conn.ID, sessionID, playerID)
			}
		}

	case "start_game":
		action = "start game"
		var sessionID uuid.UUID
		if sessionID, err = parseID(p.SessionID); err == nil {
			err = s.Coord.StartGame(ctx, conn.ID, sessionID)
		}

	case "activity":
		action = "record activity"
		var sessionID uuid.UUID
		if sessionID, err = parseID(p.SessionID); err == nil {
			err = s.Coord.Touch(ctx, sessionID)
		}

	default:
		log.Warnf("unknown action '%s'", p.Type)
		conn.WriteError(fmt.Sprintf("Unknown action type: %s", p.Type))
		return
	}

	if err == nil {
		return
	}
	if errors.Is(err, errBadID) {
		conn.WriteError("Invalid id format")
		return
	}
	log.WithError(err).WithField("type", p.Type).Info("intent rejected")
	conn.WriteError(lobby.ErrorMessage(action, err))
}

// writePump drains the outbound queue and keeps the socket alive with pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *hub.Conn, log *logrus.Entry) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.Close(websocket.StatusGoingAway, "write pump stopping")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				log.Warnf("failed to marshal outgoing msg: %v", err)
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.Warnf("failed to write to websocket: %v", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				log.Warnf("failed to send ping: %v. Assuming disconnect.", err)
				return
			}
		}
	}
}
