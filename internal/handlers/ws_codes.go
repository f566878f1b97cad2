// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the lobby handler.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
)
