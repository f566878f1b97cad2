// internal/lobby/roomcode.go
package lobby

import (
	"context"
	"crypto/rand"
	"fmt"
)

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// maxRoomCodeAttempts bounds retry-until-unique at session creation.
const maxRoomCodeAttempts = 8

// GenerateRoomCode returns an n-character uppercase alphanumeric code.
func GenerateRoomCode(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	// 252 is the largest multiple of 36 below 256; higher bytes are rejected to avoid bias.
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if b >= 252 {
				continue
			}
			out = append(out, roomCodeAlphabet[int(b)%len(roomCodeAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// codeSource produces candidate room codes. Swapped in tests to force collisions.
type codeSource func(n int) (string, error)

// uniqueRoomCode draws codes until one is not used by an existing session.
func uniqueRoomCode(ctx context.Context, store Store, gen codeSource, n int) (string, error) {
	for i := 0; i < maxRoomCodeAttempts; i++ {
		code, err := gen(n)
		if err != nil {
			return "", err
		}
		taken, err := store.RoomCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check room code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrNoRoomCode
}
