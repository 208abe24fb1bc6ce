// Package domain defines the data model shared by the session registry,
// history manager, raster engine and transports.
package domain

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const roomCodeLength = 6

// Room is the wire-level snapshot of a collaboration session: its code and
// member list in join order. The authoritative mutable state lives in the
// session registry.
type Room struct {
	Code    string   `json:"code"`
	Members []Member `json:"members"`
}

// NormalizeRoomCode maps a room code to its canonical form. Codes compare
// case-insensitively.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewRoomCode generates a random 6-character room code from A-Z0-9.
func NewRoomCode() (string, error) {
	const letters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, roomCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate room code: %w", err)
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return string(b), nil
}
