package room

import (
	crand "crypto/rand"
	"math/big"
	"math/rand"
	"strings"
)

const (
	// RoomIDLength is the length of generated room ids.
	RoomIDLength = 6
	// roomIDChars leaves out look-alikes (0/O, 1/I/L).
	roomIDChars = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

	maxRoomIDAttempts = 10
	maxRoomIDLen      = 64
)

// NewRoomID returns a random room id.
func NewRoomID() string {
	id := make([]byte, RoomIDLength)
	for i := range id {
		n, err := crand.Int(crand.Reader, big.NewInt(int64(len(roomIDChars))))
		if err != nil {
			id[i] = roomIDChars[rand.Intn(len(roomIDChars))]
			continue
		}
		id[i] = roomIDChars[n.Int64()]
	}
	return string(id)
}

// ValidRoomID reports whether id is usable as a room key: non-empty,
// bounded, and made of letters, digits, '-' or '_'.
func ValidRoomID(id string) bool {
	if id == "" || len(id) > maxRoomIDLen {
		return false
	}
	return strings.IndexFunc(id, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_')
	}) < 0
}
