package utils

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/google/uuid"
)

// Process wide counter for broadcast listener registrations.
var next_id uint64

func NextId() uint64 {
	return atomic.AddUint64(&next_id, 1)
}

// GetGUID returns a positive random 62 bit id. Used for result ids
// minted on the server before the row reaches durable storage.
func GetGUID() int64 {
	u := uuid.New()
	return int64(binary.BigEndian.Uint64(u[0:8]) >> 2)
}
