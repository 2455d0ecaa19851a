package service

import (
	"crypto/rand"
	"encoding/binary"
)

// maxJSONSafeID keeps ids exact when clients parse them as float64.
const maxJSONSafeID = 1<<53 - 1

func newUserID() int64 {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	id := int64(binary.BigEndian.Uint64(buf[:]) & maxJSONSafeID)
	if id == 0 {
		id = 1
	}
	return id
}
