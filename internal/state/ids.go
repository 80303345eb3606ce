package state

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/google/uuid"

	"InkBoard/internal/message"
)

// IDSource hands out stroke identifiers.
type IDSource interface {
	NewPathID() message.PathID
}

// UUIDSource issues UUIDv7 identifiers, which sort by creation time.
type UUIDSource struct{}

func (UUIDSource) NewPathID() message.PathID {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the system random source does.
		id = uuid.New()
	}
	return message.PathID(id)
}

// SequenceSource issues predictable identifiers carrying an increasing counter
// in the last eight bytes, prefixed by Site.
type SequenceSource struct {
	Site    uint64
	counter atomic.Uint64
}

func (s *SequenceSource) NewPathID() message.PathID {
	var id message.PathID
	binary.BigEndian.PutUint64(id[:8], s.Site)
	binary.BigEndian.PutUint64(id[8:], s.counter.Add(1))
	return id
}
