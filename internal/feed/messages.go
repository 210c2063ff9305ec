// Package feed implements the block feed protocol: the message variants a
// validator streams to subscribers, their binary encoding and a framed duplex
// connection carrying them.
package feed

import (
	"fmt"
	"time"

	"github.com/mr-tron/base58"
)

// Commitment is the durability level requested for block updates.
type Commitment uint8

const (
	CommitmentProcessed Commitment = iota
	CommitmentConfirmed
	CommitmentFinalized
)

func (c Commitment) String() string {
	switch c {
	case CommitmentProcessed:
		return "processed"
	case CommitmentConfirmed:
		return "confirmed"
	case CommitmentFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("commitment(%d)", uint8(c))
	}
}

// Filter selects which update kinds the server streams. It is a bitmask.
type Filter uint8

const (
	FilterBlocks Filter = 1 << iota
)

// Update is a message received from the feed server. The set of
// implementations is closed: BlockUpdate, Ping, Pong and Unrecognized.
type Update interface {
	isUpdate()
}

// BlockUpdate announces a block.
type BlockUpdate struct {
	Slot       uint64
	ParentSlot uint64
	Hash       [32]byte
	BlockTime  int64 // unix seconds, 0 when unknown
}

func (BlockUpdate) isUpdate() {}

// HashString is the base-58 rendering of the block hash.
func (b BlockUpdate) HashString() string {
	return base58.Encode(b.Hash[:])
}

// Time is the block time, zero when the server did not provide one.
func (b BlockUpdate) Time() time.Time {
	if b.BlockTime == 0 {
		return time.Time{}
	}
	return time.Unix(b.BlockTime, 0).UTC()
}

// Ping asks the receiver to answer with a Pong carrying the same ID.
type Ping struct {
	ID uint32
}

func (Ping) isUpdate()  {}
func (Ping) isRequest() {}

// Pong answers a Ping.
type Pong struct {
	ID uint32
}

func (Pong) isUpdate()  {}
func (Pong) isRequest() {}

// Unrecognized is a message without a payload the client understands.
type Unrecognized struct {
	Tag byte // 0 for an empty payload
}

func (Unrecognized) isUpdate() {}

// Request is a message sent by the client: SubscribeRequest, Ping or Pong.
type Request interface {
	isRequest()
}

// SubscribeRequest opens the subscription. Token authenticates the client
// and may be empty.
type SubscribeRequest struct {
	Commitment Commitment
	Filter     Filter
	Token      string
}

func (SubscribeRequest) isRequest() {}
