package transfer

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/eigerco/blocktransfer/internal/ledger"
)

// Request asks for one native transfer. It is immutable once built; the
// sender secret is kept private and never printed.
type Request struct {
	id           uuid.UUID
	senderSecret string
	recipient    string
	amount       uint64
}

// NewRequest builds a request with a fresh attempt id. amount is in lamports.
func NewRequest(senderSecret, recipient string, amount uint64) Request {
	return Request{
		id:           uuid.New(),
		senderSecret: senderSecret,
		recipient:    recipient,
		amount:       amount,
	}
}

func (r Request) ID() uuid.UUID     { return r.id }
func (r Request) Recipient() string { return r.recipient }
func (r Request) Amount() uint64    { return r.amount }

func (r Request) String() string {
	return fmt.Sprintf("transfer %s of %s SOL to %s", r.id, ledger.FormatSOL(r.amount), r.recipient)
}
