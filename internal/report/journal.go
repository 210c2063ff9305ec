// Package report delivers transfer outcomes to destinations outside the
// process log: a local journal and a broker topic.
package report

import (
	"context"

	"github.com/eigerco/blocktransfer/internal/transfer"
)

// Journal stores outcomes.
type Journal interface {
	Put(outcome transfer.Outcome) error
}

// JournalSink writes every outcome to a Journal.
type JournalSink struct {
	journal Journal
}

var _ transfer.Sink = (*JournalSink)(nil)

func NewJournalSink(journal Journal) *JournalSink {
	return &JournalSink{journal: journal}
}

func (s *JournalSink) Record(_ context.Context, outcome transfer.Outcome) error {
	return s.journal.Put(outcome)
}
