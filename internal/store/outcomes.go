package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/eigerco/blocktransfer/internal/transfer"
	"github.com/eigerco/blocktransfer/pkg/db"
	"github.com/eigerco/blocktransfer/pkg/db/pebble"
)

var (
	ErrJournalClosed   = errors.New("outcome journal is closed")
	ErrOutcomeNotFound = errors.New("outcome not found")
)

const (
	prefixOutcome byte = 0x01 // finished-at || attempt id -> outcome JSON
	prefixAttempt byte = 0x02 // attempt id -> outcome key
)

// Outcomes journals transfer outcomes, ordered by completion time.
type Outcomes struct {
	db     db.KVStore
	closed atomic.Bool
}

func NewOutcomes(db db.KVStore) *Outcomes {
	return &Outcomes{db: db}
}

// Put stores one outcome. Storing the same attempt twice replaces the
// earlier entry.
func (o *Outcomes) Put(outcome transfer.Outcome) error {
	if o.closed.Load() {
		return ErrJournalClosed
	}

	value, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	batch := o.db.NewBatch()
	defer batch.Close()

	key := outcomeKey(outcome)
	index := attemptKey(outcome.AttemptID)
	previous, err := o.db.Get(index)
	switch {
	case err == nil:
		if err := batch.Delete(previous); err != nil {
			return fmt.Errorf("drop previous outcome: %w", err)
		}
	case !errors.Is(err, pebble.ErrNotFound):
		return fmt.Errorf("lookup attempt: %w", err)
	}

	if err := batch.Put(key, value); err != nil {
		return fmt.Errorf("store outcome: %w", err)
	}
	if err := batch.Put(index, key); err != nil {
		return fmt.Errorf("store attempt index: %w", err)
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Get returns the outcome of one attempt.
func (o *Outcomes) Get(id uuid.UUID) (transfer.Outcome, error) {
	if o.closed.Load() {
		return transfer.Outcome{}, ErrJournalClosed
	}

	key, err := o.db.Get(attemptKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return transfer.Outcome{}, fmt.Errorf("%w: %s", ErrOutcomeNotFound, id)
		}
		return transfer.Outcome{}, fmt.Errorf("lookup attempt: %w", err)
	}
	value, err := o.db.Get(key)
	if err != nil {
		return transfer.Outcome{}, fmt.Errorf("get outcome %s: %w", id, err)
	}
	var outcome transfer.Outcome
	if err := json.Unmarshal(value, &outcome); err != nil {
		return transfer.Outcome{}, fmt.Errorf("unmarshal outcome %s: %w", id, err)
	}
	return outcome, nil
}

// List returns every journaled outcome, oldest first.
func (o *Outcomes) List() ([]transfer.Outcome, error) {
	if o.closed.Load() {
		return nil, ErrJournalClosed
	}

	iter, err := o.db.NewIterator([]byte{prefixOutcome}, []byte{prefixOutcome + 1})
	if err != nil {
		return nil, fmt.Errorf("create iterator: %w", err)
	}
	defer iter.Close()

	var outcomes []transfer.Outcome
	for iter.Next() {
		value, err := iter.Value()
		if err != nil {
			return nil, fmt.Errorf("read outcome: %w", err)
		}
		var outcome transfer.Outcome
		if err := json.Unmarshal(value, &outcome); err != nil {
			return nil, fmt.Errorf("unmarshal outcome %x: %w", iter.Key(), err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func (o *Outcomes) Close() error {
	if !o.closed.CompareAndSwap(false, true) {
		return nil
	}
	return o.db.Close()
}

func outcomeKey(o transfer.Outcome) []byte {
	key := make([]byte, 0, 1+8+16)
	key = append(key, prefixOutcome)
	key = binary.BigEndian.AppendUint64(key, uint64(o.FinishedAt.UnixNano()))
	return append(key, o.AttemptID[:]...)
}

func attemptKey(id uuid.UUID) []byte {
	return append([]byte{prefixAttempt}, id[:]...)
}
