package main

import (
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/blocktransfer/internal/ledger"
	"github.com/eigerco/blocktransfer/internal/transfer"
)

func TestFeedAddr(t *testing.T) {
	tests := map[string]string{
		"127.0.0.1:4433":                "127.0.0.1:4433",
		" feed.example.org:10000 ":      "feed.example.org:10000",
		"https://feed.example.org":      "feed.example.org:443",
		"https://feed.example.org:8443": "feed.example.org:8443",
	}
	for in, want := range tests {
		got, err := feedAddr(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestJournalLine(t *testing.T) {
	var sig solana.Signature
	sig[0] = 1
	o := transfer.Outcome{
		AttemptID:  uuid.MustParse("4b8f3e2a-1c1d-4f0e-9a51-7d9c0b7e6a10"),
		Sender:     "from",
		Recipient:  "to",
		Amount:     ledger.LamportsPerSOL,
		Status:     transfer.StatusSuccess,
		FinishedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	assert.Equal(t,
		"2024-05-01T12:00:00Z 4b8f3e2a-1c1d-4f0e-9a51-7d9c0b7e6a10 success  from -> to 1.000000000 SOL sig=-",
		journalLine(o))

	o.Status = transfer.StatusFailed
	o.Signature = &sig
	o.Reason = "rejected by ledger: AccountNotFound"
	line := journalLine(o)
	assert.Contains(t, line, "failed  ")
	assert.Contains(t, line, "sig="+sig.String())
	assert.True(t, strings.HasSuffix(line, o.Reason))
}
