package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/rs/zerolog"

	"github.com/eigerco/blocktransfer/pkg/log"
)

const (
	DefaultEndpoint       = rpc.MainNetBeta_RPC
	DefaultRequestTimeout = 10 * time.Second
	DefaultConfirmTimeout = 30 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
)

// JSON-RPC error codes the cluster uses when it refuses a transaction.
const (
	codeSimulationFailed     = -32002
	codeSignatureVerifyFails = -32003
)

// rpcAPI is the subset of *rpc.Client used by RPCClient.
type rpcAPI interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// RPCConfig configures the JSON-RPC ledger client.
type RPCConfig struct {
	Endpoint       string
	Commitment     rpc.CommitmentType
	RequestTimeout time.Duration // per RPC call, 0 disables
	ConfirmTimeout time.Duration // how long SubmitTransaction waits for the commitment
	PollInterval   time.Duration
}

func (c RPCConfig) withDefaults() RPCConfig {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Commitment == "" {
		c.Commitment = rpc.CommitmentConfirmed
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// RPCClient talks to a cluster over JSON-RPC. It is safe for concurrent use.
type RPCClient struct {
	api    rpcAPI
	config RPCConfig
	log    zerolog.Logger
}

// NewRPCClient creates a client for config.Endpoint.
func NewRPCClient(config RPCConfig) *RPCClient {
	config = config.withDefaults()
	return newRPCClient(rpc.New(config.Endpoint), config)
}

func newRPCClient(api rpcAPI, config RPCConfig) *RPCClient {
	return &RPCClient{
		api:    api,
		config: config.withDefaults(),
		log:    log.Ledger,
	}
}

func (c *RPCClient) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.RequestTimeout > 0 {
		return context.WithTimeout(ctx, c.config.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

// GetBalance returns the account balance in lamports.
func (c *RPCClient) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	res, err := c.api.GetBalance(ctx, account, c.config.Commitment)
	if err != nil {
		return 0, &TransportError{Op: "get balance", Err: err}
	}
	if res == nil {
		return 0, &TransportError{Op: "get balance", Err: errors.New("empty response")}
	}
	return res.Value, nil
}

// GetLatestBlockReference returns a recent blockhash to sign against.
func (c *RPCClient) GetLatestBlockReference(ctx context.Context) (solana.Hash, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	res, err := c.api.GetLatestBlockhash(ctx, c.config.Commitment)
	if err != nil {
		return solana.Hash{}, &TransportError{Op: "get latest blockhash", Err: err}
	}
	if res == nil || res.Value == nil {
		return solana.Hash{}, &TransportError{Op: "get latest blockhash", Err: errors.New("empty response")}
	}
	return res.Value.Blockhash, nil
}

// SubmitTransaction sends tx and waits up to ConfirmTimeout for the cluster to
// report it at the configured commitment. A transaction that lands with an
// error is not treated as a submit failure: the signature is returned and the
// error is reported by GetTransactionStatus.
func (c *RPCClient) SubmitTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sendCtx, cancel := c.callContext(ctx)
	sig, err := c.api.SendTransaction(sendCtx, tx)
	cancel()
	if err != nil {
		return solana.Signature{}, classifySendError(err)
	}

	if c.config.ConfirmTimeout > 0 {
		c.awaitCommitment(ctx, sig)
	}
	return sig, nil
}

func (c *RPCClient) awaitCommitment(ctx context.Context, sig solana.Signature) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		res, err := c.api.GetSignatureStatuses(ctx, false, sig)
		switch {
		case err != nil:
			c.log.Debug().Err(err).Stringer("signature", sig).Msg("status poll failed while waiting")
		case res != nil && len(res.Value) > 0 && res.Value[0] != nil:
			status := res.Value[0]
			if status.Err != nil || reached(status.ConfirmationStatus, c.config.Commitment) {
				return
			}
		}

		select {
		case <-ctx.Done():
			c.log.Debug().Stringer("signature", sig).Msg("commitment not reached before timeout")
			return
		case <-ticker.C:
		}
	}
}

// GetTransactionStatus polls the signature status once. A transaction that
// landed without error but has not reached the configured commitment is
// still Pending.
func (c *RPCClient) GetTransactionStatus(ctx context.Context, sig solana.Signature) (Status, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	res, err := c.api.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return Status{}, &TransportError{Op: "get signature status", Err: err}
	}
	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		return Status{State: Pending}, nil
	}
	status := res.Value[0]
	if status.Err != nil {
		return Status{State: Failed, Reason: describe(status.Err)}, nil
	}
	if !reached(status.ConfirmationStatus, c.config.Commitment) {
		return Status{State: Pending}, nil
	}
	return Status{State: Succeeded}, nil
}

var commitmentRank = map[rpc.ConfirmationStatusType]int{
	rpc.ConfirmationStatusProcessed: 1,
	rpc.ConfirmationStatusConfirmed: 2,
	rpc.ConfirmationStatusFinalized: 3,
}

var wantedRank = map[rpc.CommitmentType]int{
	rpc.CommitmentProcessed: 1,
	rpc.CommitmentConfirmed: 2,
	rpc.CommitmentFinalized: 3,
}

func reached(got rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	rank, ok := commitmentRank[got]
	return ok && rank >= wantedRank[want]
}

// classifySendError separates refusals by the cluster from transport faults.
func classifySendError(err error) error {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return &TransportError{Op: "send transaction", Err: err}
	}
	if data, ok := rpcErr.Data.(map[string]interface{}); ok && data["err"] != nil {
		return &OnChainError{Code: rpcErr.Code, Reason: fmt.Sprintf("%s: %s", rpcErr.Message, describe(data["err"]))}
	}
	switch rpcErr.Code {
	case codeSimulationFailed, codeSignatureVerifyFails:
		return &OnChainError{Code: rpcErr.Code, Reason: rpcErr.Message}
	}
	return &TransportError{Op: "send transaction", Err: err}
}

// describe renders an on-chain error value (usually decoded JSON) as text.
func describe(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
