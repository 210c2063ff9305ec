package ledger

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL uint64 = 1_000_000_000

const solDecimals = 9

var (
	ErrNegativeAmount   = errors.New("amount is negative")
	ErrFractionalAmount = errors.New("amount is finer than one lamport")
	ErrAmountTooLarge   = errors.New("amount does not fit in 64 bits of lamports")
)

// LamportsToSOL converts an integer lamport amount to SOL without rounding.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -solDecimals)
}

// SOLToLamports converts an amount of SOL into lamports. It never rounds:
// amounts that are not a whole number of lamports are rejected.
func SOLToLamports(sol decimal.Decimal) (uint64, error) {
	if sol.IsNegative() {
		return 0, ErrNegativeAmount
	}
	lamports := sol.Shift(solDecimals)
	if !lamports.Equal(lamports.Truncate(0)) {
		return 0, ErrFractionalAmount
	}
	n := lamports.BigInt()
	if !n.IsUint64() {
		return 0, ErrAmountTooLarge
	}
	return n.Uint64(), nil
}

// FormatSOL renders lamports as SOL with all nine decimals.
func FormatSOL(lamports uint64) string {
	return LamportsToSOL(lamports).StringFixed(solDecimals)
}
