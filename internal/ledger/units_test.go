package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSOLToLamports(t *testing.T) {
	tests := []struct {
		sol     string
		want    uint64
		wantErr error
	}{
		{"0", 0, nil},
		{"1", LamportsPerSOL, nil},
		{"0.5", 500_000_000, nil},
		{"0.000000001", 1, nil},
		{"18446744073.709551615", 18446744073709551615, nil},
		{"0.0000000001", 0, ErrFractionalAmount},
		{"-1", 0, ErrNegativeAmount},
		{"18446744073.709551616", 0, ErrAmountTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.sol, func(t *testing.T) {
			got, err := SOLToLamports(decimal.RequireFromString(tt.sol))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatSOL(t *testing.T) {
	assert.Equal(t, "0.000000000", FormatSOL(0))
	assert.Equal(t, "1.000000000", FormatSOL(LamportsPerSOL))
	assert.Equal(t, "0.000000001", FormatSOL(1))
	assert.True(t, LamportsToSOL(1_500_000_000).Equal(decimal.RequireFromString("1.5")))
}
