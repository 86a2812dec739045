package txrules

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func mustScript(t *testing.T, s string) []byte {
	t.Helper()

	b, err := hex.DecodeString(s)
	require.NoError(t, err)

	return b
}

func TestDustThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
		dust   btcutil.Amount
	}{{
		name:   "p2pkh",
		script: "76a914751e76e8199196d454941c45d1b3a323f1433bd688ac",
		dust:   546,
	}, {
		name:   "p2sh",
		script: "a914bcfeb728b584253d5f3f70bcb780e9ef218a80b487",
		dust:   540,
	}, {
		name:   "p2wpkh",
		script: "0014751e76e8199196d454941c45d1b3a323f1433bd6",
		dust:   294,
	}, {
		name: "p2tr",
		script: "5120da4710964f7852695de2da025290e24af6d8c281de5a" +
			"0b902b7135fd9fd74d21",
		dust: 330,
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			script := mustScript(t, test.script)
			threshold := DustThreshold(script, DefaultDustRelayFeePerKb)
			require.Equal(t, test.dust, threshold)

			require.True(t, IsDustAmount(
				test.dust-1, script, DefaultDustRelayFeePerKb,
			))
			require.False(t, IsDustAmount(
				test.dust, script, DefaultDustRelayFeePerKb,
			))
		})
	}
}

func TestCheckOutput(t *testing.T) {
	t.Parallel()

	p2wpkh := mustScript(t, "0014751e76e8199196d454941c45d1b3a323f1433bd6")
	nullData := mustScript(t, "6a0474657374")

	tests := []struct {
		name string
		out  *wire.TxOut
		err  error
	}{{
		name: "valid",
		out:  wire.NewTxOut(1000, p2wpkh),
	}, {
		name: "negative",
		out:  wire.NewTxOut(-1, p2wpkh),
		err:  ErrAmountNegative,
	}, {
		name: "exceeds max",
		out:  wire.NewTxOut(btcutil.MaxSatoshi+1, p2wpkh),
		err:  ErrAmountExceedsMax,
	}, {
		name: "dust",
		out:  wire.NewTxOut(293, p2wpkh),
		err:  ErrOutputIsDust,
	}, {
		name: "null data is never dust",
		out:  wire.NewTxOut(0, nullData),
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			err := CheckOutput(test.out, DefaultDustRelayFeePerKb)
			require.ErrorIs(t, err, test.err)
		})
	}
}

func TestFeeForSerializeSize(t *testing.T) {
	t.Parallel()

	require.Equal(t, btcutil.Amount(141),
		FeeForSerializeSize(DefaultRelayFeePerKb, 141))
	require.Equal(t, btcutil.Amount(705),
		FeeForSerializeSize(5*DefaultRelayFeePerKb, 141))

	// Sub-satoshi fees round up to the full rate.
	require.Equal(t, btcutil.Amount(10), FeeForSerializeSize(10, 50))
	require.Equal(t, btcutil.Amount(0), FeeForSerializeSize(0, 200))

	require.Equal(t, btcutil.Amount(btcutil.MaxSatoshi),
		FeeForSerializeSize(btcutil.MaxSatoshi, 2000))
}
