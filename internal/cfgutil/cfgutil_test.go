// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"
)

func TestAmountFlag(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		value  string
		amount btcutil.Amount
		valid  bool
	}{
		{"30000", 30_000, true},
		{" 1 ", 1, true},
		{"0.5 BTC", 50_000_000, true},
		{"0.00001BTC", 1_000, true},
		{"1.5", 0, false},
		{"ten", 0, false},
		{"x BTC", 0, false},
	}

	for _, tc := range testCases {
		var f AmountFlag
		err := f.UnmarshalFlag(tc.value)
		if !tc.valid {
			require.Error(t, err, tc.value)
			continue
		}
		require.NoError(t, err, tc.value)
		require.Equal(t, tc.amount, f.Amount, tc.value)
	}

	s, err := NewAmountFlag(1234).MarshalFlag()
	require.NoError(t, err)
	require.Equal(t, "1234", s)
}

func TestFeeRateFlag(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		value string
		rate  btcutil.Amount
		valid bool
	}{
		{"3", 3_000, true},
		{"2.5", 2_500, true},
		{"1.25", 1_250, true},
		{"12 sat/vB", 12_000, true},
		{"0", 0, true},
		{"-1", 0, false},
		{"NaN", 0, false},
		{"fast", 0, false},
	}

	for _, tc := range testCases {
		var f FeeRateFlag
		err := f.UnmarshalFlag(tc.value)
		if !tc.valid {
			require.Error(t, err, tc.value)
			continue
		}
		require.NoError(t, err, tc.value)
		require.Equal(t, tc.rate, f.SatPerKVByte, tc.value)
		require.Equal(t, tc.rate > 0, f.IsSet(), tc.value)
	}

	s, err := NewFeeRateFlag(2_500).MarshalFlag()
	require.NoError(t, err)
	require.Equal(t, "2.5", s)
}

func TestFileExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "wallet.db")
	require.NoError(t, os.WriteFile(file, []byte{0}, 0600))

	exists, err := FileExists(file)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = FileExists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	require.False(t, exists)
}

func TestCleanAndExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("T4WALLET_TEST_DIR", "/var/lib/t4")

	testCases := []struct {
		path string
		want string
	}{
		{"", ""},
		{"~", home},
		{"~/.t4wallet/logs", filepath.Join(home, ".t4wallet", "logs")},
		{"$T4WALLET_TEST_DIR/data", "/var/lib/t4/data"},
		{"/tmp/a/../b/", "/tmp/b"},
	}

	for _, tc := range testCases {
		require.Equal(t, tc.want, CleanAndExpandPath(tc.path), tc.path)
	}
}

func TestExplicitString(t *testing.T) {
	t.Parallel()

	e := NewExplicitString("http://127.0.0.1:3000")
	require.False(t, e.ExplicitlySet())

	require.NoError(t, e.UnmarshalFlag("http://127.0.0.1:3000"))
	require.True(t, e.ExplicitlySet())
	require.Equal(t, "http://127.0.0.1:3000", e.Value)
}
