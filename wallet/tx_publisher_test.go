// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"fmt"
	"testing"

	"github.com/atlasgraph/t4wallet/chain"
	"github.com/atlasgraph/t4wallet/wallet/txauthor"
	"github.com/atlasgraph/t4wallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// testRecipientAddr is the testnet encoding of testRecipient.
const testRecipientAddr = "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx"

// txFee returns the fee of a wallet transaction from the ledger's view of
// the outputs it spends.
func txFee(t *testing.T, w *Wallet, tx *wire.MsgTx) btcutil.Amount {
	t.Helper()

	var in btcutil.Amount
	for _, txIn := range tx.TxIn {
		prevTx, err := w.prevTx(txIn.PreviousOutPoint)
		require.NoError(t, err)
		in += btcutil.Amount(
			prevTx.TxOut[txIn.PreviousOutPoint.Index].Value,
		)
	}

	return in - txauthor.SumOutputValues(tx.TxOut)
}

// TestPay pays from a funded wallet and checks that the ledger reflects the
// payment before and after it confirms.
func TestPay(t *testing.T) {
	t.Parallel()

	w, c := fundedWallet(t, 60_000, 40_000)
	c.On("Broadcast", mock.Anything, mock.Anything).Return(nil)

	before := w.Balance().Total()

	tx, err := w.Pay(context.Background(), testRecipientAddr, 30_000)
	require.NoError(t, err)
	c.AssertNumberOfCalls(t, "Broadcast", 1)

	// The payment is recorded as unconfirmed and the value leaving the
	// wallet is the amount plus the fee.
	txHash := tx.TxHash()
	rec, ok := w.store.Tx(&txHash)
	require.True(t, ok)
	require.Equal(t, wtxmgr.Unconfirmed, rec.Status.State)
	require.True(t, rec.Status.FirstSeen.Equal(testTime))

	fee := txFee(t, w, tx)
	require.Positive(t, fee)
	require.Equal(t, before-30_000-fee, w.Balance().Total())

	// Spent outputs are gone and are not selected again.
	spent := make(map[wire.OutPoint]struct{})
	for _, txIn := range tx.TxIn {
		spent[txIn.PreviousOutPoint] = struct{}{}
	}
	for _, utxo := range w.UTXOs() {
		require.NotContains(t, spent, utxo.OutPoint)
	}

	ptx, err := w.CreateTransaction(
		testRecipient, 10_000, txauthor.DefaultFeePolicy,
	)
	require.NoError(t, err)
	for _, txIn := range ptx.Packet.UnsignedTx.TxIn {
		require.NotContains(t, spent, txIn.PreviousOutPoint)
	}

	// The backend now reports the payment from the mempool; syncing
	// agrees with the recorded entry.
	require.NoError(t, w.Sync(context.Background()))
	require.Equal(t, before-30_000-fee, w.Balance().Total())

	c.mine(tx)
	require.NoError(t, w.Sync(context.Background()))

	rec, ok = w.store.Tx(&txHash)
	require.True(t, ok)
	require.Equal(t, wtxmgr.Confirmed, rec.Status.State)
	require.Equal(t, before-30_000-fee, w.Balance().Confirmed)

	var found bool
	for _, d := range w.ListTransactions() {
		if d.Hash != txHash {
			continue
		}
		found = true
		require.True(t, d.FeeKnown)
		require.Equal(t, fee, d.Fee)
		require.Equal(t, -(30_000 + fee), d.Net())
	}
	require.True(t, found)
}

// TestPayBroadcastFails expects a failed broadcast to surface as a network
// error and to leave the ledger untouched.
func TestPayBroadcastFails(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		code ErrorCode
	}{
		{
			name: "rejected",
			err:  fmt.Errorf("%w: status 400", chain.ErrNetwork),
			code: ErrNetwork,
		},
		{
			name: "timeout",
			err:  fmt.Errorf("%w: deadline exceeded", chain.ErrTimeout),
			code: ErrNetworkTimeout,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			w, c := fundedWallet(t, 60_000)
			c.On("Broadcast", mock.Anything, mock.Anything).
				Return(tc.err)

			utxos := w.UTXOs()
			txs := w.ListTransactions()

			_, err := w.Pay(
				context.Background(), testRecipientAddr, 30_000,
			)
			require.True(t, IsError(err, tc.code), err)
			require.ErrorIs(t, err, tc.err)

			require.Equal(t, utxos, w.UTXOs())
			require.Len(t, w.ListTransactions(), len(txs))
		})
	}
}

// TestPayInvalidAddress covers addresses that cannot be paid on testnet.
func TestPayInvalidAddress(t *testing.T) {
	t.Parallel()

	w, c := fundedWallet(t, 60_000)

	testCases := []struct {
		name string
		addr string
	}{
		{"garbage", "not an address"},
		{"mainnet segwit", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"},
		{"mainnet legacy", "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH"},
	}

	for _, tc := range testCases {
		_, err := w.Pay(context.Background(), tc.addr, 10_000)
		require.True(t, IsError(err, ErrInvalidRecipient),
			"%s: %v", tc.name, err)
	}
	c.AssertNumberOfCalls(t, "Broadcast", 0)
}
