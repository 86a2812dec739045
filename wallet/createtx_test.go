// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"context"
	"testing"

	"github.com/atlasgraph/t4wallet/waddrmgr"
	"github.com/atlasgraph/t4wallet/wallet/txauthor"
	"github.com/atlasgraph/t4wallet/wallet/txrules"
	"github.com/atlasgraph/t4wallet/wallet/txsizes"
	"github.com/atlasgraph/t4wallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// scriptOf returns the output script paying to addr.
func scriptOf(t *testing.T, addr btcutil.Address) []byte {
	t.Helper()

	pkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	return pkScript
}

// fundedWallet returns a synced BIP-84 wallet holding one confirmed output
// of each value, paid to consecutive receive scripts.
func fundedWallet(t *testing.T, values ...int64) (*Wallet, *mockChain) {
	t.Helper()

	c := newMockChain()
	w := newTestWallet(t, bip84Descriptors, c, nil)
	for i, value := range values {
		c.fund(scriptAt(t, w, waddrmgr.External, uint32(i)), value)
	}
	require.NoError(t, w.Sync(context.Background()))

	return w, c
}

// p2wpkhFee is the fee of a transaction spending n p2wpkh inputs to the
// test recipient, with a p2wpkh change output if change is set.
func p2wpkhFee(n int, change bool) btcutil.Amount {
	changeSize := 0
	if change {
		changeSize = txsizes.P2WPKHPkScriptSize
	}
	vsize := txsizes.EstimateVirtualSize(
		txsizes.InputCounts{P2WPKH: n},
		[]*wire.TxOut{wire.NewTxOut(0, testRecipient)}, changeSize,
	)

	return txrules.FeeForSerializeSize(txrules.DefaultRelayFeePerKb, vsize)
}

// TestCreateTransactionSingleUTXO spends one output and expects the
// recipient output, a change output on the first internal script and a
// fee priced by the size estimate.
func TestCreateTransactionSingleUTXO(t *testing.T) {
	t.Parallel()

	w, _ := fundedWallet(t, 100_000)

	ptx, err := w.CreateTransaction(
		testRecipient, 10_000, txauthor.DefaultFeePolicy,
	)
	require.NoError(t, err)

	tx := ptx.Packet.UnsignedTx
	require.Len(t, tx.TxIn, 1)
	require.Len(t, tx.TxOut, 2)
	require.Equal(t, 1, ptx.ChangeIndex)
	require.Equal(t, []InputOwner{{waddrmgr.External, 0}}, ptx.Inputs)

	fee := p2wpkhFee(1, true)
	require.Equal(t, fee, ptx.Fee)
	require.Equal(t, int64(10_000), tx.TxOut[0].Value)
	require.Equal(t, testRecipient, tx.TxOut[0].PkScript)
	require.Equal(t, int64(100_000-10_000)-int64(fee), tx.TxOut[1].Value)
	require.Equal(t, scriptAt(t, w, waddrmgr.Internal, 0),
		tx.TxOut[1].PkScript)

	for _, txIn := range tx.TxIn {
		require.Equal(t, txauthor.ReplaceableSequence, txIn.Sequence)
	}

	// The change script was revealed, the receive keychain untouched.
	_, reveal := w.addrMgr.Watermarks(waddrmgr.Internal)
	require.Equal(t, uint32(1), reveal)

	// The input carries the spent output and its key origin.
	in := ptx.Packet.Inputs[0]
	require.NotNil(t, in.WitnessUtxo)
	require.NotNil(t, in.NonWitnessUtxo)
	require.Equal(t, txscript.SigHashAll, in.SighashType)
	require.Len(t, in.Bip32Derivation, 1)
	require.Equal(t, []uint32{
		84 + 0x80000000, 1 + 0x80000000, 0x80000000, 0, 0,
	}, in.Bip32Derivation[0].Bip32Path)
	require.Len(t, ptx.Packet.Outputs[1].Bip32Derivation, 1)
}

// TestCreateTransactionDustChange expects leftover value below the dust
// limit to be added to the fee instead of creating change.
func TestCreateTransactionDustChange(t *testing.T) {
	t.Parallel()

	w, _ := fundedWallet(t, 10_300)

	ptx, err := w.CreateTransaction(
		testRecipient, 10_000, txauthor.DefaultFeePolicy,
	)
	require.NoError(t, err)

	require.Equal(t, -1, ptx.ChangeIndex)
	require.Len(t, ptx.Packet.UnsignedTx.TxOut, 1)
	require.Equal(t, btcutil.Amount(300), ptx.Fee)

	// No change output, so no change script was revealed.
	_, reveal := w.addrMgr.Watermarks(waddrmgr.Internal)
	require.Zero(t, reveal)
}

// TestCreateTransactionSelection checks that selected inputs always cover
// the amount and the fee and that the value is conserved.
func TestCreateTransactionSelection(t *testing.T) {
	t.Parallel()

	values := []int64{5_000, 20_000, 7_000, 60_000}
	testCases := []struct {
		name   string
		amount btcutil.Amount
		policy FeePolicy
	}{
		{"one input", 1_000, txauthor.DefaultFeePolicy},
		{"several inputs", 30_000, txauthor.DefaultFeePolicy},
		{"every input", 90_000, txauthor.DefaultFeePolicy},
		{"high fee rate", 20_000, FeePolicy{FeeRatePerKb: 25_000}},
		{"absolute fee", 50_000, FeePolicy{Absolute: 2_500}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			w, _ := fundedWallet(t, values...)
			ptx, err := w.CreateTransaction(
				testRecipient, tc.amount, tc.policy,
			)
			require.NoError(t, err)

			var in btcutil.Amount
			for _, pin := range ptx.Packet.Inputs {
				in += btcutil.Amount(pin.WitnessUtxo.Value)
			}
			out := txauthor.SumOutputValues(
				ptx.Packet.UnsignedTx.TxOut,
			)

			require.Equal(t, in, out+ptx.Fee)
			require.GreaterOrEqual(t, in, tc.amount+ptx.Fee)

			// No output is spent twice.
			txIns := ptx.Packet.UnsignedTx.TxIn
			spent := make(map[wire.OutPoint]struct{}, len(txIns))
			for _, txIn := range txIns {
				spent[txIn.PreviousOutPoint] = struct{}{}
			}
			require.Len(t, spent, len(txIns))

			if tc.policy.Absolute > 0 {
				require.Equal(t, tc.policy.Absolute, ptx.Fee)
			}
		})
	}
}

// TestCreateTransactionErrors covers the rejected requests. None of them
// may reveal a change script.
func TestCreateTransactionErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		funds    []int64
		pkScript []byte
		amount   btcutil.Amount
		code     ErrorCode
	}{
		{
			name:     "empty wallet",
			pkScript: testRecipient,
			amount:   1_000,
			code:     ErrInsufficientFunds,
		},
		{
			name:     "balance below amount",
			funds:    []int64{5_000},
			pkScript: testRecipient,
			amount:   6_000,
			code:     ErrInsufficientFunds,
		},
		{
			name:     "balance below amount and fee",
			funds:    []int64{10_050},
			pkScript: testRecipient,
			amount:   10_000,
			code:     ErrInsufficientFunds,
		},
		{
			name:     "zero amount",
			funds:    []int64{5_000},
			pkScript: testRecipient,
			code:     ErrInvalidRecipient,
		},
		{
			name:     "negative amount",
			funds:    []int64{5_000},
			pkScript: testRecipient,
			amount:   -1,
			code:     ErrInvalidRecipient,
		},
		{
			name:     "non-standard script",
			funds:    []int64{5_000},
			pkScript: []byte{txscript.OP_TRUE},
			amount:   1_000,
			code:     ErrInvalidRecipient,
		},
		{
			name:  "null data",
			funds: []int64{5_000},
			pkScript: []byte{
				txscript.OP_RETURN, txscript.OP_DATA_1, 0x01,
			},
			amount: 1_000,
			code:   ErrInvalidRecipient,
		},
		{
			name:     "dust",
			funds:    []int64{5_000},
			pkScript: testRecipient,
			amount:   293,
			code:     ErrInvalidRecipient,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			w, _ := fundedWallet(t, tc.funds...)
			before := w.UTXOs()

			_, err := w.CreateTransaction(
				tc.pkScript, tc.amount, txauthor.DefaultFeePolicy,
			)
			require.Error(t, err)
			require.True(t, IsError(err, tc.code), err)

			require.Equal(t, before, w.UTXOs())
			_, reveal := w.addrMgr.Watermarks(waddrmgr.Internal)
			require.Zero(t, reveal)
		})
	}
}

// misplacedOwner reports a wallet script under a keychain the wallet does
// not have.
type misplacedOwner struct {
	pkScript []byte
}

func (o misplacedOwner) LookupScript(
	pkScript []byte) (waddrmgr.ScriptEntry, bool) {

	if !bytes.Equal(pkScript, o.pkScript) {
		return waddrmgr.ScriptEntry{}, false
	}

	return waddrmgr.ScriptEntry{
		KeyChain: waddrmgr.KeyChain(9),
		PkScript: pkScript,
	}, true
}

// TestCreateTransactionPacketFailure expects a transaction whose PSBT cannot
// be built to leave the change keychain unrevealed.
func TestCreateTransactionPacketFailure(t *testing.T) {
	t.Parallel()

	w := newTestWallet(t, bip84Descriptors, nil, nil)
	pkScript := scriptAt(t, w, waddrmgr.External, 0)
	w.store = wtxmgr.NewStore(misplacedOwner{pkScript}, testParams)

	funding := wire.NewMsgTx(wire.TxVersion)
	funding.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 1}, nil, nil))
	funding.AddTxOut(wire.NewTxOut(100_000, pkScript))
	require.NoError(t, w.store.Apply(&wtxmgr.Update{
		Txs: []*wtxmgr.ObservedTx{{
			MsgTx:  funding,
			Status: wtxmgr.NewConfirmed(101, testBlockHash(101)),
		}},
		TipHeight: 110,
		TipHash:   testBlockHash(110),
	}))
	require.Len(t, w.UTXOs(), 1)

	_, err := w.CreateTransaction(
		testRecipient, 10_000, txauthor.DefaultFeePolicy,
	)
	require.ErrorIs(t, err, waddrmgr.ErrUnknownKeyChain)

	_, reveal := w.addrMgr.Watermarks(waddrmgr.Internal)
	require.Zero(t, reveal)
}

// TestCreateTransactionDeterministic builds the same payment in two wallets
// over the same descriptors and history and expects identical packets.
func TestCreateTransactionDeterministic(t *testing.T) {
	t.Parallel()

	c := newMockChain()
	w1 := newTestWallet(t, bip84Descriptors, c, nil)
	c.fund(scriptAt(t, w1, waddrmgr.External, 1), 30_000)
	c.fund(scriptAt(t, w1, waddrmgr.External, 0), 40_000)
	c.fund(scriptAt(t, w1, waddrmgr.Internal, 2), 15_000)

	w2 := newTestWallet(t, bip84Descriptors, c, nil)
	require.NoError(t, w1.Sync(context.Background()))
	require.NoError(t, w2.Sync(context.Background()))
	require.Equal(t, w1.UTXOs(), w2.UTXOs())

	serialize := func(w *Wallet) []byte {
		ptx, err := w.CreateTransaction(
			testRecipient, 50_000, txauthor.DefaultFeePolicy,
		)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, ptx.Packet.Serialize(&buf))

		return buf.Bytes()
	}
	require.Equal(t, serialize(w1), serialize(w2))
}
