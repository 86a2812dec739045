// Copyright (c) 2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wtxmgr

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/atlasgraph/t4wallet/waddrmgr"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
	"github.com/stretchr/testify/require"
)

var (
	testParams = &chaincfg.RegressionNetParams

	// namespaceKey is the top level bucket used by the tests.
	namespaceKey = []byte("wtxmgrNamespace")

	// foreignScript is a P2WPKH script not owned by testOwner.
	foreignScript = append([]byte{0x00, 0x14}, make([]byte, 20)...)

	// baseTime is the reference timestamp of unconfirmed observations.
	baseTime = time.Unix(1_700_000_000, 0)
)

// testOwner owns the P2WPKH scripts whose program starts with a non-zero
// byte, mapped to the keychain index stored in the second program byte.
type testOwner struct{}

func (testOwner) LookupScript(pkScript []byte) (waddrmgr.ScriptEntry, bool) {
	if len(pkScript) != 22 || pkScript[2] == 0 {
		return waddrmgr.ScriptEntry{}, false
	}

	return waddrmgr.ScriptEntry{
		KeyChain: waddrmgr.KeyChain(pkScript[2] - 1),
		Index:    uint32(pkScript[3]),
		PkScript: pkScript,
	}, true
}

// ownedScript returns a script testOwner maps to (kc, index).
func ownedScript(kc waddrmgr.KeyChain, index uint8) []byte {
	script := append([]byte{0x00, 0x14}, make([]byte, 20)...)
	script[2] = byte(kc) + 1
	script[3] = index

	return script
}

// outPoint builds an outpoint with a distinguishing hash byte.
func outPoint(b byte, index uint32) wire.OutPoint {
	var hash chainhash.Hash
	hash[0] = b

	return wire.OutPoint{Hash: hash, Index: index}
}

// newTx returns a transaction spending prevs and paying the given outputs.
func newTx(prevs []wire.OutPoint, outs ...*wire.TxOut) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	for _, prev := range prevs {
		tx.AddTxIn(wire.NewTxIn(&prev, nil, nil))
	}
	for _, out := range outs {
		tx.AddTxOut(out)
	}

	return tx
}

// coinbaseTx returns a coinbase transaction paying value to pkScript.
func coinbaseTx(value int64, pkScript []byte) *wire.MsgTx {
	tx := wire.NewMsgTx(1)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: wire.MaxPrevOutIndex},
		SignatureScript:  []byte{0x51, 0x51},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(value, pkScript))

	return tx
}

func blockHash(b byte) chainhash.Hash {
	var hash chainhash.Hash
	hash[31] = b

	return hash
}

// createDbNamespace creates a bolt database with a single top level bucket
// in a temporary directory.
func createDbNamespace(t *testing.T) walletdb.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "wtxmgr.db")
	db, err := walletdb.Create(
		"bdb", dbPath, true, 10*time.Second, false,
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	err = walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		_, err := tx.CreateTopLevelBucket(namespaceKey)
		return err
	})
	require.NoError(t, err)

	return db
}

// requireSameState asserts two stores hold identical ledgers.
func requireSameState(t *testing.T, want, got *Store) {
	t.Helper()

	require.Equal(t, want.Balance(), got.Balance())
	require.Equal(t, want.UTXOs(), got.UTXOs())

	wantTxs, gotTxs := want.Transactions(), got.Transactions()
	require.Len(t, gotTxs, len(wantTxs))
	for i := range wantTxs {
		require.Equal(t, wantTxs[i].Hash, gotTxs[i].Hash)
		require.Equal(t, wantTxs[i].Seq, gotTxs[i].Seq)
		require.True(t, wantTxs[i].Status.equal(gotTxs[i].Status),
			"status of %v: want %v got %v", wantTxs[i].Hash,
			wantTxs[i].Status, gotTxs[i].Status)
	}

	wantHeight, wantHash := want.Tip()
	gotHeight, gotHash := got.Tip()
	require.Equal(t, wantHeight, gotHeight)
	require.Equal(t, wantHash, gotHash)
}
