// Copyright (c) 2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package waddrmgr

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/atlasgraph/t4wallet/descriptor"
	"github.com/atlasgraph/t4wallet/netparams"
	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
	"github.com/stretchr/testify/require"
)

const (
	// tprvAbandon is the testnet master key of the all-zero entropy
	// BIP-39 mnemonic.
	tprvAbandon = "tprv8ZgxMBicQKsPe5YMU9gHen4Ez3ApihUfykaqUorj9t6FDqy3nP6" +
		"eoXiAo2ssvpAjoLroQxHqr3R5nE3a5dU3DHTjTgJDd7zrbniJr6nrCzd"

	// defaultDBTimeout is the bolt open timeout used by the tests.
	defaultDBTimeout = 10 * time.Second
)

var (
	testParams = netparams.TestNet4Params.Params

	// waddrmgrNamespaceKey is the top level bucket used by the tests.
	waddrmgrNamespaceKey = []byte("waddrmgrNamespace")
)

func mustParse(t *testing.T, desc string) *descriptor.Descriptor {
	t.Helper()

	d, err := descriptor.Parse(desc, testParams)
	require.NoError(t, err)

	return d
}

// newRangedManager returns a manager over the BIP-84 keychains of the test
// master key.
func newRangedManager(t *testing.T) *Manager {
	t.Helper()

	mgr, err := NewManager(
		mustParse(t, "wpkh("+tprvAbandon+"/84'/1'/0'/0/*)"),
		mustParse(t, "wpkh("+tprvAbandon+"/84'/1'/0'/1/*)"),
		testParams,
	)
	require.NoError(t, err)

	return mgr
}

// createDbNamespace creates a bolt database in a temporary directory with
// a single top level bucket.
func createDbNamespace(t *testing.T) walletdb.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "mgrtest.db")
	db, err := walletdb.Create(
		"bdb", dbPath, true, defaultDBTimeout, false,
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	err = walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		_, err := tx.CreateTopLevelBucket(waddrmgrNamespaceKey)
		return err
	})
	require.NoError(t, err)

	return db
}
