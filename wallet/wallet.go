// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet ties the descriptor keychains, the ledger and the chain
// backend into a single-signature wallet.
package wallet

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/atlasgraph/t4wallet/chain"
	"github.com/atlasgraph/t4wallet/descriptor"
	"github.com/atlasgraph/t4wallet/waddrmgr"
	"github.com/atlasgraph/t4wallet/wallet/txauthor"
	"github.com/atlasgraph/t4wallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/lightningnetwork/lnd/clock"
)

// Namespace bucket keys below the top-level bucket of a wallet.
var (
	waddrmgrNamespaceKey = []byte("waddrmgr")
	wtxmgrNamespaceKey   = []byte("wtxmgr")
)

// Wallet is a single-signature wallet over an external and an internal
// descriptor.
type Wallet struct {
	// mtx serializes every mutation of the ledger and of the keychain
	// watermarks. Readers use the ledger snapshots directly.
	mtx sync.Mutex

	params    *chaincfg.Params
	addrMgr   *waddrmgr.Manager
	store     *wtxmgr.Store
	chain     chain.Interface
	db        walletdb.DB
	dbKey     []byte
	feePolicy FeePolicy
	clock     clock.Clock

	stopGap     uint32
	parallelism int
	inspect     chain.InspectFunc
}

// New parses the configured descriptors and returns a wallet over them. If a
// database is configured, state stored by an earlier run with the same
// descriptors is loaded.
func New(cfg *Config) (*Wallet, error) {
	if cfg.Params == nil {
		return nil, walletError(ErrInvalidDescriptor, "no network "+
			"parameters configured", nil)
	}

	external, err := descriptor.Parse(cfg.ExternalDescriptor, cfg.Params)
	if err != nil {
		return nil, mapError("invalid external descriptor", err)
	}
	internal, err := descriptor.Parse(cfg.InternalDescriptor, cfg.Params)
	if err != nil {
		return nil, mapError("invalid internal descriptor", err)
	}

	addrMgr, err := waddrmgr.NewManager(external, internal, cfg.Params)
	if err != nil {
		return nil, mapError("descriptors do not form a wallet", err)
	}

	w := &Wallet{
		params:      cfg.Params,
		addrMgr:     addrMgr,
		chain:       cfg.Chain,
		db:          cfg.DB,
		dbKey:       walletKey(external, internal),
		feePolicy:   cfg.FeePolicy,
		clock:       cfg.Clock,
		stopGap:     cfg.StopGap,
		parallelism: cfg.Parallelism,
		inspect:     cfg.Inspect,
	}
	if w.feePolicy == (FeePolicy{}) {
		w.feePolicy = txauthor.DefaultFeePolicy
	}
	if w.clock == nil {
		w.clock = clock.NewDefaultClock()
	}

	if err := w.load(); err != nil {
		return nil, err
	}

	log.Infof("Opened %v wallet (external %v, internal %v)",
		external.Type(), external, internal)

	return w, nil
}

// walletKey names the top-level bucket of a wallet after its public
// descriptors, so that one database can hold several wallets.
func walletKey(external, internal *descriptor.Descriptor) []byte {
	h := sha256.New()
	h.Write([]byte(external.String()))
	h.Write([]byte{0})
	h.Write([]byte(internal.String()))

	return []byte("wallet-" + hex.EncodeToString(h.Sum(nil)))
}

// load reads the persisted watermarks and ledger, or creates an empty ledger
// when there is nothing to read.
func (w *Wallet) load() error {
	if w.db == nil {
		w.store = wtxmgr.NewStore(w.addrMgr, w.params)
		return nil
	}

	var store *wtxmgr.Store
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		ns := tx.ReadBucket(w.dbKey)
		if ns == nil {
			return nil
		}

		// The scripts below the watermarks must be known before the
		// ledger resolves the owners of its outputs.
		addrmgrNs := ns.NestedReadBucket(waddrmgrNamespaceKey)
		if addrmgrNs != nil {
			if err := w.addrMgr.FetchState(addrmgrNs); err != nil {
				return err
			}
		}

		txmgrNs := ns.NestedReadBucket(wtxmgrNamespaceKey)
		if txmgrNs == nil {
			return nil
		}

		var err error
		store, err = wtxmgr.Open(txmgrNs, w.addrMgr, w.params)
		return err
	})
	if err != nil {
		return databaseError("failed to load wallet state", err)
	}

	if store == nil {
		store = wtxmgr.NewStore(w.addrMgr, w.params)
	}
	w.store = store

	log.Debugf("Loaded ledger: %v", store)

	return nil
}

// persist writes the watermarks and the ledger. It is a no-op for wallets
// without a database. The caller must hold w.mtx.
func (w *Wallet) persist() error {
	if w.db == nil {
		return nil
	}

	err := walletdb.Update(w.db, func(tx walletdb.ReadWriteTx) error {
		ns, err := tx.CreateTopLevelBucket(w.dbKey)
		if err != nil {
			return err
		}

		addrmgrNs, err := ns.CreateBucketIfNotExists(
			waddrmgrNamespaceKey,
		)
		if err != nil {
			return err
		}
		if err := w.addrMgr.PutState(addrmgrNs); err != nil {
			return err
		}

		txmgrNs, err := ns.CreateBucketIfNotExists(wtxmgrNamespaceKey)
		if err != nil {
			return err
		}

		return w.store.Write(txmgrNs)
	})
	if err != nil {
		return databaseError("failed to persist wallet state", err)
	}

	return nil
}

// databaseError classifies a storage failure, keeping the ledger's own
// classification when it has one.
func databaseError(desc string, err error) error {
	if wtxmgr.IsError(err, wtxmgr.ErrReconciliation) {
		return mapError(desc, err)
	}

	return walletError(ErrDatabase, desc, err)
}

// requireChainClient returns the chain backend or an error if the wallet was
// built without one.
func (w *Wallet) requireChainClient() (chain.Interface, error) {
	if w.chain == nil {
		return nil, walletError(ErrNetwork, "chain client is not "+
			"configured", nil)
	}

	return w.chain, nil
}

// ChainParams returns the network parameters of the wallet.
func (w *Wallet) ChainParams() *chaincfg.Params {
	return w.params
}

// Descriptors returns the public forms of the external and internal
// descriptors.
func (w *Wallet) Descriptors() Descriptors {
	return Descriptors{
		External: w.addrMgr.Descriptor(waddrmgr.External).String(),
		Internal: w.addrMgr.Descriptor(waddrmgr.Internal).String(),
	}
}

// Balance returns the value of the wallet's unspent outputs by chain status.
func (w *Wallet) Balance() wtxmgr.Balance {
	return w.store.Balance()
}

// UTXOs returns the wallet's unspent outputs ordered by transaction id and
// output index.
func (w *Wallet) UTXOs() []wtxmgr.Credit {
	return w.store.UTXOs()
}

// ListTransactions returns every transaction touching the wallet in the
// order it was first seen.
func (w *Wallet) ListTransactions() []*wtxmgr.TxDetails {
	return w.store.TxDetails()
}

// BestBlock returns the chain tip seen by the last sync.
func (w *Wallet) BestBlock() (int32, chainhash.Hash) {
	return w.store.Tip()
}

// NextUnusedAddress reveals and returns the lowest unused address of a
// keychain. Consecutive calls on a ranged keychain never return the same
// address.
func (w *Wallet) NextUnusedAddress(kc waddrmgr.KeyChain) (btcutil.Address,
	error) {

	w.mtx.Lock()
	defer w.mtx.Unlock()

	entry, err := w.addrMgr.NextUnused(kc)
	if err != nil {
		return nil, mapError(fmt.Sprintf("failed to derive %v address",
			kc), err)
	}

	if err := w.persist(); err != nil {
		return nil, err
	}

	log.Infof("Revealed %v address %d: %v", kc, entry.Index,
		entry.Address)

	return entry.Address, nil
}

// knownBlocks returns the distinct blocks the ledger holds confirmed
// transactions in.
func (w *Wallet) knownBlocks() []chainhash.Hash {
	seen := make(map[chainhash.Hash]struct{})

	var blocks []chainhash.Hash
	for _, rec := range w.store.Transactions() {
		if rec.Status.State != wtxmgr.Confirmed {
			continue
		}
		if _, ok := seen[rec.Status.BlockHash]; ok {
			continue
		}
		seen[rec.Status.BlockHash] = struct{}{}
		blocks = append(blocks, rec.Status.BlockHash)
	}

	return blocks
}
