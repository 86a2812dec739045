// Copyright (c) 2014-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/atlasgraph/t4wallet/chain"
	"github.com/atlasgraph/t4wallet/internal/cfgutil"
	"github.com/atlasgraph/t4wallet/waddrmgr"
	"github.com/atlasgraph/t4wallet/wallet"
	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
)

// dbTimeout bounds waiting for the lock of a database held by another
// process.
const dbTimeout = 10 * time.Second

// loadedWallet is a synced wallet together with the resources it uses.
type loadedWallet struct {
	*wallet.Wallet

	esplora *chain.Esplora
	db      walletdb.DB
}

// Close releases the wallet database, if any.
func (l *loadedWallet) Close() error {
	if l.db == nil {
		return nil
	}

	return l.db.Close()
}

// newEsplora returns a client of the configured Esplora server.
func newEsplora(cfg *config) *chain.Esplora {
	return chain.NewEsplora(&chain.EsploraConfig{
		URL:            cfg.Esplora.Value,
		RequestTimeout: cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		Parallelism:    cfg.Parallel,
	})
}

// openDB opens the wallet database under the data directory, creating it
// when it does not exist yet.
func openDB(path string) (walletdb.DB, error) {
	exists, err := cfgutil.FileExists(path)
	if err != nil {
		return nil, err
	}
	if exists {
		return walletdb.Open("bdb", path, true, dbTimeout, false)
	}

	if err := checkCreateDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	log.Infof("Creating wallet database %s", path)

	return walletdb.Create("bdb", path, true, dbTimeout, false)
}

// openWallet builds the wallet described by the configured descriptors and
// syncs it against the Esplora server.
func openWallet(ctx context.Context, cfg *config,
	feePolicy wallet.FeePolicy) (*loadedWallet, error) {

	l := &loadedWallet{esplora: newEsplora(cfg)}

	if path := cfg.walletDBPath(); path != "" {
		db, err := openDB(path)
		if err != nil {
			return nil, fmt.Errorf("unable to open wallet database: "+
				"%w", err)
		}
		l.db = db
	}

	w, err := wallet.New(&wallet.Config{
		Params:             cfg.params.Params,
		ExternalDescriptor: cfg.Descriptor,
		InternalDescriptor: cfg.ChangeDescriptor,
		Chain:              l.esplora,
		DB:                 l.db,
		StopGap:            cfg.StopGap,
		Parallelism:        cfg.Parallel,
		FeePolicy:          feePolicy,
		Inspect:            inspectScript,
	})
	if err != nil {
		l.Close()
		return nil, err
	}
	l.Wallet = w

	fmt.Fprintln(os.Stderr, "Syncing...")
	if err := w.Sync(ctx); err != nil {
		l.Close()
		return nil, err
	}

	return l, nil
}

// inspectScript traces the progress of a scan.
func inspectScript(kc waddrmgr.KeyChain, index uint32, pkScript []byte) {
	log.Tracef("Scanning %v keychain index %d, script %x", kc, index,
		pkScript)
}

// checkCreateDir checks that the path exists and is a directory.
// If path does not exist, it is created.
func checkCreateDir(path string) error {
	if fi, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			// Attempt data directory creation
			if err = os.MkdirAll(path, 0700); err != nil {
				return fmt.Errorf("cannot create directory: %w",
					err)
			}
		} else {
			return fmt.Errorf("error checking directory: %w", err)
		}
	} else {
		if !fi.IsDir() {
			return fmt.Errorf("path '%s' is not a directory", path)
		}
	}

	return nil
}
