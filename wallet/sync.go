// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"

	"github.com/atlasgraph/t4wallet/chain"
	"github.com/atlasgraph/t4wallet/waddrmgr"
)

// Sync runs a full scan of both keychains against the chain backend and
// merges the result into the ledger. A failed scan or a conflicting update
// leaves the ledger and the watermarks untouched.
func (w *Wallet) Sync(ctx context.Context) error {
	chainClient, err := w.requireChainClient()
	if err != nil {
		return err
	}

	w.mtx.Lock()
	defer w.mtx.Unlock()

	update, err := chain.FullScan(ctx, chainClient, &chain.ScanRequest{
		Scripts:     w.addrMgr,
		StopGap:     w.stopGap,
		Parallelism: w.parallelism,
		KnownBlocks: w.knownBlocks(),
		Inspect:     w.inspect,
		Clock:       w.clock,
	})
	if err != nil {
		return mapError("full scan failed", err)
	}

	if err := w.store.Apply(update); err != nil {
		return mapError("failed to apply sync update", err)
	}

	for _, kc := range waddrmgr.KeyChains {
		index, ok := update.LastActive[kc]
		if !ok {
			continue
		}
		if err := w.addrMgr.MarkUsed(kc, index); err != nil {
			return mapError("failed to mark script used", err)
		}
	}

	if err := w.persist(); err != nil {
		return err
	}

	bal := w.store.Balance()
	log.Infof("Synced to height %d: %d %s, balance %v (%v confirmed)",
		update.TipHeight, len(update.Txs),
		pickNoun(len(update.Txs), "transaction", "transactions"),
		bal.Total(), bal.Confirmed)

	return nil
}
