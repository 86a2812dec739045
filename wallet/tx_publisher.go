// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"

	"github.com/atlasgraph/t4wallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Publish broadcasts tx once and then records it in the ledger as
// unconfirmed, so the outputs it spends are no longer offered for new
// transactions. Nothing is recorded when the broadcast fails.
func (w *Wallet) Publish(ctx context.Context, tx *wire.MsgTx) error {
	chainClient, err := w.requireChainClient()
	if err != nil {
		return err
	}

	txHash := tx.TxHash()
	if err := chainClient.Broadcast(ctx, tx); err != nil {
		return mapError("failed to broadcast transaction "+
			txHash.String(), err)
	}

	log.Infof("Published transaction %v", txHash)

	w.mtx.Lock()
	defer w.mtx.Unlock()

	now := w.clock.Now()
	err = w.store.Apply(&wtxmgr.Update{
		Txs: []*wtxmgr.ObservedTx{{
			MsgTx:  tx,
			Status: wtxmgr.NewUnconfirmed(now),
		}},
		LastSeen: now,
	})
	if err != nil {
		return mapError("failed to record published transaction", err)
	}

	// Outputs paying back to the wallet use their scripts.
	for _, txOut := range tx.TxOut {
		entry, ok := w.addrMgr.LookupScript(txOut.PkScript)
		if !ok {
			continue
		}
		err := w.addrMgr.MarkUsed(entry.KeyChain, entry.Index)
		if err != nil {
			return mapError("failed to mark script used", err)
		}
	}

	return w.persist()
}

// Pay sends amount to an address: it builds, signs and publishes a
// transaction using the wallet's fee policy. The address must belong to the
// wallet's network.
func (w *Wallet) Pay(ctx context.Context, address string,
	amount btcutil.Amount) (*wire.MsgTx, error) {

	addr, err := btcutil.DecodeAddress(address, w.params)
	if err != nil {
		return nil, walletError(ErrInvalidRecipient, "invalid address "+
			address, err)
	}
	if !addr.IsForNet(w.params) {
		return nil, walletError(ErrInvalidRecipient, "address "+
			address+" is not for "+w.params.Name, nil)
	}

	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, walletError(ErrInvalidRecipient, "unsupported "+
			"address "+address, err)
	}

	ptx, err := w.CreateTransaction(pkScript, amount, w.feePolicy)
	if err != nil {
		return nil, err
	}

	tx, fullySigned, err := w.SignPsbt(ptx)
	if err != nil {
		return nil, err
	}
	if !fullySigned {
		return nil, walletError(ErrNotFinalized, "transaction has "+
			"unsigned inputs", nil)
	}

	if err := w.Publish(ctx, tx); err != nil {
		return nil, err
	}

	return tx, nil
}
