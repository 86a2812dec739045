// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"fmt"

	"github.com/atlasgraph/t4wallet/waddrmgr"
	"github.com/atlasgraph/t4wallet/wallet/txauthor"
	"github.com/atlasgraph/t4wallet/wallet/txrules"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// InputOwner is the keychain position of the script an input spends.
type InputOwner struct {
	KeyChain waddrmgr.KeyChain
	Index    uint32
}

// PartialTx is an unsigned transaction created by the wallet together with
// the information needed to sign it.
type PartialTx struct {
	// Packet carries the unsigned transaction and, per input, the spent
	// output, the redeem script of nested inputs and the key origin.
	Packet *psbt.Packet

	// Fee is the value of the inputs not paid to any output.
	Fee btcutil.Amount

	// ChangeIndex is the position of the change output, or -1 when the
	// transaction has none.
	ChangeIndex int

	// Inputs holds the owner of the script spent by each input.
	Inputs []InputOwner
}

// validateRecipient checks that an output paying amount to pkScript is
// standard and spendable.
func validateRecipient(pkScript []byte, amount btcutil.Amount) error {
	if amount <= 0 {
		return walletError(ErrInvalidRecipient, fmt.Sprintf("amount %v "+
			"must be positive", amount), nil)
	}

	switch txscript.GetScriptClass(pkScript) {
	case txscript.NonStandardTy:
		return walletError(ErrInvalidRecipient, "recipient script is "+
			"not standard", nil)

	case txscript.NullDataTy:
		return walletError(ErrInvalidRecipient, "recipient script is "+
			"unspendable", nil)
	}

	output := wire.NewTxOut(int64(amount), pkScript)
	err := txrules.CheckOutput(output, txrules.DefaultDustRelayFeePerKb)
	if err != nil {
		return walletError(ErrInvalidRecipient, "invalid payment "+
			"output", err)
	}

	return nil
}

// CreateTransaction builds an unsigned transaction paying amount to
// pkScript from the wallet's spendable outputs.
//
// Outputs are selected first fit in UTXOs order until they cover the amount
// and the fee. Leftover value goes to the next unused internal script unless
// it would be dust, in which case it is added to the fee. The internal
// keychain only advances when a change output is created. Every input
// signals replace-by-fee.
func (w *Wallet) CreateTransaction(pkScript []byte, amount btcutil.Amount,
	policy FeePolicy) (*PartialTx, error) {

	if err := validateRecipient(pkScript, amount); err != nil {
		return nil, err
	}
	if policy == (FeePolicy{}) {
		policy = w.feePolicy
	}

	w.mtx.Lock()
	defer w.mtx.Unlock()

	if total := w.store.Balance().Total(); total < amount {
		selErr := &txauthor.SelectionError{
			TargetAmount: amount,
			Available:    total,
		}
		return nil, walletError(ErrInsufficientFunds, "failed to "+
			"fund transaction", selErr)
	}

	change, err := w.addrMgr.PeekUnused(waddrmgr.Internal)
	if err != nil {
		return nil, mapError("failed to derive change script", err)
	}
	changeSource := &txauthor.ChangeSource{
		NewScript: func() ([]byte, error) {
			return change.PkScript, nil
		},
		ScriptSize: len(change.PkScript),
	}

	outputs := []*wire.TxOut{wire.NewTxOut(int64(amount), pkScript)}
	tx, err := txauthor.NewUnsignedTransaction(
		outputs, policy, w.store.SpendableUTXOs(), changeSource,
	)
	if err != nil {
		return nil, mapError("failed to fund transaction", err)
	}

	// The change script is revealed only once the packet is built.
	ptx, err := w.newPartialTx(tx, change)
	if err != nil {
		return nil, err
	}

	if tx.ChangeIndex >= 0 {
		revealed, err := w.addrMgr.NextUnused(waddrmgr.Internal)
		if err != nil {
			return nil, mapError("failed to reveal change script",
				err)
		}
		if !bytes.Equal(revealed.PkScript, change.PkScript) {
			return nil, fmt.Errorf("change script %d does not "+
				"match revealed script %d", change.Index,
				revealed.Index)
		}

		if err := w.persist(); err != nil {
			return nil, err
		}
	}

	log.Infof("Created transaction %v paying %v with fee %v (%v), "+
		"%d %s", tx.Tx.TxHash(), amount, tx.Fee, policy,
		len(tx.Tx.TxIn), pickNoun(len(tx.Tx.TxIn), "input", "inputs"))

	return ptx, nil
}
