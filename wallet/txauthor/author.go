// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txauthor provides transaction creation code for wallets.
package txauthor

import (
	"errors"
	"fmt"

	"github.com/atlasgraph/t4wallet/wallet/txrules"
	"github.com/atlasgraph/t4wallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ReplaceableSequence is the input sequence number used by every authored
// transaction. It signals opt-in replace-by-fee while leaving the lock time
// enforced.
const ReplaceableSequence = wire.MaxTxInSequenceNum - 2

var (
	// ErrInsufficientFunds is returned when the supplied credits cannot
	// pay for the outputs and the fee.
	ErrInsufficientFunds = errors.New("insufficient funds available to " +
		"construct transaction")

	// ErrNoOutputs is returned when a transaction without outputs is
	// requested.
	ErrNoOutputs = errors.New("transaction has no outputs")
)

// SelectionError describes a failed coin selection. It matches
// ErrInsufficientFunds with errors.Is.
type SelectionError struct {
	TargetAmount btcutil.Amount
	TxFee        btcutil.Amount
	Available    btcutil.Amount
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("%v: amount: %v, minimum fee: %v, available "+
		"amount: %v", ErrInsufficientFunds, e.TargetAmount, e.TxFee,
		e.Available)
}

func (e *SelectionError) Unwrap() error {
	return ErrInsufficientFunds
}

// SumOutputValues sums up the list of TxOuts and returns an Amount.
func SumOutputValues(outputs []*wire.TxOut) (totalOutput btcutil.Amount) {
	for _, txOut := range outputs {
		totalOutput += btcutil.Amount(txOut.Value)
	}
	return totalOutput
}

// FeePolicy prices a transaction. A non-zero Absolute fee is paid as is,
// otherwise the fee is FeeRatePerKb applied to the estimated virtual size.
type FeePolicy struct {
	FeeRatePerKb btcutil.Amount
	Absolute     btcutil.Amount
}

// DefaultFeePolicy pays one satoshi per virtual byte.
var DefaultFeePolicy = FeePolicy{FeeRatePerKb: txrules.DefaultRelayFeePerKb}

// Fee returns the fee for a transaction of the given virtual size.
func (p FeePolicy) Fee(vsize int) btcutil.Amount {
	if p.Absolute > 0 {
		return p.Absolute
	}

	return txrules.FeeForSerializeSize(p.FeeRatePerKb, vsize)
}

func (p FeePolicy) String() string {
	if p.Absolute > 0 {
		return fmt.Sprintf("absolute %v", p.Absolute)
	}

	return fmt.Sprintf("%v/kvB", p.FeeRatePerKb)
}

// ChangeSource provides change output scripts for transaction creation.
type ChangeSource struct {
	// NewScript returns the script a change output would pay to. It must
	// not reserve the script: whether change is used is only known once
	// the transaction is authored.
	NewScript func() ([]byte, error)

	// ScriptSize is the size in bytes of scripts produced by NewScript.
	ScriptSize int
}

// AuthoredTx holds the state of a newly-created transaction and the change
// output (if one was added).
type AuthoredTx struct {
	Tx              *wire.MsgTx
	Credits         []wtxmgr.Credit
	PrevScripts     [][]byte
	PrevInputValues []btcutil.Amount
	TotalInput      btcutil.Amount
	Fee             btcutil.Amount
	ChangeIndex     int // negative if no change
}

// NewUnsignedTransaction creates an unsigned transaction paying to one or
// more non-change outputs.
//
// Credits are selected in the order given, first fit, until their total
// covers the outputs and the fee of a transaction spending them. The fee is
// estimated with the worst case virtual size of the signed transaction.
//
// When the leftover value is enough for a change output that is not dust, a
// change output paying to the script of changeSource is appended and
// ChangeIndex is set to its position. Otherwise the leftover is absorbed into
// the fee and ChangeIndex is -1.
//
// Every input signals replace-by-fee. If the credits are insufficient, a
// *SelectionError matching ErrInsufficientFunds is returned.
func NewUnsignedTransaction(outputs []*wire.TxOut, policy FeePolicy,
	credits []wtxmgr.Credit, changeSource *ChangeSource) (*AuthoredTx,
	error) {

	if len(outputs) == 0 {
		return nil, ErrNoOutputs
	}

	changeScript, err := changeSource.NewScript()
	if err != nil {
		return nil, err
	}

	state := newInputState(outputs, policy, changeScript)
	for _, credit := range credits {
		if state.enoughInput() {
			break
		}
		state.add(credit)
	}

	if !state.enoughInput() {
		return nil, &SelectionError{
			TargetAmount: state.targetAmount,
			TxFee:        state.txFee,
			Available:    state.inputTotal,
		}
	}

	numberInputs := len(state.inputs)
	txIn := make([]*wire.TxIn, 0, numberInputs)
	inputValues := make([]btcutil.Amount, 0, numberInputs)
	scripts := make([][]byte, 0, numberInputs)
	for _, input := range state.inputs {
		in := wire.NewTxIn(&input.OutPoint, nil, nil)
		in.Sequence = ReplaceableSequence

		txIn = append(txIn, in)
		inputValues = append(inputValues, input.Amount)
		scripts = append(scripts, input.PkScript)
	}

	l := len(outputs)
	unsignedTransaction := &wire.MsgTx{
		Version:  wire.TxVersion,
		TxIn:     txIn,
		TxOut:    outputs[:l:l],
		LockTime: 0,
	}

	fee := state.inputTotal - state.targetAmount
	changeIndex := -1
	if change, ok := state.change(); ok {
		unsignedTransaction.TxOut = append(
			unsignedTransaction.TxOut,
			wire.NewTxOut(int64(change), changeScript),
		)
		changeIndex = l
		fee -= change
	}

	return &AuthoredTx{
		Tx:              unsignedTransaction,
		Credits:         state.inputs,
		PrevScripts:     scripts,
		PrevInputValues: inputValues,
		TotalInput:      state.inputTotal,
		Fee:             fee,
		ChangeIndex:     changeIndex,
	}, nil
}

// TXPrevOutFetcher creates a txscript.PrevOutFetcher from a given slice of
// previous pk scripts and input values.
func TXPrevOutFetcher(tx *wire.MsgTx, prevPkScripts [][]byte,
	inputValues []btcutil.Amount) (*txscript.MultiPrevOutFetcher, error) {

	if len(tx.TxIn) != len(prevPkScripts) {
		return nil, errors.New("tx.TxIn and prevPkScripts slices " +
			"must have equal length")
	}
	if len(tx.TxIn) != len(inputValues) {
		return nil, errors.New("tx.TxIn and inputValues slices " +
			"must have equal length")
	}

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for idx, txin := range tx.TxIn {
		fetcher.AddPrevOut(txin.PreviousOutPoint, &wire.TxOut{
			Value:    int64(inputValues[idx]),
			PkScript: prevPkScripts[idx],
		})
	}

	return fetcher, nil
}

// PrevOutFetcher returns a fetcher for the outputs spent by tx.
func (tx *AuthoredTx) PrevOutFetcher() (*txscript.MultiPrevOutFetcher, error) {
	return TXPrevOutFetcher(tx.Tx, tx.PrevScripts, tx.PrevInputValues)
}
