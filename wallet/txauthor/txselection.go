// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txauthor

import (
	"github.com/atlasgraph/t4wallet/wallet/txrules"
	"github.com/atlasgraph/t4wallet/wallet/txsizes"
	"github.com/atlasgraph/t4wallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// inputState tracks the credits selected so far and the fee a transaction
// spending them would pay.
type inputState struct {
	policy FeePolicy

	// txFee is the fee of the transaction without a change output.
	txFee btcutil.Amount

	inputTotal   btcutil.Amount
	targetAmount btcutil.Amount

	changeScript []byte

	counts  txsizes.InputCounts
	inputs  []wtxmgr.Credit
	outputs []*wire.TxOut
}

func newInputState(outputs []*wire.TxOut, policy FeePolicy,
	changeScript []byte) *inputState {

	t := &inputState{
		policy:       policy,
		targetAmount: SumOutputValues(outputs),
		changeScript: changeScript,
		outputs:      outputs,
	}
	t.txFee = t.policy.Fee(t.virtualSizeEstimate(false))

	return t
}

// virtualSizeEstimate estimates the size of the signed transaction spending
// the selected inputs, with or without a change output.
func (t *inputState) virtualSizeEstimate(change bool) int {
	changeScriptSize := 0
	if change {
		changeScriptSize = len(t.changeScript)
	}

	return txsizes.EstimateVirtualSize(t.counts, t.outputs, changeScriptSize)
}

// enoughInput reports whether the selected inputs pay for the outputs and
// the fee of a transaction without change.
func (t *inputState) enoughInput() bool {
	return len(t.inputs) > 0 && t.inputTotal >= t.targetAmount+t.txFee
}

// add selects one more credit.
func (t *inputState) add(credit wtxmgr.Credit) {
	t.inputs = append(t.inputs, credit)
	t.inputTotal += credit.Amount
	t.counts.Add(credit.PkScript)
	t.txFee = t.policy.Fee(t.virtualSizeEstimate(false))
}

// change returns the value left for a change output after paying the fee of
// the larger transaction that includes it. The second return is false when
// that value would be dust.
func (t *inputState) change() (btcutil.Amount, bool) {
	fee := t.policy.Fee(t.virtualSizeEstimate(true))
	change := t.inputTotal - t.targetAmount - fee
	if change <= 0 {
		return 0, false
	}

	if txrules.IsDustAmount(change, t.changeScript,
		txrules.DefaultDustRelayFeePerKb) {

		return 0, false
	}

	return change, true
}
