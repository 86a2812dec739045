// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txsizes estimates the size of transactions spending outputs of the
// single-key script policies a descriptor wallet can own.
package txsizes

import (
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Worst case script and input/output sizes, in bytes.
const (
	// RedeemP2PKHSigScriptSize is the worst case size of a signature
	// script redeeming a P2PKH output: a 73 byte DER signature and a 65
	// byte uncompressed public key, each behind a data push. The output
	// script does not tell whether the key is compressed.
	RedeemP2PKHSigScriptSize = 1 + 73 + 1 + 65

	// P2PKHPkScriptSize is OP_DUP OP_HASH160 <20> OP_EQUALVERIFY
	// OP_CHECKSIG.
	P2PKHPkScriptSize = 1 + 1 + 1 + 20 + 1 + 1

	// P2WPKHPkScriptSize is OP_0 <20>.
	P2WPKHPkScriptSize = 1 + 1 + 20

	// NestedP2WPKHPkScriptSize is OP_HASH160 <20> OP_EQUAL.
	NestedP2WPKHPkScriptSize = 1 + 1 + 20 + 1

	// P2TRPkScriptSize is OP_1 <32>.
	P2TRPkScriptSize = 1 + 1 + 32

	// RedeemNestedP2WPKHScriptSize is the signature script of a nested
	// P2WPKH spend: a single push of the 22 byte witness program.
	RedeemNestedP2WPKHScriptSize = 1 + 1 + 1 + 20

	// outpoint, script length varint and sequence.
	inputOverhead = 32 + 4 + 1 + 4

	RedeemP2PKHInputSize        = inputOverhead + RedeemP2PKHSigScriptSize
	RedeemP2WPKHInputSize       = inputOverhead
	RedeemNestedP2WPKHInputSize = inputOverhead + RedeemNestedP2WPKHScriptSize
	RedeemP2TRInputSize         = inputOverhead
	P2PKHOutputSize             = 8 + 1 + P2PKHPkScriptSize
	P2WPKHOutputSize            = 8 + 1 + P2WPKHPkScriptSize
	NestedP2WPKHOutputSize      = 8 + 1 + NestedP2WPKHPkScriptSize
	P2TROutputSize              = 8 + 1 + P2TRPkScriptSize

	// RedeemP2TRInputWitnessWeight is a key path spend: the stack item
	// count and a 64 byte schnorr signature with an explicit sighash
	// flag.
	RedeemP2TRInputWitnessWeight = 1 + 1 + 65

	// RedeemP2WPKHInputWitnessWeight is the stack item count, a DER
	// signature and a compressed public key.
	RedeemP2WPKHInputWitnessWeight = 1 + 1 + 73 + 1 + 33
)

// InputCounts tallies the inputs of a transaction by the kind of output they
// spend.
type InputCounts struct {
	P2PKH        int
	NestedP2WPKH int
	P2WPKH       int
	P2TR         int
}

// Add counts one input spending pkScript. Unrecognized scripts are counted
// as P2PKH, the largest single-key redemption.
func (c *InputCounts) Add(pkScript []byte) {
	switch {
	case txscript.IsPayToWitnessPubKeyHash(pkScript):
		c.P2WPKH++
	case txscript.IsPayToTaproot(pkScript):
		c.P2TR++
	case txscript.IsPayToScriptHash(pkScript):
		c.NestedP2WPKH++
	default:
		c.P2PKH++
	}
}

// Total returns the number of inputs.
func (c InputCounts) Total() int {
	return c.P2PKH + c.NestedP2WPKH + c.P2WPKH + c.P2TR
}

func (c InputCounts) witnessInputs() int {
	return c.NestedP2WPKH + c.P2WPKH + c.P2TR
}

// SumOutputSerializeSizes sums up the serialized size of the supplied outputs.
func SumOutputSerializeSizes(outputs []*wire.TxOut) int {
	var size int
	for _, txOut := range outputs {
		size += txOut.SerializeSize()
	}
	return size
}

// EstimateVirtualSize returns a worst case virtual size estimate for a signed
// transaction spending the counted inputs and paying to txOuts. A positive
// changeScriptSize adds one more output with a script of that length.
func EstimateVirtualSize(ins InputCounts, txOuts []*wire.TxOut,
	changeScriptSize int) int {

	outputCount := len(txOuts)
	changeOutputSize := 0
	if changeScriptSize > 0 {
		changeOutputSize = 8 +
			wire.VarIntSerializeSize(uint64(changeScriptSize)) +
			changeScriptSize
		outputCount++
	}

	baseSize := 8 +
		wire.VarIntSerializeSize(uint64(ins.Total())) +
		wire.VarIntSerializeSize(uint64(outputCount)) +
		ins.P2PKH*RedeemP2PKHInputSize +
		ins.NestedP2WPKH*RedeemNestedP2WPKHInputSize +
		ins.P2WPKH*RedeemP2WPKHInputSize +
		ins.P2TR*RedeemP2TRInputSize +
		SumOutputSerializeSizes(txOuts) +
		changeOutputSize

	// Segwit marker and flag, then one witness per input. Legacy inputs
	// in a segwit transaction carry an empty witness.
	witnessWeight := 0
	if ins.witnessInputs() > 0 {
		witnessWeight = 2 +
			(ins.NestedP2WPKH+ins.P2WPKH)*RedeemP2WPKHInputWitnessWeight +
			ins.P2TR*RedeemP2TRInputWitnessWeight +
			ins.P2PKH
	}

	return baseSize + (witnessWeight+blockchain.WitnessScaleFactor-1)/
		blockchain.WitnessScaleFactor
}

// InputVirtualSize returns the worst case virtual size of a single input
// spending pkScript.
func InputVirtualSize(pkScript []byte) int {
	var baseSize, witnessWeight int
	switch {
	case txscript.IsPayToScriptHash(pkScript):
		baseSize = RedeemNestedP2WPKHInputSize
		witnessWeight = RedeemP2WPKHInputWitnessWeight

	case txscript.IsPayToWitnessPubKeyHash(pkScript):
		baseSize = RedeemP2WPKHInputSize
		witnessWeight = RedeemP2WPKHInputWitnessWeight

	case txscript.IsPayToTaproot(pkScript):
		baseSize = RedeemP2TRInputSize
		witnessWeight = RedeemP2TRInputWitnessWeight

	default:
		baseSize = RedeemP2PKHInputSize
	}

	return baseSize + (witnessWeight+blockchain.WitnessScaleFactor-1)/
		blockchain.WitnessScaleFactor
}
