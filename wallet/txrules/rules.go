// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txrules provides the relay policy checks the wallet applies to the
// outputs it creates and the fee it pays.
package txrules

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	// DefaultRelayFeePerKb is the default minimum relay fee policy for a
	// mempool, one satoshi per virtual byte.
	DefaultRelayFeePerKb btcutil.Amount = 1000

	// DefaultDustRelayFeePerKb is the fee rate used to price the cost of
	// creating and later spending an output when deciding if it is dust.
	DefaultDustRelayFeePerKb btcutil.Amount = 3000
)

// Estimated sizes of an input spending an output, excluding the output
// itself. Witness inputs have the signature and public key discounted.
const (
	legacySpendSize  = 32 + 4 + 1 + 107 + 4
	witnessSpendSize = 32 + 4 + 1 + 107/4 + 4
)

// DustThreshold returns the smallest value an output paying to pkScript may
// carry without being considered dust.
func DustThreshold(pkScript []byte, relayFeePerKb btcutil.Amount) btcutil.Amount {
	totalSize := 8 + wire.VarIntSerializeSize(uint64(len(pkScript))) +
		len(pkScript)
	if txscript.IsWitnessProgram(pkScript) {
		totalSize += witnessSpendSize
	} else {
		totalSize += legacySpendSize
	}

	return btcutil.Amount(totalSize) * relayFeePerKb / 1000
}

// IsDustAmount determines whether an output of the given amount paying to
// pkScript would be considered dust. Transactions with dust outputs are not
// standard and are rejected by mempools with default policies.
func IsDustAmount(amount btcutil.Amount, pkScript []byte,
	relayFeePerKb btcutil.Amount) bool {

	return amount < DustThreshold(pkScript, relayFeePerKb)
}

// IsDustOutput determines whether a transaction output is considered dust.
func IsDustOutput(output *wire.TxOut, relayFeePerKb btcutil.Amount) bool {
	// Unspendable outputs which solely carry data are not checked for dust.
	if txscript.GetScriptClass(output.PkScript) == txscript.NullDataTy {
		return false
	}

	// All other unspendable outputs are considered dust.
	if txscript.IsUnspendable(output.PkScript) {
		return true
	}

	return IsDustAmount(
		btcutil.Amount(output.Value), output.PkScript, relayFeePerKb,
	)
}

// Transaction rule violations
var (
	ErrAmountNegative   = errors.New("transaction output amount is negative")
	ErrAmountExceedsMax = errors.New("transaction output amount exceeds maximum value")
	ErrOutputIsDust     = errors.New("transaction output is dust")
)

// CheckOutput performs simple consensus and policy tests on a transaction
// output.
func CheckOutput(output *wire.TxOut, relayFeePerKb btcutil.Amount) error {
	if output.Value < 0 {
		return ErrAmountNegative
	}
	if output.Value > btcutil.MaxSatoshi {
		return ErrAmountExceedsMax
	}
	if IsDustOutput(output, relayFeePerKb) {
		return ErrOutputIsDust
	}
	return nil
}

// FeeForSerializeSize calculates the required fee for a transaction of some
// arbitrary virtual size given a fee rate in satoshis per kilo virtual byte.
func FeeForSerializeSize(relayFeePerKb btcutil.Amount,
	txSerializeSize int) btcutil.Amount {

	fee := relayFeePerKb * btcutil.Amount(txSerializeSize) / 1000

	if fee == 0 && relayFeePerKb > 0 {
		fee = relayFeePerKb
	}

	if fee < 0 || fee > btcutil.MaxSatoshi {
		fee = btcutil.MaxSatoshi
	}

	return fee
}
