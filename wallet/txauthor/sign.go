// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txauthor

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ErrMissingRedeemScript is returned when a nested witness input is signed
// without its witness program.
var ErrMissingRedeemScript = errors.New("nested witness input requires " +
	"a redeem script")

// InputSignature is a signature over one input and the sighash type it
// commits to. Signatures of ECDSA inputs carry the sighash type as their
// last byte, taproot key spend signatures only when it is not the default.
type InputSignature struct {
	Signature []byte
	HashType  txscript.SigHashType
	Taproot   bool
}

// SignInput signs input idx of tx, which spends prevOut, with privKey. The
// signing algorithm follows the class of the spent script: BIP-341 key
// spends for taproot, BIP-143 for native and nested witness key hashes and
// the legacy digest for everything else. redeemScript is the witness program
// of a nested witness input and nil otherwise.
func SignInput(tx *wire.MsgTx, hashCache *txscript.TxSigHashes, idx int,
	prevOut *wire.TxOut, redeemScript []byte,
	privKey *btcec.PrivateKey) (*InputSignature, error) {

	pkScript := prevOut.PkScript

	switch {
	case txscript.IsPayToTaproot(pkScript):
		sig, err := txscript.RawTxInTaprootSignature(
			tx, hashCache, idx, prevOut.Value, pkScript, nil,
			txscript.SigHashDefault, privKey,
		)
		if err != nil {
			return nil, err
		}

		return &InputSignature{
			Signature: sig,
			HashType:  txscript.SigHashDefault,
			Taproot:   true,
		}, nil

	case txscript.IsPayToScriptHash(pkScript):
		if len(redeemScript) == 0 {
			return nil, ErrMissingRedeemScript
		}

		sig, err := txscript.RawTxInWitnessSignature(
			tx, hashCache, idx, prevOut.Value, redeemScript,
			txscript.SigHashAll, privKey,
		)
		if err != nil {
			return nil, err
		}

		return &InputSignature{
			Signature: sig, HashType: txscript.SigHashAll,
		}, nil

	case txscript.IsPayToWitnessPubKeyHash(pkScript):
		sig, err := txscript.RawTxInWitnessSignature(
			tx, hashCache, idx, prevOut.Value, pkScript,
			txscript.SigHashAll, privKey,
		)
		if err != nil {
			return nil, err
		}

		return &InputSignature{
			Signature: sig, HashType: txscript.SigHashAll,
		}, nil

	default:
		sig, err := txscript.RawTxInSignature(
			tx, idx, pkScript, txscript.SigHashAll, privKey,
		)
		if err != nil {
			return nil, err
		}

		return &InputSignature{
			Signature: sig, HashType: txscript.SigHashAll,
		}, nil
	}
}
