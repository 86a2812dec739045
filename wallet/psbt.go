// Copyright (c) 2020 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"fmt"

	"github.com/atlasgraph/t4wallet/descriptor"
	"github.com/atlasgraph/t4wallet/waddrmgr"
	"github.com/atlasgraph/t4wallet/wallet/txauthor"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// newPartialTx wraps an authored transaction in a PSBT packet, decorating
// every input with the output it spends and every wallet output with its
// key origin.
func (w *Wallet) newPartialTx(tx *txauthor.AuthoredTx,
	change waddrmgr.ScriptEntry) (*PartialTx, error) {

	packet, err := psbt.NewFromUnsignedTx(tx.Tx)
	if err != nil {
		return nil, fmt.Errorf("failed to create PSBT: %w", err)
	}

	owners := make([]InputOwner, len(tx.Credits))
	for idx := range tx.Credits {
		credit := &tx.Credits[idx]

		entry, err := w.addrMgr.Script(credit.KeyChain, credit.Index)
		if err != nil {
			return nil, mapError("failed to derive input script",
				err)
		}

		utxo := wire.NewTxOut(int64(credit.Amount), credit.PkScript)
		err = w.addInputInfo(&packet.Inputs[idx], credit.OutPoint, utxo,
			entry.Key())
		if err != nil {
			return nil, err
		}

		owners[idx] = InputOwner{
			KeyChain: credit.KeyChain,
			Index:    credit.Index,
		}
	}

	if tx.ChangeIndex >= 0 {
		packet.Outputs[tx.ChangeIndex] = createOutputInfo(
			tx.Tx.TxOut[tx.ChangeIndex], change.Key(),
		)
	}

	return &PartialTx{
		Packet:      packet,
		Fee:         tx.Fee,
		ChangeIndex: tx.ChangeIndex,
		Inputs:      owners,
	}, nil
}

// addInputInfo adds the spent output and the derivation info of key to a
// PSBT input.
func (w *Wallet) addInputInfo(in *psbt.PInput, prevOut wire.OutPoint,
	utxo *wire.TxOut, key *descriptor.DerivedKey) error {

	switch txscript.GetScriptClass(utxo.PkScript) {
	case txscript.WitnessV1TaprootTy:
		addInputInfoSegWitV1(in, utxo, key)
		return nil

	case txscript.WitnessV0PubKeyHashTy, txscript.ScriptHashTy:
		prevTx, err := w.prevTx(prevOut)
		if err != nil {
			return err
		}
		addInputInfoSegWitV0(in, prevTx, utxo, key)
		return nil

	default:
		prevTx, err := w.prevTx(prevOut)
		if err != nil {
			return err
		}
		in.NonWitnessUtxo = prevTx
		in.SighashType = txscript.SigHashAll
		in.Bip32Derivation = bip32Derivation(key)
		return nil
	}
}

// prevTx returns the ledger's copy of the transaction that created an
// output.
func (w *Wallet) prevTx(op wire.OutPoint) (*wire.MsgTx, error) {
	rec, ok := w.store.Tx(&op.Hash)
	if !ok {
		return nil, fmt.Errorf("transaction %v of spent output is not "+
			"in the ledger", op.Hash)
	}

	return rec.MsgTx, nil
}

// addInputInfoSegWitV0 adds the UTXO and BIP32 derivation info for a SegWit
// v0 PSBT input (p2wkh, np2wkh).
func addInputInfoSegWitV0(in *psbt.PInput, prevTx *wire.MsgTx,
	utxo *wire.TxOut, key *descriptor.DerivedKey) {

	// The full previous transaction is included as well, so signers can
	// verify the spent amount (CVE-2020-14199).
	in.NonWitnessUtxo = prevTx
	in.WitnessUtxo = utxo
	in.SighashType = txscript.SigHashAll
	in.Bip32Derivation = bip32Derivation(key)

	// Nil for native p2wkh.
	in.RedeemScript = key.RedeemScript
}

// addInputInfoSegWitV1 adds the UTXO and taproot derivation info for a
// key-path-only p2tr input.
func addInputInfoSegWitV1(in *psbt.PInput, utxo *wire.TxOut,
	key *descriptor.DerivedKey) {

	in.WitnessUtxo = utxo
	in.SighashType = txscript.SigHashDefault
	in.TaprootInternalKey = schnorr.SerializePubKey(key.PubKey)
	in.TaprootBip32Derivation = taprootDerivation(key)
}

// createOutputInfo returns the PSBT output info of a wallet-owned output.
func createOutputInfo(txOut *wire.TxOut,
	key *descriptor.DerivedKey) psbt.POutput {

	if txscript.IsPayToTaproot(txOut.PkScript) {
		return psbt.POutput{
			TaprootInternalKey:     schnorr.SerializePubKey(key.PubKey),
			TaprootBip32Derivation: taprootDerivation(key),
		}
	}

	out := psbt.POutput{
		Bip32Derivation: bip32Derivation(key),
	}

	// Nested outputs are only spendable with their witness program.
	out.RedeemScript = key.RedeemScript

	return out
}

// bip32Derivation returns the derivation info of a key, or nil when the
// descriptor carries no key origin.
func bip32Derivation(key *descriptor.DerivedKey) []*psbt.Bip32Derivation {
	if key.Origin == nil {
		return nil
	}

	return []*psbt.Bip32Derivation{{
		PubKey:               key.SerializedPubKey(),
		MasterKeyFingerprint: key.Origin.FingerprintUint32(),
		Bip32Path:            key.Origin.Path,
	}}
}

// taprootDerivation is the x-only counterpart of bip32Derivation.
func taprootDerivation(
	key *descriptor.DerivedKey) []*psbt.TaprootBip32Derivation {

	if key.Origin == nil {
		return nil
	}

	return []*psbt.TaprootBip32Derivation{{
		XOnlyPubKey:          schnorr.SerializePubKey(key.PubKey),
		MasterKeyFingerprint: key.Origin.FingerprintUint32(),
		Bip32Path:            key.Origin.Path,
	}}
}

// prevOutput returns the output spent by input idx of a packet, preferring
// the witness UTXO.
func prevOutput(packet *psbt.Packet, idx int) (*wire.TxOut, error) {
	in := &packet.Inputs[idx]
	if in.WitnessUtxo != nil {
		return in.WitnessUtxo, nil
	}

	op := packet.UnsignedTx.TxIn[idx].PreviousOutPoint
	if in.NonWitnessUtxo != nil &&
		int(op.Index) < len(in.NonWitnessUtxo.TxOut) {

		return in.NonWitnessUtxo.TxOut[op.Index], nil
	}

	return nil, fmt.Errorf("input %d has no UTXO information", idx)
}
