// Copyright (c) 2020 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"
	"fmt"

	"github.com/atlasgraph/t4wallet/descriptor"
	"github.com/atlasgraph/t4wallet/wallet/txauthor"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// SignPsbt signs every input of ptx the wallet holds a private key for and,
// if no input is left unsigned, finalizes the packet and returns the
// extracted transaction.
//
// Inputs whose keychain is watch-only are left unsigned. In that case the
// returned transaction is nil, the boolean is false, and the signatures that
// could be made are kept in the packet.
func (w *Wallet) SignPsbt(ptx *PartialTx) (*wire.MsgTx, bool, error) {
	packet := ptx.Packet
	if len(ptx.Inputs) != len(packet.Inputs) {
		return nil, false, fmt.Errorf("packet has %d inputs but %d "+
			"owners", len(packet.Inputs), len(ptx.Inputs))
	}

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	prevOuts := make([]*wire.TxOut, len(packet.Inputs))
	for idx, txIn := range packet.UnsignedTx.TxIn {
		prevOut, err := prevOutput(packet, idx)
		if err != nil {
			return nil, false, err
		}
		prevOuts[idx] = prevOut
		fetcher.AddPrevOut(txIn.PreviousOutPoint, prevOut)
	}
	hashCache := txscript.NewTxSigHashes(packet.UnsignedTx, fetcher)

	var unsigned int
	for idx, owner := range ptx.Inputs {
		in := &packet.Inputs[idx]
		if isSigned(in) {
			continue
		}

		desc := w.addrMgr.Descriptor(owner.KeyChain)
		if desc == nil {
			return nil, false, fmt.Errorf("input %d: unknown "+
				"keychain %v", idx, owner.KeyChain)
		}

		privKey, err := desc.DerivePrivKey(owner.Index)
		if errors.Is(err, descriptor.ErrNoPrivateKey) {
			log.Debugf("Leaving input %d unsigned: %v keychain is "+
				"watch-only", idx, owner.KeyChain)
			unsigned++

			continue
		}
		if err != nil {
			return nil, false, mapError(fmt.Sprintf("input %d", idx),
				err)
		}

		sig, err := txauthor.SignInput(
			packet.UnsignedTx, hashCache, idx, prevOuts[idx],
			in.RedeemScript, privKey,
		)
		if err != nil {
			privKey.Zero()
			return nil, false, fmt.Errorf("unable to sign input "+
				"%d: %w", idx, err)
		}

		if sig.Taproot {
			in.TaprootKeySpendSig = sig.Signature
		} else {
			entry, err := w.addrMgr.Script(
				owner.KeyChain, owner.Index,
			)
			if err != nil {
				privKey.Zero()
				return nil, false, mapError("failed to derive "+
					"input script", err)
			}

			in.PartialSigs = append(in.PartialSigs, &psbt.PartialSig{
				PubKey:    entry.Key().SerializedPubKey(),
				Signature: sig.Signature,
			})
		}
		privKey.Zero()
	}

	if unsigned > 0 {
		log.Infof("Signed %d of %d inputs, transaction is not final",
			len(ptx.Inputs)-unsigned, len(ptx.Inputs))

		return nil, false, nil
	}

	if err := psbt.MaybeFinalizeAll(packet); err != nil {
		return nil, false, fmt.Errorf("error finalizing PSBT: %w", err)
	}

	tx, err := psbt.Extract(packet)
	if err != nil {
		return nil, false, fmt.Errorf("error extracting transaction: "+
			"%w", err)
	}

	return tx, true, nil
}

// isSigned reports whether an input already carries a signature or final
// scripts.
func isSigned(in *psbt.PInput) bool {
	return len(in.PartialSigs) > 0 || len(in.TaprootKeySpendSig) > 0 ||
		len(in.FinalScriptSig) > 0 || len(in.FinalScriptWitness) > 0
}
