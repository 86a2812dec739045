// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package descriptor

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// DerivedKey is the output script and key material a descriptor yields at
// one derivation index.
type DerivedKey struct {
	// Index is the wildcard index the key was derived at. It is always
	// zero for non-ranged descriptors.
	Index uint32

	// PkScript is the output script paying to the key.
	PkScript []byte

	// RedeemScript is the witness program wrapped by sh(wpkh) outputs
	// and nil for every other type.
	RedeemScript []byte

	// Address is the encoded form of PkScript.
	Address btcutil.Address

	// PubKey is the derived public key. For tr this is the internal key.
	PubKey *btcec.PublicKey

	// PrivKey holds the signing key when the descriptor is not
	// watch-only.
	PrivKey fn.Option[*btcec.PrivateKey]

	// Origin is the fingerprint of the root key and the full path to
	// PubKey, if known.
	Origin *KeyOrigin

	compressed bool
}

// SerializedPubKey returns the public key in the encoding committed to by
// the output script.
func (k *DerivedKey) SerializedPubKey() []byte {
	if k.compressed {
		return k.PubKey.SerializeCompressed()
	}

	return k.PubKey.SerializeUncompressed()
}

// Derive returns the script and keys at index. Derivation is deterministic.
// Non-ranged descriptors describe a single script and ignore index.
func (d *Descriptor) Derive(index uint32) (*DerivedKey, error) {
	if !d.key.ranged {
		index = 0
	}
	if index >= hdkeychain.HardenedKeyStart {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}

	derived := &DerivedKey{
		Index:      index,
		PrivKey:    fn.None[*btcec.PrivateKey](),
		compressed: d.key.compressed,
	}

	switch {
	case d.key.isExtended():
		path := d.key.path
		if d.key.ranged {
			path = append(append([]uint32(nil), path...), index)
		}

		key := d.key.extKey
		for _, idx := range path {
			child, err := key.Derive(idx)
			if err != nil {
				return nil, fmt.Errorf("%w: derive %d: %v",
					ErrInvalidIndex, idx, err)
			}
			key = child
		}

		pub, err := key.ECPubKey()
		if err != nil {
			return nil, err
		}
		derived.PubKey = pub

		if key.IsPrivate() {
			priv, err := key.ECPrivKey()
			if err != nil {
				return nil, err
			}
			derived.PrivKey = fn.Some(priv)
		}

		origin := d.key.rootOrigin()
		origin.Path = append(origin.Path, path...)
		derived.Origin = origin

	default:
		derived.PubKey = d.key.pubKey
		if d.key.wif != nil {
			derived.PrivKey = fn.Some(d.key.wif.PrivKey)
		}
		if d.key.origin != nil {
			derived.Origin = d.key.rootOrigin()
		}
	}

	if err := d.buildScript(derived); err != nil {
		return nil, err
	}

	return derived, nil
}

// DerivePrivKey returns the signing key at index, or ErrNoPrivateKey for a
// watch-only descriptor.
func (d *Descriptor) DerivePrivKey(index uint32) (*btcec.PrivateKey, error) {
	if !d.HasPrivateKey() {
		return nil, ErrNoPrivateKey
	}

	derived, err := d.Derive(index)
	if err != nil {
		return nil, err
	}

	return derived.PrivKey.UnwrapOrErr(ErrNoPrivateKey)
}

func (d *Descriptor) buildScript(k *DerivedKey) error {
	var (
		addr btcutil.Address
		err  error
	)

	switch d.typ {
	case TypePKH:
		addr, err = btcutil.NewAddressPubKeyHash(
			btcutil.Hash160(k.SerializedPubKey()), d.params,
		)

	case TypeWPKH:
		addr, err = btcutil.NewAddressWitnessPubKeyHash(
			btcutil.Hash160(k.SerializedPubKey()), d.params,
		)

	case TypeSHWPKH:
		var witAddr *btcutil.AddressWitnessPubKeyHash
		witAddr, err = btcutil.NewAddressWitnessPubKeyHash(
			btcutil.Hash160(k.SerializedPubKey()), d.params,
		)
		if err != nil {
			return err
		}
		k.RedeemScript, err = txscript.PayToAddrScript(witAddr)
		if err != nil {
			return err
		}
		addr, err = btcutil.NewAddressScriptHash(
			k.RedeemScript, d.params,
		)

	case TypeTR:
		outputKey := txscript.ComputeTaprootKeyNoScript(k.PubKey)
		addr, err = btcutil.NewAddressTaproot(
			schnorr.SerializePubKey(outputKey), d.params,
		)

	default:
		return fmt.Errorf("%w: unknown type %v", ErrInvalidDescriptor,
			d.typ)
	}
	if err != nil {
		return err
	}

	k.Address = addr
	k.PkScript, err = txscript.PayToAddrScript(addr)

	return err
}
