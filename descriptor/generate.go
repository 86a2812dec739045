// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package descriptor

import (
	"fmt"
	"strings"

	"github.com/atlasgraph/t4wallet/internal/zero"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"
)

// bip84Purpose is the purpose level of BIP-84 native segwit key paths.
const bip84Purpose = 84

// KeyPair is a freshly generated descriptor in its private and public
// forms.
type KeyPair struct {
	Private string
	Public  string
}

// GenerateKeyPair creates a new random private key and returns the wpkh
// descriptor paying to it.
func GenerateKeyPair(params *chaincfg.Params) (*KeyPair, error) {
	privKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	defer privKey.Zero()

	wif, err := btcutil.NewWIF(privKey, params, true)
	if err != nil {
		return nil, err
	}

	desc, err := Parse(TypeWPKH.wrap(wif.String()), params)
	if err != nil {
		return nil, err
	}

	private, err := desc.PrivateString()
	if err != nil {
		return nil, err
	}

	return &KeyPair{Private: private, Public: desc.String()}, nil
}

// FromMnemonic restores the BIP-84 account 0 descriptors of a BIP-39
// mnemonic. The external descriptor derives /0/* and the internal one /1/*.
func FromMnemonic(mnemonic, passphrase string,
	params *chaincfg.Params) (*Descriptor, *Descriptor, error) {

	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, nil, fmt.Errorf("%w: invalid mnemonic",
			ErrInvalidDescriptor)
	}

	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	defer zero.Bytes(seed)

	master, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, nil, err
	}
	defer master.Zero()

	account := fmt.Sprintf("%s/%d'/%d'/0'", master.String(), bip84Purpose,
		params.HDCoinType)

	external, err := Parse(TypeWPKH.wrap(account+"/0/*"), params)
	if err != nil {
		return nil, nil, err
	}
	internal, err := Parse(TypeWPKH.wrap(account+"/1/*"), params)
	if err != nil {
		return nil, nil, err
	}

	return external, internal, nil
}
