// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package waddrmgr

import (
	"fmt"

	"github.com/atlasgraph/t4wallet/descriptor"
	"github.com/btcsuite/btcd/btcutil"
)

// KeyChain identifies one of the two independent derivation sequences of a
// wallet.
type KeyChain uint8

const (
	// External is the receiving keychain.
	External KeyChain = 0

	// Internal is the change keychain.
	Internal KeyChain = 1
)

// KeyChains lists both keychains in scan order.
var KeyChains = []KeyChain{External, Internal}

// String returns the keychain name.
func (k KeyChain) String() string {
	switch k {
	case External:
		return "external"
	case Internal:
		return "internal"
	default:
		return fmt.Sprintf("keychain(%d)", uint8(k))
	}
}

// ScriptEntry is an output script derived at a keychain index. Entries are
// immutable once derived.
type ScriptEntry struct {
	KeyChain KeyChain
	Index    uint32
	PkScript []byte
	Address  btcutil.Address

	key *descriptor.DerivedKey
}

// Key returns the derived key material behind the script.
func (e ScriptEntry) Key() *descriptor.DerivedKey {
	return e.key
}

// String returns the address of the entry.
func (e ScriptEntry) String() string {
	return e.Address.EncodeAddress()
}
