// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"github.com/atlasgraph/t4wallet/chain"
	"github.com/atlasgraph/t4wallet/wallet/txauthor"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/lightningnetwork/lnd/clock"
)

// FeePolicy prices the transactions created by the wallet.
type FeePolicy = txauthor.FeePolicy

// Descriptors is a pair of external and internal descriptor strings.
type Descriptors struct {
	External string
	Internal string
}

// DefaultDescriptors are the public testnet4 descriptors used by the command
// line tool when none are given. They are watch-only.
var DefaultDescriptors = Descriptors{
	External: "wpkh(033d4dfd8a751eaaff139a03310612c78a8a0f2657122f875ba" +
		"3f0ccde35c94b4a)#8m9vvd32",
	Internal: "wpkh(039f643230874ab9fdc79443578eee96ff682b1feb168d27726" +
		"9b152c2c4dcd562)#nnsy5ygv",
}

// Config holds everything New needs to build a wallet.
type Config struct {
	// Params is the network the descriptors and addresses belong to.
	Params *chaincfg.Params

	// ExternalDescriptor derives receive scripts and InternalDescriptor
	// change scripts. Both must have the same policy shape.
	ExternalDescriptor string
	InternalDescriptor string

	// Chain is the backend used by Sync and Publish. A wallet without
	// one can still build and sign transactions.
	Chain chain.Interface

	// DB, if set, persists the ledger and the keychain watermarks.
	DB walletdb.DB

	// StopGap and Parallelism tune the full scan. Zero values select
	// chain.DefaultStopGap and chain.DefaultParallelism.
	StopGap     uint32
	Parallelism int

	// FeePolicy is used by Pay. The zero value selects
	// txauthor.DefaultFeePolicy.
	FeePolicy FeePolicy

	// Clock stamps unconfirmed transactions. It defaults to the system
	// clock.
	Clock clock.Clock

	// Inspect, if set, observes every script queried during Sync.
	Inspect chain.InspectFunc
}
