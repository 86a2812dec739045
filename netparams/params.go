// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg"
)

// Params is used to group parameters for various networks such as the main
// network and test networks.
type Params struct {
	*chaincfg.Params

	// EsploraURL is the default address of the Esplora indexer used when
	// none is configured.
	EsploraURL string
}

// MainNetParams contains parameters specific to running the wallet on the
// main network (wire.MainNet).
var MainNetParams = Params{
	Params:     &chaincfg.MainNetParams,
	EsploraURL: "https://blockstream.info/api",
}

// TestNet3Params contains parameters specific to running the wallet on the
// test network (version 3) (wire.TestNet3).
var TestNet3Params = Params{
	Params:     &chaincfg.TestNet3Params,
	EsploraURL: "https://blockstream.info/testnet/api",
}

// TestNet4Params contains parameters specific to running the wallet on the
// test network (version 4).
var TestNet4Params = Params{
	Params:     &TestNet4ChainParams,
	EsploraURL: "http://127.0.0.1:3000",
}

// SigNetParams contains parameters specific to the default signet.
var SigNetParams = Params{
	Params:     &chaincfg.SigNetParams,
	EsploraURL: "https://mempool.space/signet/api",
}

// RegTestParams contains parameters specific to a local regression test
// network.
var RegTestParams = Params{
	Params:     &chaincfg.RegressionNetParams,
	EsploraURL: "http://127.0.0.1:3002",
}

var byName = map[string]*Params{
	"mainnet":  &MainNetParams,
	"testnet":  &TestNet3Params,
	"testnet3": &TestNet3Params,
	"testnet4": &TestNet4Params,
	"signet":   &SigNetParams,
	"regtest":  &RegTestParams,
}

// ByName returns the parameters of the network with the given name.
func ByName(name string) (*Params, error) {
	p, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown network %q (known: %v)", name,
			Names())
	}

	return p, nil
}

// Names returns the sorted names accepted by ByName.
func Names() []string {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
