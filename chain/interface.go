package chain

import (
	"context"
	"errors"

	"github.com/atlasgraph/t4wallet/wtxmgr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

var (
	// ErrNetwork is returned when the chain backend cannot be reached or
	// answers with an error.
	ErrNetwork = errors.New("chain backend request failed")

	// ErrTimeout is returned when a request to the chain backend does
	// not complete in time.
	ErrTimeout = errors.New("chain backend request timed out")
)

// ScriptHistory is every transaction the chain backend knows of that pays to
// or spends from a script.
type ScriptHistory struct {
	PkScript []byte
	Txs      []*wtxmgr.ObservedTx
}

// HasHistory reports whether any transaction touched the script.
func (h *ScriptHistory) HasHistory() bool {
	return len(h.Txs) > 0
}

// Interface is a trusted indexing service the wallet reads chain state from
// and publishes transactions through.
type Interface interface {
	// QueryScripts returns the history of each script, in the order
	// the scripts were given.
	QueryScripts(ctx context.Context, pkScripts [][]byte) ([]ScriptHistory,
		error)

	// BestBlock returns the height and hash of the chain tip.
	BestBlock(ctx context.Context) (int32, chainhash.Hash, error)

	// InBestChain reports whether a block is part of the best chain.
	InBestChain(ctx context.Context, hash chainhash.Hash) (bool, error)

	// Broadcast submits a transaction to the network once.
	Broadcast(ctx context.Context, tx *wire.MsgTx) error
}
