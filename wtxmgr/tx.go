// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wtxmgr

import (
	"fmt"
	"time"

	"github.com/atlasgraph/t4wallet/waddrmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// State is the chain state of a recorded transaction.
type State uint8

const (
	// Unconfirmed transactions were seen in the mempool but not in a
	// block.
	Unconfirmed State = iota

	// Confirmed transactions are included in a block of the best chain.
	Confirmed

	// Orphaned transactions were confirmed in a block that has since been
	// reported missing from the best chain and have not been seen again.
	Orphaned
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Unconfirmed:
		return "unconfirmed"
	case Confirmed:
		return "confirmed"
	case Orphaned:
		return "orphaned"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Status is the observed chain status of a transaction. Height and
// BlockHash are set for Confirmed and Orphaned transactions, FirstSeen and
// LastSeen for Unconfirmed ones.
type Status struct {
	State     State
	Height    int32
	BlockHash chainhash.Hash
	FirstSeen time.Time
	LastSeen  time.Time
}

// NewConfirmed returns the status of a transaction mined in the given
// block.
func NewConfirmed(height int32, hash chainhash.Hash) Status {
	return Status{State: Confirmed, Height: height, BlockHash: hash}
}

// NewUnconfirmed returns the status of a mempool transaction seen at t.
func NewUnconfirmed(t time.Time) Status {
	return Status{State: Unconfirmed, FirstSeen: t, LastSeen: t}
}

// Confirmations returns the number of confirmations at the given tip
// height, or zero for transactions that are not confirmed.
func (s Status) Confirmations(tipHeight int32) int32 {
	if s.State != Confirmed || tipHeight < s.Height {
		return 0
	}

	return tipHeight - s.Height + 1
}

func (s Status) equal(o Status) bool {
	return s.State == o.State && s.Height == o.Height &&
		s.BlockHash == o.BlockHash && s.FirstSeen.Equal(o.FirstSeen) &&
		s.LastSeen.Equal(o.LastSeen)
}

// String describes the status for history listings.
func (s Status) String() string {
	switch s.State {
	case Confirmed:
		return fmt.Sprintf("confirmed at %d (%v)", s.Height, s.BlockHash)
	case Orphaned:
		return fmt.Sprintf("orphaned from %d (%v)", s.Height,
			s.BlockHash)
	default:
		return fmt.Sprintf("unconfirmed, last seen %v",
			s.LastSeen.UTC().Format(time.RFC3339))
	}
}

// TxRecord is a transaction known to the ledger together with its chain
// status. Records are never mutated; a status change replaces the record.
type TxRecord struct {
	MsgTx  *wire.MsgTx
	Hash   chainhash.Hash
	Status Status

	// Seq orders records by the time they were first inserted.
	Seq uint64
}

// withStatus returns a copy of the record carrying status.
func (r *TxRecord) withStatus(status Status) *TxRecord {
	return &TxRecord{
		MsgTx:  r.MsgTx,
		Hash:   r.Hash,
		Status: status,
		Seq:    r.Seq,
	}
}

// Credit is an unspent output paying to one of the wallet's scripts.
type Credit struct {
	wire.OutPoint

	Amount       btcutil.Amount
	PkScript     []byte
	Status       Status
	KeyChain     waddrmgr.KeyChain
	Index        uint32
	FromCoinbase bool
}

// Balance partitions the value of the unspent outputs by chain status.
// Immature holds coinbase outputs that cannot be spent yet.
type Balance struct {
	Confirmed   btcutil.Amount
	Unconfirmed btcutil.Amount
	Immature    btcutil.Amount
}

// Total returns the sum of every partition.
func (b Balance) Total() btcutil.Amount {
	return b.Confirmed + b.Unconfirmed + b.Immature
}

// Spendable returns the value that can fund a new transaction.
func (b Balance) Spendable() btcutil.Amount {
	return b.Confirmed + b.Unconfirmed
}

// ObservedTx is a transaction reported by the chain backend.
type ObservedTx struct {
	MsgTx  *wire.MsgTx
	Status Status
}

// Update is a batch of chain observations applied to the store at once.
type Update struct {
	// Txs are the transactions touching the wallet's scripts.
	Txs []*ObservedTx

	// LastSeen is stamped on unconfirmed transactions that carry no
	// timestamp of their own.
	LastSeen time.Time

	// TipHeight and TipHash describe the best block at scan time.
	TipHeight int32
	TipHash   chainhash.Hash

	// MissingBlocks lists blocks that are no longer part of the best
	// chain.
	MissingBlocks []chainhash.Hash

	// LastActive holds, per keychain, the highest index found with
	// history during the scan.
	LastActive map[waddrmgr.KeyChain]uint32

	// Complete is set when Txs holds the whole history of every wallet
	// script. Unconfirmed records it does not report, last seen before
	// LastSeen, have left the mempool and are evicted.
	Complete bool
}

// TxDetails summarizes a recorded transaction from the wallet's point of
// view.
type TxDetails struct {
	*TxRecord

	// Received is the value of outputs paying to the wallet.
	Received btcutil.Amount

	// Sent is the value of wallet outputs spent by the transaction's
	// inputs.
	Sent btcutil.Amount

	// Fee is set when the value of every input is known.
	Fee btcutil.Amount

	// FeeKnown reports whether Fee could be computed.
	FeeKnown bool
}

// Net returns the change in wallet value caused by the transaction.
func (d *TxDetails) Net() btcutil.Amount {
	return d.Received - d.Sent
}
