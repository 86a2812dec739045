// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wtxmgr

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/atlasgraph/t4wallet/waddrmgr"
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Owner resolves output scripts to the keychain index that derived them.
type Owner interface {
	LookupScript(pkScript []byte) (waddrmgr.ScriptEntry, bool)
}

// snapshot is an immutable view of the ledger. Apply builds a new snapshot
// and swaps it in, so readers never observe a partial merge.
type snapshot struct {
	records map[chainhash.Hash]*TxRecord
	order   []chainhash.Hash
	nextSeq uint64

	utxos []Credit

	tipHeight int32
	tipHash   chainhash.Hash
}

func (s *snapshot) clone() *snapshot {
	records := make(map[chainhash.Hash]*TxRecord, len(s.records))
	for hash, rec := range s.records {
		records[hash] = rec
	}

	return &snapshot{
		records:   records,
		order:     append([]chainhash.Hash(nil), s.order...),
		nextSeq:   s.nextSeq,
		tipHeight: s.tipHeight,
		tipHash:   s.tipHash,
	}
}

// Store is the wallet ledger: the transactions touching the wallet's
// scripts and the unspent outputs they imply.
type Store struct {
	mtx   sync.RWMutex
	snap  *snapshot
	owner Owner

	chainParams *chaincfg.Params
}

// NewStore returns an empty ledger. owner decides which outputs belong to
// the wallet.
func NewStore(owner Owner, chainParams *chaincfg.Params) *Store {
	return &Store{
		snap: &snapshot{
			records: make(map[chainhash.Hash]*TxRecord),
		},
		owner:       owner,
		chainParams: chainParams,
	}
}

func (s *Store) current() *snapshot {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.snap
}

// Apply merges a sync update into the ledger. Either the whole update is
// merged or, on error, the ledger is left untouched. Applying the same
// update twice has the same effect as applying it once.
//
// A confirmed record is never downgraded to unconfirmed unless its block is
// listed in MissingBlocks, in which case it becomes Orphaned until it is
// observed again.
//
// Unconfirmed records are evicted, with their unconfirmed descendants, when
// a complete update no longer reports them, or when a confirmed transaction
// spends one of their inputs. Conflicting spends both reported by the
// update fail with ErrReconciliation.
func (s *Store) Apply(update *Update) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	next := s.snap.clone()

	missing := make(map[chainhash.Hash]struct{}, len(update.MissingBlocks))
	for _, hash := range update.MissingBlocks {
		missing[hash] = struct{}{}
	}
	if len(missing) > 0 {
		for hash, rec := range next.records {
			if rec.Status.State != Confirmed {
				continue
			}
			if _, ok := missing[rec.Status.BlockHash]; !ok {
				continue
			}

			status := rec.Status
			status.State = Orphaned
			next.records[hash] = rec.withStatus(status)

			log.Infof("Transaction %v orphaned by missing block %v",
				hash, rec.Status.BlockHash)
		}
	}

	var inserted, replaced int
	observed := make(map[chainhash.Hash]struct{}, len(update.Txs))
	for _, obs := range update.Txs {
		if obs == nil || obs.MsgTx == nil {
			return txStoreError(ErrInput, "nil transaction in "+
				"update", nil)
		}

		status := obs.Status
		if status.State == Unconfirmed {
			if status.FirstSeen.IsZero() {
				status.FirstSeen = update.LastSeen
			}
			if status.LastSeen.IsZero() {
				status.LastSeen = update.LastSeen
			}
		}

		hash := obs.MsgTx.TxHash()
		observed[hash] = struct{}{}
		old, ok := next.records[hash]
		if !ok {
			next.records[hash] = &TxRecord{
				MsgTx:  obs.MsgTx,
				Hash:   hash,
				Status: status,
				Seq:    next.nextSeq,
			}
			next.order = append(next.order, hash)
			next.nextSeq++
			inserted++

			continue
		}

		merged := mergeStatus(old.Status, status)
		if merged.equal(old.Status) {
			continue
		}
		next.records[hash] = old.withStatus(merged)
		replaced++
	}

	if update.TipHash != (chainhash.Hash{}) {
		next.tipHeight = update.TipHeight
		next.tipHash = update.TipHash
	}

	var evicted int
	if update.Complete {
		evicted += next.evict(staleUnconfirmed(
			next, observed, update.LastSeen,
		), observed)
	}
	evicted += next.evict(conflictsConfirmed(next, observed), observed)

	utxos, err := computeUTXOs(next, s.owner)
	if err != nil {
		return err
	}
	next.utxos = utxos

	s.snap = next

	log.Debugf("Applied update: %d new %s, %d replaced, %d evicted, "+
		"%d unspent %s, tip %d", inserted, pickNoun(inserted,
		"transaction", "transactions"), replaced, evicted, len(utxos),
		pickNoun(len(utxos), "output", "outputs"), next.tipHeight)

	return nil
}

// staleUnconfirmed returns the unconfirmed records not observed by a
// complete update and last seen before it.
func staleUnconfirmed(snap *snapshot, observed map[chainhash.Hash]struct{},
	lastSeen time.Time) []chainhash.Hash {

	var stale []chainhash.Hash
	for _, hash := range snap.order {
		rec := snap.records[hash]
		if rec.Status.State != Unconfirmed {
			continue
		}
		if _, ok := observed[hash]; ok {
			continue
		}
		if !rec.Status.LastSeen.Before(lastSeen) {
			continue
		}

		log.Infof("Transaction %v left the mempool (last seen %v)",
			hash, rec.Status.LastSeen)
		stale = append(stale, hash)
	}

	return stale
}

// conflictsConfirmed returns the recorded unconfirmed transactions that
// spend an output a confirmed transaction also spends. Records observed in
// the current update are left for computeUTXOs to report.
func conflictsConfirmed(snap *snapshot,
	observed map[chainhash.Hash]struct{}) []chainhash.Hash {

	confirmedSpends := make(map[wire.OutPoint]chainhash.Hash)
	for _, hash := range snap.order {
		rec := snap.records[hash]
		if rec.Status.State != Confirmed ||
			blockchain.IsCoinBaseTx(rec.MsgTx) {

			continue
		}
		for _, txIn := range rec.MsgTx.TxIn {
			confirmedSpends[txIn.PreviousOutPoint] = hash
		}
	}

	var losers []chainhash.Hash
	for _, hash := range snap.order {
		rec := snap.records[hash]
		if rec.Status.State != Unconfirmed {
			continue
		}
		if _, ok := observed[hash]; ok {
			continue
		}

		for _, txIn := range rec.MsgTx.TxIn {
			winner, ok := confirmedSpends[txIn.PreviousOutPoint]
			if !ok || winner == hash {
				continue
			}

			log.Infof("Transaction %v replaced by confirmed "+
				"transaction %v spending %v", hash, winner,
				txIn.PreviousOutPoint)
			losers = append(losers, hash)
			break
		}
	}

	return losers
}

// evict removes the given records together with every unconfirmed record
// not in observed that spends their outputs, and returns the number of
// records removed.
func (s *snapshot) evict(hashes []chainhash.Hash,
	observed map[chainhash.Hash]struct{}) int {

	if len(hashes) == 0 {
		return 0
	}

	removed := make(map[chainhash.Hash]struct{}, len(hashes))
	for _, hash := range hashes {
		removed[hash] = struct{}{}
	}

	// Descendants may follow their parents in insertion order or not, so
	// repeat until no record is added.
	for grown := true; grown; {
		grown = false
		for _, hash := range s.order {
			if _, ok := removed[hash]; ok {
				continue
			}
			if _, ok := observed[hash]; ok {
				continue
			}
			rec := s.records[hash]
			if rec.Status.State != Unconfirmed {
				continue
			}

			for _, txIn := range rec.MsgTx.TxIn {
				_, ok := removed[txIn.PreviousOutPoint.Hash]
				if ok {
					removed[hash] = struct{}{}
					grown = true
					break
				}
			}
		}
	}

	order := make([]chainhash.Hash, 0, len(s.order))
	for _, hash := range s.order {
		if _, ok := removed[hash]; ok {
			delete(s.records, hash)
			continue
		}
		order = append(order, hash)
	}
	s.order = order

	return len(removed)
}

// mergeStatus combines the recorded status of a transaction with a new
// observation.
func mergeStatus(old, observed Status) Status {
	switch {
	case old.State == Confirmed && observed.State == Unconfirmed:
		// Only a reported missing block may demote a confirmation,
		// and those records were orphaned before merging.
		return old

	case old.State == Unconfirmed && observed.State == Unconfirmed:
		merged := old
		if !observed.FirstSeen.IsZero() &&
			(merged.FirstSeen.IsZero() ||
				observed.FirstSeen.Before(merged.FirstSeen)) {

			merged.FirstSeen = observed.FirstSeen
		}
		if observed.LastSeen.After(merged.LastSeen) {
			merged.LastSeen = observed.LastSeen
		}
		return merged

	case observed.State == Orphaned:
		// Backends do not report orphans; keep what is recorded.
		return old

	default:
		return observed
	}
}

// computeUTXOs derives the unspent set from every record that is not
// orphaned. Two records spending the same outpoint are a reconciliation
// error.
func computeUTXOs(snap *snapshot, owner Owner) ([]Credit, error) {
	spentBy := make(map[wire.OutPoint]chainhash.Hash)
	for _, hash := range snap.order {
		rec := snap.records[hash]
		if rec.Status.State == Orphaned ||
			blockchain.IsCoinBaseTx(rec.MsgTx) {

			continue
		}

		for _, txIn := range rec.MsgTx.TxIn {
			op := txIn.PreviousOutPoint
			if other, ok := spentBy[op]; ok && other != hash {
				return nil, txStoreError(ErrReconciliation,
					"conflicting spends in update",
					&ConflictError{
						OutPoint: op,
						First:    other,
						Second:   hash,
					})
			}
			spentBy[op] = hash
		}
	}

	var utxos []Credit
	for _, hash := range snap.order {
		rec := snap.records[hash]
		if rec.Status.State == Orphaned {
			continue
		}

		coinbase := blockchain.IsCoinBaseTx(rec.MsgTx)
		for i, txOut := range rec.MsgTx.TxOut {
			op := wire.OutPoint{Hash: hash, Index: uint32(i)}
			if _, ok := spentBy[op]; ok {
				continue
			}

			entry, ok := owner.LookupScript(txOut.PkScript)
			if !ok {
				continue
			}

			utxos = append(utxos, Credit{
				OutPoint:     op,
				Amount:       btcutil.Amount(txOut.Value),
				PkScript:     txOut.PkScript,
				Status:       rec.Status,
				KeyChain:     entry.KeyChain,
				Index:        entry.Index,
				FromCoinbase: coinbase,
			})
		}
	}

	sort.Slice(utxos, func(i, j int) bool {
		hi, hj := utxos[i].Hash.String(), utxos[j].Hash.String()
		if hi != hj {
			return hi < hj
		}
		return utxos[i].Index < utxos[j].Index
	})

	return utxos, nil
}

// isImmature reports whether a credit is a coinbase output that has not
// reached maturity at the tip height.
func (s *Store) isImmature(c *Credit, tipHeight int32) bool {
	if !c.FromCoinbase {
		return false
	}

	return c.Status.Confirmations(tipHeight) <
		int32(s.chainParams.CoinbaseMaturity)
}

// Balance returns the value of the unspent outputs partitioned by status.
func (s *Store) Balance() Balance {
	snap := s.current()

	var bal Balance
	for i := range snap.utxos {
		c := &snap.utxos[i]
		switch {
		case s.isImmature(c, snap.tipHeight):
			bal.Immature += c.Amount
		case c.Status.State == Confirmed:
			bal.Confirmed += c.Amount
		default:
			bal.Unconfirmed += c.Amount
		}
	}

	return bal
}

// UTXOs returns every unspent wallet output ordered by transaction id and
// output index.
func (s *Store) UTXOs() []Credit {
	return append([]Credit(nil), s.current().utxos...)
}

// SpendableUTXOs returns the unspent outputs that may fund a transaction,
// which excludes immature coinbase outputs, in UTXOs order.
func (s *Store) SpendableUTXOs() []Credit {
	snap := s.current()

	credits := make([]Credit, 0, len(snap.utxos))
	for i := range snap.utxos {
		if s.isImmature(&snap.utxos[i], snap.tipHeight) {
			continue
		}
		credits = append(credits, snap.utxos[i])
	}

	return credits
}

// Transactions returns every record in insertion order.
func (s *Store) Transactions() []*TxRecord {
	snap := s.current()

	recs := make([]*TxRecord, 0, len(snap.order))
	for _, hash := range snap.order {
		recs = append(recs, snap.records[hash])
	}

	return recs
}

// Tx returns the record of a transaction, if known.
func (s *Store) Tx(hash *chainhash.Hash) (*TxRecord, bool) {
	rec, ok := s.current().records[*hash]
	return rec, ok
}

// Tip returns the best block known to the ledger.
func (s *Store) Tip() (int32, chainhash.Hash) {
	snap := s.current()
	return snap.tipHeight, snap.tipHash
}

// TxDetails returns the wallet view of every record in insertion order.
func (s *Store) TxDetails() []*TxDetails {
	snap := s.current()

	details := make([]*TxDetails, 0, len(snap.order))
	for _, hash := range snap.order {
		details = append(details, s.txDetails(snap, snap.records[hash]))
	}

	return details
}

func (s *Store) txDetails(snap *snapshot, rec *TxRecord) *TxDetails {
	d := &TxDetails{TxRecord: rec, FeeKnown: true}

	var in, out btcutil.Amount
	for _, txOut := range rec.MsgTx.TxOut {
		out += btcutil.Amount(txOut.Value)
		if _, ok := s.owner.LookupScript(txOut.PkScript); ok {
			d.Received += btcutil.Amount(txOut.Value)
		}
	}

	if blockchain.IsCoinBaseTx(rec.MsgTx) {
		d.FeeKnown = false
		return d
	}

	for _, txIn := range rec.MsgTx.TxIn {
		prev, ok := snap.records[txIn.PreviousOutPoint.Hash]
		if !ok || int(txIn.PreviousOutPoint.Index) >=
			len(prev.MsgTx.TxOut) {

			d.FeeKnown = false
			continue
		}

		prevOut := prev.MsgTx.TxOut[txIn.PreviousOutPoint.Index]
		in += btcutil.Amount(prevOut.Value)
		if _, ok := s.owner.LookupScript(prevOut.PkScript); ok {
			d.Sent += btcutil.Amount(prevOut.Value)
		}
	}

	if d.FeeKnown {
		d.Fee = in - out
	}

	return d
}

// String describes the ledger for debugging.
func (s *Store) String() string {
	snap := s.current()
	return fmt.Sprintf("%d transactions, %d unspent outputs, tip %d",
		len(snap.order), len(snap.utxos), snap.tipHeight)
}
