package chain

import (
	"context"
	"errors"
	"sort"

	"github.com/atlasgraph/t4wallet/waddrmgr"
	"github.com/atlasgraph/t4wallet/wtxmgr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/clock"
)

const (
	// DefaultStopGap is the number of consecutive unused scripts after
	// which a keychain scan stops.
	DefaultStopGap = 20

	// DefaultParallelism is the number of scripts requested at once.
	DefaultParallelism = 2
)

// ErrNoScripts is returned when a scan request has no script source.
var ErrNoScripts = errors.New("scan request has no script source")

// ScriptSource derives the scripts of the two keychains.
type ScriptSource interface {
	IsRange(kc waddrmgr.KeyChain) bool
	Script(kc waddrmgr.KeyChain, index uint32) (waddrmgr.ScriptEntry,
		error)
}

// InspectFunc is called for every script a scan queries, before its history
// is requested.
type InspectFunc func(kc waddrmgr.KeyChain, index uint32, pkScript []byte)

// ScanRequest describes a full scan of both keychains.
type ScanRequest struct {
	Scripts ScriptSource

	// StopGap is the number of consecutive scripts without history
	// after which the scan of a ranged keychain stops.
	StopGap uint32

	// Parallelism is the number of scripts requested per batch.
	Parallelism int

	// KnownBlocks are the blocks the ledger holds confirmed transactions
	// in. Those no longer in the best chain are reported as missing.
	KnownBlocks []chainhash.Hash

	// Inspect, if set, observes every queried script.
	Inspect InspectFunc

	// Clock stamps the update. It defaults to the system clock.
	Clock clock.Clock
}

func (r *ScanRequest) withDefaults() ScanRequest {
	req := *r
	if req.StopGap == 0 {
		req.StopGap = DefaultStopGap
	}
	if req.Parallelism <= 0 {
		req.Parallelism = DefaultParallelism
	}
	if req.Clock == nil {
		req.Clock = clock.NewDefaultClock()
	}

	return req
}

// FullScan walks both keychains from index zero, querying scripts in
// batches, until StopGap consecutive scripts have no history. Non-ranged
// keychains are scanned at index zero only. The result is a single update
// holding every transaction found, or an error if any request failed.
func FullScan(ctx context.Context, c Interface,
	r *ScanRequest) (*wtxmgr.Update, error) {

	if r.Scripts == nil {
		return nil, ErrNoScripts
	}
	req := r.withDefaults()

	// The tip is read first so that every transaction found is at or
	// below it, or newer.
	tipHeight, tipHash, err := c.BestBlock(ctx)
	if err != nil {
		return nil, err
	}

	update := &wtxmgr.Update{
		LastSeen:   req.Clock.Now(),
		TipHeight:  tipHeight,
		TipHash:    tipHash,
		LastActive: make(map[waddrmgr.KeyChain]uint32),
		Complete:   true,
	}

	seen := make(map[chainhash.Hash]struct{})
	for _, kc := range waddrmgr.KeyChains {
		lastActive, found, err := scanKeyChain(
			ctx, c, &req, kc, update, seen,
		)
		if err != nil {
			return nil, err
		}
		if found {
			update.LastActive[kc] = lastActive
		}
	}

	for _, hash := range req.KnownBlocks {
		ok, err := c.InBestChain(ctx, hash)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Infof("Block %v is no longer in the best chain", hash)
			update.MissingBlocks = append(update.MissingBlocks, hash)
		}
	}

	sortObserved(update.Txs)

	log.Infof("Scan found %d transactions at tip %d (%v)",
		len(update.Txs), tipHeight, tipHash)
	log.Tracef("Scan update: %v", NewLogClosure(func() string {
		return spew.Sdump(update)
	}))

	return update, nil
}

// scanKeyChain queries the scripts of one keychain and appends their
// transactions to update. It returns the highest index with history.
func scanKeyChain(ctx context.Context, c Interface, req *ScanRequest,
	kc waddrmgr.KeyChain, update *wtxmgr.Update,
	seen map[chainhash.Hash]struct{}) (uint32, bool, error) {

	ranged := req.Scripts.IsRange(kc)

	var (
		lastActive uint32
		found      bool
		gap        uint32
		index      uint32
	)
	for {
		batchSize := uint32(req.Parallelism)
		if !ranged {
			batchSize = 1
		}

		entries := make([]waddrmgr.ScriptEntry, 0, batchSize)
		scripts := make([][]byte, 0, batchSize)
		for i := uint32(0); i < batchSize; i++ {
			entry, err := req.Scripts.Script(kc, index+i)
			if err != nil {
				return 0, false, err
			}
			if req.Inspect != nil {
				req.Inspect(kc, entry.Index, entry.PkScript)
			}
			entries = append(entries, entry)
			scripts = append(scripts, entry.PkScript)
		}

		histories, err := c.QueryScripts(ctx, scripts)
		if err != nil {
			return 0, false, err
		}

		for i, h := range histories {
			if !h.HasHistory() {
				gap++
			} else {
				gap = 0
				lastActive = entries[i].Index
				found = true
			}

			for _, obs := range h.Txs {
				hash := obs.MsgTx.TxHash()
				if _, ok := seen[hash]; ok {
					continue
				}
				seen[hash] = struct{}{}
				update.Txs = append(update.Txs, obs)
			}
		}

		if !ranged || gap >= req.StopGap {
			break
		}
		index += batchSize
	}

	if found {
		log.Debugf("Last active %v index is %d", kc, lastActive)
	}

	return lastActive, found, nil
}

// sortObserved orders transactions by confirmation height, unconfirmed
// last, so a fresh ledger lists them in chain order.
func sortObserved(txs []*wtxmgr.ObservedTx) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i].Status, txs[j].Status
		aConf := a.State == wtxmgr.Confirmed
		bConf := b.State == wtxmgr.Confirmed
		if aConf != bConf {
			return aConf
		}

		return aConf && a.Height < b.Height
	})
}
