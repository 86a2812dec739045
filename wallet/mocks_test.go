package wallet

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"

	"github.com/atlasgraph/t4wallet/chain"
	"github.com/atlasgraph/t4wallet/wtxmgr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/mock"
)

// mockChain is an in-memory chain backend. It serves script histories from
// the transactions it was given and records broadcasts through the embedded
// mock, which decides whether a broadcast succeeds.
type mockChain struct {
	mock.Mock

	mtx       sync.Mutex
	tipHeight int32
	txs       map[chainhash.Hash]*wtxmgr.ObservedTx
	order     []chainhash.Hash
	stale     map[chainhash.Hash]struct{}

	// queryErr, if set, fails every script query.
	queryErr error

	// funded counts the outputs created by fund, so every funding
	// transaction spends a distinct foreign outpoint.
	funded uint32
}

// Compile time assert the implementation.
var _ chain.Interface = (*mockChain)(nil)

func newMockChain() *mockChain {
	return &mockChain{
		tipHeight: 100,
		txs:       make(map[chainhash.Hash]*wtxmgr.ObservedTx),
		stale:     make(map[chainhash.Hash]struct{}),
	}
}

// testBlockHash returns the hash of the best chain block at height.
func testBlockHash(height int32) chainhash.Hash {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(height))
	return chainhash.HashH(b[:])
}

// addTx records tx with the given status, replacing an earlier status.
func (m *mockChain) addTx(tx *wire.MsgTx, status wtxmgr.Status) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	hash := tx.TxHash()
	if _, ok := m.txs[hash]; !ok {
		m.order = append(m.order, hash)
	}
	m.txs[hash] = &wtxmgr.ObservedTx{MsgTx: tx, Status: status}
}

// fund mines a transaction paying value to pkScript from an outpoint the
// wallet does not own.
func (m *mockChain) fund(pkScript []byte, value int64) *wire.MsgTx {
	m.mtx.Lock()
	m.funded++
	var prev chainhash.Hash
	binary.BigEndian.PutUint32(prev[:], m.funded)
	m.mtx.Unlock()

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prev, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(value, pkScript))

	m.mine(tx)

	return tx
}

// mine confirms tx in a new block on top of the tip.
func (m *mockChain) mine(tx *wire.MsgTx) {
	m.mtx.Lock()
	m.tipHeight++
	height := m.tipHeight
	m.mtx.Unlock()

	m.addTx(tx, wtxmgr.NewConfirmed(height, testBlockHash(height)))
}

// disconnect removes the block at height from the best chain together with
// the transactions confirmed in it.
func (m *mockChain) disconnect(height int32) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	hash := testBlockHash(height)
	m.stale[hash] = struct{}{}

	order := m.order[:0]
	for _, txHash := range m.order {
		obs := m.txs[txHash]
		if obs.Status.State == wtxmgr.Confirmed &&
			obs.Status.BlockHash == hash {

			delete(m.txs, txHash)
			continue
		}
		order = append(order, txHash)
	}
	m.order = order
}

// drop removes tx from the mempool as if it expired or was replaced.
func (m *mockChain) drop(tx *wire.MsgTx) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	hash := tx.TxHash()
	delete(m.txs, hash)

	order := m.order[:0]
	for _, txHash := range m.order {
		if txHash != hash {
			order = append(order, txHash)
		}
	}
	m.order = order
}

// touches reports whether tx pays to or spends from pkScript.
func (m *mockChain) touches(tx *wire.MsgTx, pkScript []byte) bool {
	for _, txOut := range tx.TxOut {
		if bytes.Equal(txOut.PkScript, pkScript) {
			return true
		}
	}

	for _, txIn := range tx.TxIn {
		prev, ok := m.txs[txIn.PreviousOutPoint.Hash]
		if !ok {
			continue
		}
		idx := txIn.PreviousOutPoint.Index
		if int(idx) < len(prev.MsgTx.TxOut) &&
			bytes.Equal(prev.MsgTx.TxOut[idx].PkScript, pkScript) {

			return true
		}
	}

	return false
}

func (m *mockChain) QueryScripts(_ context.Context,
	pkScripts [][]byte) ([]chain.ScriptHistory, error) {

	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.queryErr != nil {
		return nil, m.queryErr
	}

	histories := make([]chain.ScriptHistory, 0, len(pkScripts))
	for _, pkScript := range pkScripts {
		h := chain.ScriptHistory{PkScript: pkScript}
		for _, hash := range m.order {
			obs := m.txs[hash]
			if m.touches(obs.MsgTx, pkScript) {
				h.Txs = append(h.Txs, &wtxmgr.ObservedTx{
					MsgTx:  obs.MsgTx,
					Status: obs.Status,
				})
			}
		}
		histories = append(histories, h)
	}

	return histories, nil
}

func (m *mockChain) BestBlock(context.Context) (int32, chainhash.Hash,
	error) {

	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.tipHeight, testBlockHash(m.tipHeight), nil
}

func (m *mockChain) InBestChain(_ context.Context,
	hash chainhash.Hash) (bool, error) {

	m.mtx.Lock()
	defer m.mtx.Unlock()

	_, ok := m.stale[hash]
	return !ok, nil
}

// Broadcast adds tx to the mempool when the mock returns no error.
func (m *mockChain) Broadcast(ctx context.Context, tx *wire.MsgTx) error {
	args := m.Called(ctx, tx)
	if err := args.Error(0); err != nil {
		return err
	}

	m.addTx(tx, wtxmgr.Status{State: wtxmgr.Unconfirmed})

	return nil
}
