package chain

import (
	"context"

	"github.com/atlasgraph/t4wallet/waddrmgr"
	"github.com/atlasgraph/t4wallet/wtxmgr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/mock"
)

// mockChain is a mock implementation of Interface. Script histories are
// served from history, keyed by script.
type mockChain struct {
	mock.Mock

	history map[string][]*wtxmgr.ObservedTx
}

// Compile time assert the implementation.
var _ Interface = (*mockChain)(nil)

func (m *mockChain) QueryScripts(ctx context.Context,
	pkScripts [][]byte) ([]ScriptHistory, error) {

	args := m.Called(ctx, pkScripts)
	if err := args.Error(0); err != nil {
		return nil, err
	}

	histories := make([]ScriptHistory, 0, len(pkScripts))
	for _, pkScript := range pkScripts {
		histories = append(histories, ScriptHistory{
			PkScript: pkScript,
			Txs:      m.history[string(pkScript)],
		})
	}

	return histories, nil
}

func (m *mockChain) BestBlock(ctx context.Context) (int32, chainhash.Hash,
	error) {

	args := m.Called(ctx)
	return args.Get(0).(int32), args.Get(1).(chainhash.Hash), args.Error(2)
}

func (m *mockChain) InBestChain(ctx context.Context,
	hash chainhash.Hash) (bool, error) {

	args := m.Called(ctx, hash)
	return args.Bool(0), args.Error(1)
}

func (m *mockChain) Broadcast(ctx context.Context, tx *wire.MsgTx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

// fakeScripts derives testScript(kc*100 + index) for every keychain index.
type fakeScripts struct {
	ranged bool
}

func (f *fakeScripts) IsRange(waddrmgr.KeyChain) bool {
	return f.ranged
}

func (f *fakeScripts) Script(kc waddrmgr.KeyChain,
	index uint32) (waddrmgr.ScriptEntry, error) {

	return waddrmgr.ScriptEntry{
		KeyChain: kc,
		Index:    index,
		PkScript: testScript(byte(uint32(kc)*100 + index)),
	}, nil
}
