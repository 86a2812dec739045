package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atlasgraph/t4wallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

var (
	testTipHash   = chainhash.Hash{0x01, 0x02}
	testBlockHash = chainhash.Hash{0xaa}
	staleHash     = chainhash.Hash{0xbb}
)

// fakeEsplora serves a fixed chain state over the Esplora REST API.
type fakeEsplora struct {
	mtx       sync.Mutex
	txs       map[string]*wire.MsgTx
	histories map[string][]TxInfo
	pages     map[string][]TxInfo
	posted    []string
	requests  int
}

func newFakeEsplora() *fakeEsplora {
	return &fakeEsplora{
		txs:       make(map[string]*wire.MsgTx),
		histories: make(map[string][]TxInfo),
		pages:     make(map[string][]TxInfo),
	}
}

// addTx records tx in the history of pkScript.
func (f *fakeEsplora) addTx(pkScript []byte, tx *wire.MsgTx, height int64) {
	txid := tx.TxHash().String()
	f.txs[txid] = tx

	status := TxStatus{}
	if height > 0 {
		status = TxStatus{
			Confirmed:   true,
			BlockHeight: height,
			BlockHash:   testBlockHash.String(),
		}
	}

	sh := ScriptHash(pkScript)
	f.histories[sh] = append(f.histories[sh], TxInfo{
		TxID: txid, Status: status,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeEsplora) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	f.requests++
	path := r.URL.Path

	switch {
	case path == "/blocks/tip/height":
		fmt.Fprint(w, "100")

	case path == "/blocks/tip/hash":
		fmt.Fprint(w, testTipHash.String())

	case path == "/fee-estimates":
		writeJSON(w, FeeEstimates{"1": 20.5, "6": 10, "144": 1.0001})

	case strings.HasPrefix(path, "/block/"):
		writeJSON(w, BlockStatus{
			InBestChain: !strings.Contains(path, staleHash.String()),
		})

	case strings.Contains(path, "/txs/chain/"):
		writeJSON(w, f.pages[path])

	case strings.HasPrefix(path, "/scripthash/"):
		sh := strings.TrimSuffix(
			strings.TrimPrefix(path, "/scripthash/"), "/txs",
		)
		history := f.histories[sh]
		if history == nil {
			history = []TxInfo{}
		}
		writeJSON(w, history)

	case strings.HasPrefix(path, "/tx/") && strings.HasSuffix(path, "/hex"):
		txid := strings.TrimSuffix(strings.TrimPrefix(path, "/tx/"),
			"/hex")
		tx, ok := f.txs[txid]
		if !ok {
			http.Error(w, "Transaction not found", http.StatusNotFound)
			return
		}
		var buf bytes.Buffer
		_ = tx.Serialize(&buf)
		fmt.Fprint(w, hex.EncodeToString(buf.Bytes()))

	case path == "/tx" && r.Method == http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		f.posted = append(f.posted, string(body))

		txBytes, err := hex.DecodeString(string(body))
		if err != nil {
			http.Error(w, "bad hex", http.StatusBadRequest)
			return
		}
		tx := wire.NewMsgTx(wire.TxVersion)
		if err := tx.Deserialize(bytes.NewReader(txBytes)); err != nil {
			http.Error(w, "bad tx", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, tx.TxHash().String())

	default:
		http.NotFound(w, r)
	}
}

func newTestEsplora(t *testing.T, handler http.Handler) *Esplora {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewEsplora(&EsploraConfig{
		URL:            server.URL + "/",
		RequestTimeout: 5 * time.Second,
		Parallelism:    2,
	})
}

func testScript(b byte) []byte {
	script := make([]byte, 22)
	script[1] = 0x14
	script[2] = b
	return script
}

func payTx(pkScript []byte, value int64, lockTime uint32) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: lockTime}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(value, pkScript))
	tx.LockTime = lockTime
	return tx
}

func TestEsploraBestBlock(t *testing.T) {
	t.Parallel()

	c := newTestEsplora(t, newFakeEsplora())

	height, hash, err := c.BestBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(100), height)
	require.Equal(t, testTipHash, hash)

	ok, err := c.InBestChain(context.Background(), testBlockHash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.InBestChain(context.Background(), staleHash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEsploraQueryScripts(t *testing.T) {
	t.Parallel()

	fake := newFakeEsplora()
	used, unused := testScript(1), testScript(2)
	confirmed := payTx(used, 5000, 1)
	pending := payTx(used, 7000, 2)
	fake.addTx(used, confirmed, 90)
	fake.addTx(used, pending, 0)

	c := newTestEsplora(t, fake)

	histories, err := c.QueryScripts(
		context.Background(), [][]byte{unused, used},
	)
	require.NoError(t, err)
	require.Len(t, histories, 2)

	require.Equal(t, unused, histories[0].PkScript)
	require.False(t, histories[0].HasHistory())

	require.Equal(t, used, histories[1].PkScript)
	require.Len(t, histories[1].Txs, 2)

	got := histories[1].Txs
	require.Equal(t, confirmed.TxHash(), got[0].MsgTx.TxHash())
	require.Equal(t, wtxmgr.NewConfirmed(90, testBlockHash), got[0].Status)
	require.Equal(t, pending.TxHash(), got[1].MsgTx.TxHash())
	require.Equal(t, wtxmgr.Unconfirmed, got[1].Status.State)
	require.True(t, got[1].Status.LastSeen.IsZero())
}

func TestEsploraPagination(t *testing.T) {
	t.Parallel()

	fake := newFakeEsplora()
	script := testScript(3)

	for i := 0; i < confirmedPageSize; i++ {
		fake.addTx(script, payTx(script, 1000, uint32(i+1)), 50)
	}

	// The last page repeats an entry, which is only returned once.
	sh := ScriptHash(script)
	first := fake.histories[sh]
	last := payTx(script, 1000, 1000)
	fake.txs[last.TxHash().String()] = last
	fake.pages["/scripthash/"+sh+"/txs/chain/"+first[len(first)-1].TxID] =
		[]TxInfo{first[len(first)-1], {
			TxID: last.TxHash().String(),
			Status: TxStatus{
				Confirmed:   true,
				BlockHeight: 10,
				BlockHash:   testBlockHash.String(),
			},
		}}

	c := newTestEsplora(t, fake)

	infos, err := c.ScriptHashTxs(context.Background(), sh)
	require.NoError(t, err)
	require.Len(t, infos, confirmedPageSize+1)
	require.Equal(t, last.TxHash().String(), infos[confirmedPageSize].TxID)
}

func TestEsploraBroadcast(t *testing.T) {
	t.Parallel()

	fake := newFakeEsplora()
	c := newTestEsplora(t, fake)

	tx := payTx(testScript(4), 1234, 7)
	require.NoError(t, c.Broadcast(context.Background(), tx))

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	require.Equal(t, []string{hex.EncodeToString(buf.Bytes())}, fake.posted)
}

func TestEsploraErrors(t *testing.T) {
	t.Parallel()

	t.Run("status", func(t *testing.T) {
		t.Parallel()

		c := newTestEsplora(t, http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "sendrawtransaction RPC error",
					http.StatusBadRequest)
			},
		))

		err := c.Broadcast(
			context.Background(), payTx(testScript(5), 1, 1),
		)
		require.ErrorIs(t, err, ErrNetwork)
		require.Contains(t, err.Error(), "sendrawtransaction")

		_, _, err = c.BestBlock(context.Background())
		require.ErrorIs(t, err, ErrNetwork)
	})

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		c := NewEsplora(&EsploraConfig{URL: url, MaxRetries: 1})
		_, err := c.TipHeight(context.Background())
		require.ErrorIs(t, err, ErrNetwork)
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
		))
		t.Cleanup(server.Close)

		c := NewEsplora(&EsploraConfig{
			URL:            server.URL,
			RequestTimeout: 50 * time.Millisecond,
		})
		_, err := c.TipHeight(context.Background())
		require.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("mismatched tx", func(t *testing.T) {
		t.Parallel()

		fake := newFakeEsplora()
		tx := payTx(testScript(6), 1, 1)
		fake.txs[(chainhash.Hash{0x42}).String()] = tx

		c := newTestEsplora(t, fake)
		_, err := c.RawTx(
			context.Background(), (chainhash.Hash{0x42}).String(),
		)
		require.ErrorIs(t, err, ErrNetwork)
	})
}

func TestEsploraRawTxCache(t *testing.T) {
	t.Parallel()

	fake := newFakeEsplora()
	tx := payTx(testScript(7), 1, 1)
	fake.txs[tx.TxHash().String()] = tx

	c := newTestEsplora(t, fake)
	for i := 0; i < 3; i++ {
		got, err := c.RawTx(context.Background(), tx.TxHash().String())
		require.NoError(t, err)
		require.Equal(t, tx.TxHash(), got.TxHash())
	}

	fake.mtx.Lock()
	defer fake.mtx.Unlock()
	require.Equal(t, 1, fake.requests)
}

func TestFeeEstimates(t *testing.T) {
	t.Parallel()

	c := newTestEsplora(t, newFakeEsplora())

	tests := []struct {
		target uint32
		rate   btcutil.Amount
	}{
		{target: 1, rate: 20500},
		{target: 3, rate: 20500},
		{target: 6, rate: 10000},
		{target: 100, rate: 10000},
		{target: 1008, rate: 1001},
	}
	for _, test := range tests {
		rate, err := c.EstimateFeeRate(context.Background(), test.target)
		require.NoError(t, err)
		require.Equal(t, test.rate, rate, "target %d", test.target)
	}

	_, err := FeeEstimates{}.FeeRate(6)
	require.ErrorIs(t, err, ErrNetwork)

	// Targets below the smallest estimate use the smallest.
	rate, err := FeeEstimates{"2": 3}.FeeRate(1)
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(3000), rate)
}
