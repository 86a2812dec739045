package chain

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/atlasgraph/t4wallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultRequestTimeout bounds every request to the Esplora API.
	DefaultRequestTimeout = 30 * time.Second

	// confirmedPageSize is the number of confirmed transactions Esplora
	// returns per page of script history.
	confirmedPageSize = 25
)

// EsploraConfig holds the configuration for the Esplora client.
type EsploraConfig struct {
	// URL is the base URL of the Esplora API, e.g.
	// http://127.0.0.1:3000.
	URL string

	// RequestTimeout is the timeout for individual HTTP requests.
	RequestTimeout time.Duration

	// MaxRetries is the number of times a failed read request is
	// retried. Broadcasts are never retried.
	MaxRetries int

	// Parallelism bounds the number of scripts queried at once.
	Parallelism int
}

// TxStatus represents transaction confirmation status.
type TxStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight int64  `json:"block_height,omitempty"`
	BlockHash   string `json:"block_hash,omitempty"`
	BlockTime   int64  `json:"block_time,omitempty"`
}

// TxInfo is the subset of a transaction listing used by the wallet.
type TxInfo struct {
	TxID   string   `json:"txid"`
	Fee    int64    `json:"fee"`
	Status TxStatus `json:"status"`
}

// BlockStatus represents the status of a block.
type BlockStatus struct {
	InBestChain bool   `json:"in_best_chain"`
	Height      int64  `json:"height"`
	NextBest    string `json:"next_best,omitempty"`
}

// FeeEstimates maps confirmation targets, in blocks, to fee rates in sat/vB.
type FeeEstimates map[string]float64

// Esplora is a chain backend talking to the Esplora REST API. It is safe for
// concurrent use.
type Esplora struct {
	cfg        EsploraConfig
	httpClient *http.Client

	// txCache holds raw transactions by id. Transactions are immutable
	// so entries never expire.
	txMtx   sync.Mutex
	txCache map[string]*wire.MsgTx
}

// A compile-time assertion to ensure Esplora satisfies Interface.
var _ Interface = (*Esplora)(nil)

// NewEsplora creates a new Esplora client with the given configuration.
func NewEsplora(cfg *EsploraConfig) *Esplora {
	c := *cfg
	c.URL = strings.TrimRight(c.URL, "/")
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Parallelism <= 0 {
		c.Parallelism = 1
	}

	return &Esplora{
		cfg: c,
		httpClient: &http.Client{
			Timeout: c.RequestTimeout,
		},
		txCache: make(map[string]*wire.MsgTx),
	}
}

// ScriptHash returns the key Esplora indexes a script under: the hex
// encoded SHA256 of the script.
func ScriptHash(pkScript []byte) string {
	h := sha256.Sum256(pkScript)
	return hex.EncodeToString(h[:])
}

// mapError classifies a transport failure as ErrTimeout or ErrNetwork.
func mapError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {

		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// doRequest performs an HTTP request, retrying transport failures up to
// retries times.
func (c *Esplora) doRequest(ctx context.Context, method, path string,
	body []byte, retries int) (*http.Response, error) {

	url := c.cfg.URL + path

	var lastErr error
	for i := 0; i <= retries; i++ {
		if err := ctx.Err(); err != nil {
			return nil, mapError(err)
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w",
				err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "text/plain")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			log.Debugf("%s %s failed (attempt %d): %v", method,
				path, i+1, err)

			if i < retries {
				select {
				case <-time.After(time.Duration(i+1) *
					100 * time.Millisecond):
				case <-ctx.Done():
				}
			}
			continue
		}

		return resp, nil
	}

	return nil, mapError(lastErr)
}

// doGet performs a GET request and returns the response body.
func (c *Esplora) doGet(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.doRequest(
		ctx, http.MethodGet, path, nil, c.cfg.MaxRetries,
	)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mapError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s returned status %d: %s",
			ErrNetwork, path, resp.StatusCode,
			strings.TrimSpace(string(body)))
	}

	return body, nil
}

func (c *Esplora) getJSON(ctx context.Context, path string, v any) error {
	body, err := c.doGet(ctx, path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: failed to decode %s: %v", ErrNetwork,
			path, err)
	}

	return nil
}

// TipHeight returns the current blockchain tip height.
func (c *Esplora) TipHeight(ctx context.Context) (int32, error) {
	body, err := c.doGet(ctx, "/blocks/tip/height")
	if err != nil {
		return 0, err
	}

	height, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to parse height: %v",
			ErrNetwork, err)
	}

	return int32(height), nil
}

// TipHash returns the current blockchain tip hash.
func (c *Esplora) TipHash(ctx context.Context) (chainhash.Hash, error) {
	body, err := c.doGet(ctx, "/blocks/tip/hash")
	if err != nil {
		return chainhash.Hash{}, err
	}

	hash, err := chainhash.NewHashFromStr(strings.TrimSpace(string(body)))
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("%w: failed to parse "+
			"hash: %v", ErrNetwork, err)
	}

	return *hash, nil
}

// BestBlock returns the height and hash of the chain tip.
func (c *Esplora) BestBlock(ctx context.Context) (int32, chainhash.Hash,
	error) {

	height, err := c.TipHeight(ctx)
	if err != nil {
		return 0, chainhash.Hash{}, err
	}

	hash, err := c.TipHash(ctx)
	if err != nil {
		return 0, chainhash.Hash{}, err
	}

	return height, hash, nil
}

// InBestChain reports whether a block is part of the best chain.
func (c *Esplora) InBestChain(ctx context.Context,
	hash chainhash.Hash) (bool, error) {

	var status BlockStatus
	err := c.getJSON(ctx, "/block/"+hash.String()+"/status", &status)
	if err != nil {
		return false, err
	}

	return status.InBestChain, nil
}

// ScriptHashTxs returns every transaction touching a script, following
// Esplora's pagination of confirmed history.
func (c *Esplora) ScriptHashTxs(ctx context.Context,
	scripthash string) ([]*TxInfo, error) {

	var (
		all  []*TxInfo
		seen = make(map[string]struct{})
		path = "/scripthash/" + scripthash + "/txs"
	)
	for {
		var page []*TxInfo
		if err := c.getJSON(ctx, path, &page); err != nil {
			return nil, err
		}

		var lastConfirmed string
		confirmed := 0
		for _, tx := range page {
			if _, ok := seen[tx.TxID]; ok {
				continue
			}
			seen[tx.TxID] = struct{}{}
			all = append(all, tx)

			if tx.Status.Confirmed {
				confirmed++
				lastConfirmed = tx.TxID
			}
		}

		if confirmed < confirmedPageSize {
			return all, nil
		}

		path = "/scripthash/" + scripthash + "/txs/chain/" +
			lastConfirmed
	}
}

// RawTx fetches and decodes a transaction by id.
func (c *Esplora) RawTx(ctx context.Context, txid string) (*wire.MsgTx,
	error) {

	c.txMtx.Lock()
	tx, ok := c.txCache[txid]
	c.txMtx.Unlock()
	if ok {
		return tx, nil
	}

	body, err := c.doGet(ctx, "/tx/"+txid+"/hex")
	if err != nil {
		return nil, err
	}

	txBytes, err := hex.DecodeString(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode tx hex: %v",
			ErrNetwork, err)
	}

	tx = wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(txBytes)); err != nil {
		return nil, fmt.Errorf("%w: failed to deserialize tx: %v",
			ErrNetwork, err)
	}
	if tx.TxHash().String() != txid {
		return nil, fmt.Errorf("%w: backend returned tx %v for %v",
			ErrNetwork, tx.TxHash(), txid)
	}

	c.txMtx.Lock()
	c.txCache[txid] = tx
	c.txMtx.Unlock()

	return tx, nil
}

// history fetches the transactions of one script.
func (c *Esplora) history(ctx context.Context,
	pkScript []byte) (*ScriptHistory, error) {

	infos, err := c.ScriptHashTxs(ctx, ScriptHash(pkScript))
	if err != nil {
		return nil, err
	}

	h := &ScriptHistory{PkScript: pkScript}
	for _, info := range infos {
		tx, err := c.RawTx(ctx, info.TxID)
		if err != nil {
			return nil, err
		}

		status, err := info.Status.toStatus()
		if err != nil {
			return nil, err
		}

		h.Txs = append(h.Txs, &wtxmgr.ObservedTx{
			MsgTx:  tx,
			Status: status,
		})
	}

	return h, nil
}

func (s *TxStatus) toStatus() (wtxmgr.Status, error) {
	if !s.Confirmed {
		return wtxmgr.Status{State: wtxmgr.Unconfirmed}, nil
	}

	hash, err := chainhash.NewHashFromStr(s.BlockHash)
	if err != nil {
		return wtxmgr.Status{}, fmt.Errorf("%w: invalid block hash "+
			"%q: %v", ErrNetwork, s.BlockHash, err)
	}

	return wtxmgr.NewConfirmed(int32(s.BlockHeight), *hash), nil
}

// QueryScripts returns the history of each script, querying up to
// Parallelism scripts at once. The first error aborts the whole query.
func (c *Esplora) QueryScripts(ctx context.Context,
	pkScripts [][]byte) ([]ScriptHistory, error) {

	histories := make([]ScriptHistory, len(pkScripts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Parallelism)
	for i, pkScript := range pkScripts {
		g.Go(func() error {
			h, err := c.history(ctx, pkScript)
			if err != nil {
				return err
			}
			histories[i] = *h

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return histories, nil
}

// Broadcast submits a transaction. It is attempted exactly once.
func (c *Esplora) Broadcast(ctx context.Context, tx *wire.MsgTx) error {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return err
	}
	txHex := hex.EncodeToString(buf.Bytes())

	resp, err := c.doRequest(ctx, http.MethodPost, "/tx", []byte(txHex), 0)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return mapError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: broadcast of %v failed with status "+
			"%d: %s", ErrNetwork, tx.TxHash(), resp.StatusCode,
			strings.TrimSpace(string(body)))
	}

	txid := strings.TrimSpace(string(body))
	if txid != tx.TxHash().String() {
		log.Warnf("Backend acknowledged %v as %s", tx.TxHash(), txid)
	}

	log.Infof("Broadcast transaction %v", tx.TxHash())

	return nil
}

// GetFeeEstimates returns the fee estimates of the backend.
func (c *Esplora) GetFeeEstimates(ctx context.Context) (FeeEstimates, error) {
	var estimates FeeEstimates
	if err := c.getJSON(ctx, "/fee-estimates", &estimates); err != nil {
		return nil, err
	}

	return estimates, nil
}

// EstimateFeeRate returns a fee rate in satoshis per kilo virtual byte for
// confirmation within confTarget blocks. The estimate of the largest target
// not above confTarget is used, or the smallest target if none is.
func (c *Esplora) EstimateFeeRate(ctx context.Context,
	confTarget uint32) (btcutil.Amount, error) {

	estimates, err := c.GetFeeEstimates(ctx)
	if err != nil {
		return 0, err
	}

	return estimates.FeeRate(confTarget)
}

// FeeRate picks the estimate for confTarget, see EstimateFeeRate.
func (f FeeEstimates) FeeRate(confTarget uint32) (btcutil.Amount, error) {
	targets := make([]uint32, 0, len(f))
	for key := range f {
		target, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			continue
		}
		targets = append(targets, uint32(target))
	}
	if len(targets) == 0 {
		return 0, fmt.Errorf("%w: no fee estimates available",
			ErrNetwork)
	}
	sort.Slice(targets, func(i, j int) bool {
		return targets[i] < targets[j]
	})

	chosen := targets[0]
	for _, target := range targets {
		if target > confTarget {
			break
		}
		chosen = target
	}

	satPerVByte := f[strconv.FormatUint(uint64(chosen), 10)]

	return btcutil.Amount(math.Ceil(satPerVByte * 1000)), nil
}
