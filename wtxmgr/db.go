// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wtxmgr

import (
	"errors"
	"sort"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcwallet/walletdb"
)

// Key names for the store's namespace.
var (
	bucketTxRecords = []byte("txrecords")
	rootTip         = []byte("tip")
)

// Write persists the current ledger contents into ns, replacing anything
// written before.
func (s *Store) Write(ns walletdb.ReadWriteBucket) error {
	snap := s.current()

	err := ns.DeleteNestedBucket(bucketTxRecords)
	if err != nil && !errors.Is(err, walletdb.ErrBucketNotFound) {
		return txStoreError(ErrDatabase, "failed to clear tx records",
			err)
	}

	bucket, err := ns.CreateBucket(bucketTxRecords)
	if err != nil {
		return txStoreError(ErrDatabase, "failed to create tx records "+
			"bucket", err)
	}

	for _, hash := range snap.order {
		rec := snap.records[hash]
		v, err := tlvEncodeTxRecord(rec)
		if err != nil {
			return txStoreError(ErrInput, "failed to encode tx "+
				"record", err)
		}

		if err := bucket.Put(hash[:], v); err != nil {
			return txStoreError(ErrDatabase, "failed to store tx "+
				"record", err)
		}
	}

	tip, err := tlvEncodeTip(snap.tipHeight, snap.tipHash)
	if err != nil {
		return txStoreError(ErrInput, "failed to encode tip", err)
	}
	if err := ns.Put(rootTip, tip); err != nil {
		return txStoreError(ErrDatabase, "failed to store tip", err)
	}

	log.Debugf("Wrote %d transaction %s", len(snap.order),
		pickNoun(len(snap.order), "record", "records"))

	return nil
}

// Open loads a ledger previously persisted with Write. An empty namespace
// yields an empty ledger.
func Open(ns walletdb.ReadBucket, owner Owner,
	chainParams *chaincfg.Params) (*Store, error) {

	s := NewStore(owner, chainParams)
	snap := s.snap

	if v := ns.Get(rootTip); v != nil {
		height, hash, err := tlvDecodeTip(v)
		if err != nil {
			return nil, txStoreError(ErrData, "failed to decode tip",
				err)
		}
		snap.tipHeight, snap.tipHash = height, hash
	}

	bucket := ns.NestedReadBucket(bucketTxRecords)
	if bucket == nil {
		return s, nil
	}

	var recs []*TxRecord
	err := bucket.ForEach(func(k, v []byte) error {
		rec, err := tlvDecodeTxRecord(v)
		if err != nil {
			return txStoreError(ErrData, "failed to decode tx "+
				"record", err)
		}

		var key chainhash.Hash
		copy(key[:], k)
		if key != rec.Hash {
			str := "tx record key does not match transaction " +
				rec.Hash.String()
			return txStoreError(ErrData, str, nil)
		}

		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		if IsError(err, ErrData) {
			return nil, err
		}
		return nil, txStoreError(ErrDatabase, "failed to read tx "+
			"records", err)
	}

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Seq < recs[j].Seq
	})
	for _, rec := range recs {
		snap.records[rec.Hash] = rec
		snap.order = append(snap.order, rec.Hash)
		if rec.Seq >= snap.nextSeq {
			snap.nextSeq = rec.Seq + 1
		}
	}

	utxos, err := computeUTXOs(snap, owner)
	if err != nil {
		return nil, err
	}
	snap.utxos = utxos

	log.Infof("Loaded %d transaction %s", len(recs),
		pickNoun(len(recs), "record", "records"))

	return s, nil
}
