package wtxmgr

import (
	"bytes"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/tlv"
)

const (
	typeRecordTx        tlv.Type = 0
	typeRecordState     tlv.Type = 1
	typeRecordHeight    tlv.Type = 2
	typeRecordBlockHash tlv.Type = 3
	typeRecordFirstSeen tlv.Type = 4
	typeRecordLastSeen  tlv.Type = 5
	typeRecordSeq       tlv.Type = 6

	typeTipHeight tlv.Type = 0
	typeTipHash   tlv.Type = 1
)

// timeToUint64 encodes a timestamp as unix nanoseconds, with the zero time
// mapped to zero.
func timeToUint64(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano())
}

func uint64ToTime(v uint64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(v))
}

// tlvEncodeTxRecord serializes a record as a TLV stream holding the raw
// transaction and its status.
func tlvEncodeTxRecord(rec *TxRecord) ([]byte, error) {
	var txBuf bytes.Buffer
	if err := rec.MsgTx.Serialize(&txBuf); err != nil {
		return nil, err
	}

	var (
		rawTx     = txBuf.Bytes()
		state     = uint8(rec.Status.State)
		height    = uint32(rec.Status.Height)
		blockHash = [32]byte(rec.Status.BlockHash)
		firstSeen = timeToUint64(rec.Status.FirstSeen)
		lastSeen  = timeToUint64(rec.Status.LastSeen)
		seq       = rec.Seq
	)

	tlvStream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeRecordTx, &rawTx),
		tlv.MakePrimitiveRecord(typeRecordState, &state),
		tlv.MakePrimitiveRecord(typeRecordHeight, &height),
		tlv.MakePrimitiveRecord(typeRecordBlockHash, &blockHash),
		tlv.MakePrimitiveRecord(typeRecordFirstSeen, &firstSeen),
		tlv.MakePrimitiveRecord(typeRecordLastSeen, &lastSeen),
		tlv.MakePrimitiveRecord(typeRecordSeq, &seq),
	)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tlvStream.Encode(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// tlvDecodeTxRecord parses a record written by tlvEncodeTxRecord.
func tlvDecodeTxRecord(data []byte) (*TxRecord, error) {
	var (
		rawTx     []byte
		state     uint8
		height    uint32
		blockHash [32]byte
		firstSeen uint64
		lastSeen  uint64
		seq       uint64
	)

	tlvStream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeRecordTx, &rawTx),
		tlv.MakePrimitiveRecord(typeRecordState, &state),
		tlv.MakePrimitiveRecord(typeRecordHeight, &height),
		tlv.MakePrimitiveRecord(typeRecordBlockHash, &blockHash),
		tlv.MakePrimitiveRecord(typeRecordFirstSeen, &firstSeen),
		tlv.MakePrimitiveRecord(typeRecordLastSeen, &lastSeen),
		tlv.MakePrimitiveRecord(typeRecordSeq, &seq),
	)
	if err != nil {
		return nil, err
	}
	if err := tlvStream.Decode(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	msgTx := wire.NewMsgTx(wire.TxVersion)
	if err := msgTx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return nil, err
	}

	return &TxRecord{
		MsgTx: msgTx,
		Hash:  msgTx.TxHash(),
		Status: Status{
			State:     State(state),
			Height:    int32(height),
			BlockHash: chainhash.Hash(blockHash),
			FirstSeen: uint64ToTime(firstSeen),
			LastSeen:  uint64ToTime(lastSeen),
		},
		Seq: seq,
	}, nil
}

func tlvEncodeTip(height int32, hash chainhash.Hash) ([]byte, error) {
	var (
		h       = uint32(height)
		hashArr = [32]byte(hash)
	)

	tlvStream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeTipHeight, &h),
		tlv.MakePrimitiveRecord(typeTipHash, &hashArr),
	)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tlvStream.Encode(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func tlvDecodeTip(data []byte) (int32, chainhash.Hash, error) {
	var (
		h       uint32
		hashArr [32]byte
	)

	tlvStream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeTipHeight, &h),
		tlv.MakePrimitiveRecord(typeTipHash, &hashArr),
	)
	if err != nil {
		return 0, chainhash.Hash{}, err
	}
	if err := tlvStream.Decode(bytes.NewReader(data)); err != nil {
		return 0, chainhash.Hash{}, err
	}

	return int32(h), chainhash.Hash(hashArr), nil
}
