package waddrmgr

import (
	"bytes"

	"github.com/lightningnetwork/lnd/tlv"
)

const (
	typeExternalUsed   tlv.Type = 1
	typeExternalReveal tlv.Type = 2
	typeInternalUsed   tlv.Type = 3
	typeInternalReveal tlv.Type = 4
)

// watermarks is the persisted form of the keychain derivation state.
type watermarks struct {
	externalUsed   uint32
	externalReveal uint32
	internalUsed   uint32
	internalReveal uint32
}

func (w *watermarks) records() []tlv.Record {
	return []tlv.Record{
		tlv.MakePrimitiveRecord(typeExternalUsed, &w.externalUsed),
		tlv.MakePrimitiveRecord(typeExternalReveal, &w.externalReveal),
		tlv.MakePrimitiveRecord(typeInternalUsed, &w.internalUsed),
		tlv.MakePrimitiveRecord(typeInternalReveal, &w.internalReveal),
	}
}

// tlvEncodeWatermarks encodes the watermarks as a TLV stream.
func tlvEncodeWatermarks(w *watermarks) ([]byte, error) {
	tlvStream, err := tlv.NewStream(w.records()...)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tlvStream.Encode(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// tlvDecodeWatermarks decodes a TLV stream written by tlvEncodeWatermarks.
// Unknown odd types are skipped so newer fields can be added.
func tlvDecodeWatermarks(data []byte) (*watermarks, error) {
	w := &watermarks{}
	tlvStream, err := tlv.NewStream(w.records()...)
	if err != nil {
		return nil, err
	}

	if err := tlvStream.Decode(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	return w, nil
}
