// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package descriptor

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// KeyOrigin records the fingerprint of the root key and the derivation path
// from that root to a key, as written inside square brackets.
type KeyOrigin struct {
	Fingerprint [4]byte
	Path        []uint32
}

// FingerprintUint32 returns the fingerprint in the little-endian integer form
// used by PSBT key derivation fields.
func (o *KeyOrigin) FingerprintUint32() uint32 {
	return binary.LittleEndian.Uint32(o.Fingerprint[:])
}

func (o *KeyOrigin) String() string {
	return "[" + hex.EncodeToString(o.Fingerprint[:]) + formatPath(o.Path) +
		"]"
}

// keyExpr is a parsed key expression. Exactly one of pubKey, wif and extKey
// is set.
type keyExpr struct {
	origin *KeyOrigin

	pubKey     *btcec.PublicKey
	compressed bool
	xOnly      bool

	wif *btcutil.WIF

	extKey *hdkeychain.ExtendedKey
	path   []uint32
	ranged bool
}

func (k *keyExpr) isExtended() bool {
	return k.extKey != nil
}

func (k *keyExpr) hasPrivateKey() bool {
	switch {
	case k.wif != nil:
		return true
	case k.extKey != nil:
		return k.extKey.IsPrivate()
	default:
		return false
	}
}

// parseKeyExpr parses KEY expressions of the forms
//
//	[fingerprint/path]KEY
//	[fingerprint/path]EXTKEY/path/*
//
// where KEY is a hex public key or WIF private key and EXTKEY is an extended
// public or private key.
func parseKeyExpr(s string, typ Type, params *chaincfg.Params) (*keyExpr,
	error) {

	k := &keyExpr{}

	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated key origin",
				ErrInvalidDescriptor)
		}

		origin, err := parseOrigin(s[1:end])
		if err != nil {
			return nil, err
		}
		k.origin = origin
		s = s[end+1:]
	}

	parts := strings.Split(s, "/")
	keyStr, pathParts := parts[0], parts[1:]

	if len(pathParts) > 0 && isWildcard(pathParts[len(pathParts)-1]) {
		if pathParts[len(pathParts)-1] != "*" {
			return nil, fmt.Errorf("%w: hardened wildcard derivation "+
				"is not supported", ErrInvalidDescriptor)
		}
		k.ranged = true
		pathParts = pathParts[:len(pathParts)-1]
	}

	path := make([]uint32, 0, len(pathParts))
	for _, p := range pathParts {
		idx, err := parsePathElement(p)
		if err != nil {
			return nil, err
		}
		path = append(path, idx)
	}

	switch {
	case isHex(keyStr) && (len(keyStr) == 64 || len(keyStr) == 66 ||
		len(keyStr) == 130):

		if err := k.setPubKey(keyStr, typ); err != nil {
			return nil, err
		}

	case isExtendedKeyString(keyStr):
		extKey, err := hdkeychain.NewKeyFromString(keyStr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor,
				err)
		}
		if !extKey.IsForNet(params) {
			return nil, fmt.Errorf("%w: extended key is not for "+
				"network %s", ErrInvalidDescriptor, params.Name)
		}
		k.extKey = extKey
		k.path = path
		k.compressed = true

		if !extKey.IsPrivate() {
			for _, idx := range path {
				if idx >= hdkeychain.HardenedKeyStart {
					return nil, fmt.Errorf("%w: hardened "+
						"derivation from a public "+
						"extended key", ErrInvalidDescriptor)
				}
			}
		}

	default:
		wif, err := btcutil.DecodeWIF(keyStr)
		if err != nil {
			return nil, fmt.Errorf("%w: unrecognized key %q",
				ErrInvalidDescriptor, keyStr)
		}
		if !wif.IsForNet(params) {
			return nil, fmt.Errorf("%w: private key is not for "+
				"network %s", ErrInvalidDescriptor, params.Name)
		}
		if !wif.CompressPubKey && typ != TypePKH {
			return nil, fmt.Errorf("%w: uncompressed key not "+
				"allowed in %s", ErrInvalidDescriptor, typ)
		}
		k.wif = wif
		k.pubKey = wif.PrivKey.PubKey()
		k.compressed = wif.CompressPubKey
		k.xOnly = typ == TypeTR
	}

	if !k.isExtended() && (len(path) > 0 || k.ranged) {
		return nil, fmt.Errorf("%w: derivation path on a non-extended "+
			"key", ErrInvalidDescriptor)
	}

	return k, nil
}

func (k *keyExpr) setPubKey(keyStr string, typ Type) error {
	raw, _ := hex.DecodeString(keyStr)

	switch len(raw) {
	case 32:
		if typ != TypeTR {
			return fmt.Errorf("%w: x-only key only allowed in tr",
				ErrInvalidDescriptor)
		}
		pub, err := schnorr.ParsePubKey(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
		}
		k.pubKey = pub
		k.xOnly = true

	case 33:
		pub, err := btcec.ParsePubKey(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
		}
		k.pubKey = pub
		k.compressed = true
		k.xOnly = typ == TypeTR

	case 65:
		if typ != TypePKH {
			return fmt.Errorf("%w: uncompressed key not allowed "+
				"in %s", ErrInvalidDescriptor, typ)
		}
		pub, err := btcec.ParsePubKey(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
		}
		k.pubKey = pub
	}

	return nil
}

// string renders the key expression. With private set the secret form of
// the key is written; otherwise hardened steps below a private extended key
// are folded into the origin so that the result derives publicly.
func (k *keyExpr) string(private bool) string {
	var sb strings.Builder

	switch {
	case k.isExtended():
		origin, key, path := k.origin, k.extKey, k.path
		if !private && key.IsPrivate() {
			origin, key, path = k.publicExtKey()
		}
		if origin != nil {
			sb.WriteString(origin.String())
		}
		if private {
			sb.WriteString(key.String())
		} else {
			pub, _ := key.Neuter()
			sb.WriteString(pub.String())
		}
		sb.WriteString(formatPath(path))
		if k.ranged {
			sb.WriteString("/*")
		}

		return sb.String()

	case private && k.wif != nil:
		if k.origin != nil {
			sb.WriteString(k.origin.String())
		}
		sb.WriteString(k.wif.String())

		return sb.String()
	}

	if k.origin != nil {
		sb.WriteString(k.origin.String())
	}
	sb.WriteString(hex.EncodeToString(k.serializePubKey(k.pubKey)))

	return sb.String()
}

func (k *keyExpr) serializePubKey(pub *btcec.PublicKey) []byte {
	switch {
	case k.xOnly:
		return schnorr.SerializePubKey(pub)
	case k.compressed:
		return pub.SerializeCompressed()
	default:
		return pub.SerializeUncompressed()
	}
}

// publicExtKey moves the hardened prefix of the derivation path into the key
// origin and returns the extended key at the end of that prefix.
func (k *keyExpr) publicExtKey() (*KeyOrigin, *hdkeychain.ExtendedKey,
	[]uint32) {

	last := -1
	for i, idx := range k.path {
		if idx >= hdkeychain.HardenedKeyStart {
			last = i
		}
	}
	if last < 0 {
		return k.origin, k.extKey, k.path
	}

	key := k.extKey
	for _, idx := range k.path[:last+1] {
		child, err := key.Derive(idx)
		if err != nil {
			// Derivation can only fail for invalid child keys,
			// which Parse already rejected.
			return k.origin, k.extKey, k.path
		}
		key = child
	}

	origin := k.rootOrigin()
	origin.Path = append(origin.Path, k.path[:last+1]...)

	return origin, key, k.path[last+1:]
}

// rootOrigin returns a copy of the key origin, or an origin naming the
// extended key itself when none was written.
func (k *keyExpr) rootOrigin() *KeyOrigin {
	if k.origin != nil {
		return &KeyOrigin{
			Fingerprint: k.origin.Fingerprint,
			Path:        append([]uint32(nil), k.origin.Path...),
		}
	}

	origin := &KeyOrigin{}
	if k.extKey != nil {
		pub, err := k.extKey.ECPubKey()
		if err == nil {
			copy(origin.Fingerprint[:],
				btcutil.Hash160(pub.SerializeCompressed()))
		}
	} else if k.pubKey != nil {
		copy(origin.Fingerprint[:],
			btcutil.Hash160(k.pubKey.SerializeCompressed()))
	}

	return origin
}

func parseOrigin(s string) (*KeyOrigin, error) {
	parts := strings.Split(s, "/")
	fp, err := hex.DecodeString(parts[0])
	if err != nil || len(fp) != 4 {
		return nil, fmt.Errorf("%w: invalid key origin fingerprint %q",
			ErrInvalidDescriptor, parts[0])
	}

	origin := &KeyOrigin{}
	copy(origin.Fingerprint[:], fp)
	for _, p := range parts[1:] {
		idx, err := parsePathElement(p)
		if err != nil {
			return nil, err
		}
		origin.Path = append(origin.Path, idx)
	}

	return origin, nil
}

func parsePathElement(p string) (uint32, error) {
	hardened := false
	if n := len(p); n > 0 && (p[n-1] == '\'' || p[n-1] == 'h' ||
		p[n-1] == 'H') {

		hardened = true
		p = p[:n-1]
	}

	idx, err := strconv.ParseUint(p, 10, 32)
	if err != nil || idx >= hdkeychain.HardenedKeyStart {
		return 0, fmt.Errorf("%w: invalid derivation step %q",
			ErrInvalidDescriptor, p)
	}
	if hardened {
		idx += hdkeychain.HardenedKeyStart
	}

	return uint32(idx), nil
}

func formatPath(path []uint32) string {
	var sb strings.Builder
	for _, idx := range path {
		sb.WriteByte('/')
		if idx >= hdkeychain.HardenedKeyStart {
			sb.WriteString(strconv.FormatUint(
				uint64(idx-hdkeychain.HardenedKeyStart), 10,
			))
			sb.WriteByte('\'')
			continue
		}
		sb.WriteString(strconv.FormatUint(uint64(idx), 10))
	}

	return sb.String()
}

func isWildcard(p string) bool {
	return p == "*" || p == "*'" || p == "*h" || p == "*H"
}

func isHex(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}

func isExtendedKeyString(s string) bool {
	for _, prefix := range []string{"xpub", "xprv", "tpub", "tprv"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}

	return false
}
