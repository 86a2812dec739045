// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package descriptor parses single-key output descriptors and derives the
// scripts, addresses and signing keys they describe.
//
// Supported policies are pkh(KEY), wpkh(KEY), sh(wpkh(KEY)) and key-path
// only tr(KEY). KEY may be a hex public key, a WIF private key or an
// extended key with optional origin and a derivation path that may end in a
// non-hardened wildcard.
package descriptor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
)

var (
	// ErrInvalidDescriptor is returned when a descriptor string cannot be
	// parsed, carries a wrong checksum or names an unsupported policy.
	ErrInvalidDescriptor = errors.New("invalid descriptor")

	// ErrNoPrivateKey is returned when signing key material is requested
	// from a watch-only descriptor.
	ErrNoPrivateKey = errors.New("descriptor has no private key")

	// ErrInvalidIndex is returned when a derivation index is outside the
	// non-hardened range.
	ErrInvalidIndex = errors.New("invalid derivation index")
)

// Type is the address-producing policy shape of a descriptor.
type Type uint8

const (
	// TypePKH is pay-to-pubkey-hash, pkh(KEY).
	TypePKH Type = iota

	// TypeWPKH is pay-to-witness-pubkey-hash, wpkh(KEY).
	TypeWPKH

	// TypeSHWPKH is wpkh nested in pay-to-script-hash, sh(wpkh(KEY)).
	TypeSHWPKH

	// TypeTR is a taproot output spent through its key path, tr(KEY).
	TypeTR
)

// String returns the descriptor function name of the type.
func (t Type) String() string {
	switch t {
	case TypePKH:
		return "pkh"
	case TypeWPKH:
		return "wpkh"
	case TypeSHWPKH:
		return "sh(wpkh)"
	case TypeTR:
		return "tr"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

func (t Type) wrap(key string) string {
	switch t {
	case TypeSHWPKH:
		return "sh(wpkh(" + key + "))"
	default:
		return t.String() + "(" + key + ")"
	}
}

// Descriptor is an immutable parsed output descriptor.
type Descriptor struct {
	typ    Type
	key    *keyExpr
	params *chaincfg.Params
}

// Parse parses a descriptor string for the given network. A trailing
// "#checksum" is verified when present.
func Parse(desc string, params *chaincfg.Params) (*Descriptor, error) {
	body, err := splitChecksum(strings.TrimSpace(desc))
	if err != nil {
		return nil, err
	}

	var (
		typ   Type
		inner string
		ok    bool
	)
	switch {
	case strings.HasPrefix(body, "sh(wpkh("):
		typ = TypeSHWPKH
		inner, ok = strings.CutSuffix(body[len("sh(wpkh("):], "))")

	case strings.HasPrefix(body, "wpkh("):
		typ = TypeWPKH
		inner, ok = strings.CutSuffix(body[len("wpkh("):], ")")

	case strings.HasPrefix(body, "pkh("):
		typ = TypePKH
		inner, ok = strings.CutSuffix(body[len("pkh("):], ")")

	case strings.HasPrefix(body, "tr("):
		typ = TypeTR
		inner, ok = strings.CutSuffix(body[len("tr("):], ")")
		if ok && strings.ContainsRune(inner, ',') {
			return nil, fmt.Errorf("%w: tr script trees are not "+
				"supported", ErrInvalidDescriptor)
		}

	default:
		return nil, fmt.Errorf("%w: unsupported policy in %q",
			ErrInvalidDescriptor, body)
	}
	if !ok || inner == "" || strings.ContainsAny(inner, "()") {
		return nil, fmt.Errorf("%w: malformed expression %q",
			ErrInvalidDescriptor, body)
	}

	key, err := parseKeyExpr(inner, typ, params)
	if err != nil {
		return nil, err
	}

	return &Descriptor{typ: typ, key: key, params: params}, nil
}

// Type returns the policy shape of the descriptor.
func (d *Descriptor) Type() Type {
	return d.typ
}

// Params returns the network the descriptor was parsed for.
func (d *Descriptor) Params() *chaincfg.Params {
	return d.params
}

// IsRange reports whether the descriptor ends in a wildcard and so describes
// one script per derivation index.
func (d *Descriptor) IsRange() bool {
	return d.key.ranged
}

// HasPrivateKey reports whether the descriptor embeds secret key material.
func (d *Descriptor) HasPrivateKey() bool {
	return d.key.hasPrivateKey()
}

// String returns the public form of the descriptor with its checksum.
func (d *Descriptor) String() string {
	return withChecksum(d.typ.wrap(d.key.string(false)))
}

// PrivateString returns the descriptor including its secret key material.
func (d *Descriptor) PrivateString() (string, error) {
	if !d.HasPrivateKey() {
		return "", ErrNoPrivateKey
	}

	return withChecksum(d.typ.wrap(d.key.string(true))), nil
}

func withChecksum(body string) string {
	desc, err := AddChecksum(body)
	if err != nil {
		// Rendered descriptors only use characters from the checksum
		// input set.
		panic(err)
	}

	return desc
}
