// Copyright (c) 2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package waddrmgr

import (
	"fmt"

	"github.com/btcsuite/btcwallet/walletdb"
)

// keychainStateKey is the key under which the watermarks are stored in the
// manager namespace.
var keychainStateKey = []byte("keychainstate")

// PutState writes the used and revealed watermarks of both keychains to ns.
func (m *Manager) PutState(ns walletdb.ReadWriteBucket) error {
	m.mtx.RLock()
	w := &watermarks{
		externalUsed:   m.chains[External].nextUsed,
		externalReveal: m.chains[External].nextReveal,
		internalUsed:   m.chains[Internal].nextUsed,
		internalReveal: m.chains[Internal].nextReveal,
	}
	m.mtx.RUnlock()

	data, err := tlvEncodeWatermarks(w)
	if err != nil {
		return err
	}

	if err := ns.Put(keychainStateKey, data); err != nil {
		return fmt.Errorf("failed to store keychain state: %w", err)
	}

	return nil
}

// FetchState loads watermarks written by PutState and derives every script
// below them so the scripts are known to LookupScript. A namespace without
// stored state leaves the manager untouched.
func (m *Manager) FetchState(ns walletdb.ReadBucket) error {
	data := ns.Get(keychainStateKey)
	if data == nil {
		return nil
	}

	w, err := tlvDecodeWatermarks(data)
	if err != nil {
		return fmt.Errorf("failed to decode keychain state: %w", err)
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	restore := []struct {
		kc     KeyChain
		used   uint32
		reveal uint32
	}{
		{External, w.externalUsed, w.externalReveal},
		{Internal, w.internalUsed, w.internalReveal},
	}
	for _, r := range restore {
		c := m.chains[r.kc]
		if !c.desc.IsRange() {
			r.used, r.reveal = min(r.used, 1), min(r.reveal, 1)
		}

		c.nextUsed = max(c.nextUsed, r.used)
		c.nextReveal = max(c.nextReveal, r.reveal)

		top := max(c.nextUsed, c.nextReveal)
		if top == 0 {
			continue
		}
		if _, err := m.deriveTo(r.kc, c, top-1); err != nil {
			return err
		}
	}

	log.Debugf("Loaded keychain state: external used=%d revealed=%d, "+
		"internal used=%d revealed=%d", w.externalUsed,
		w.externalReveal, w.internalUsed, w.internalReveal)

	return nil
}
