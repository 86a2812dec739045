// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package waddrmgr

import (
	"errors"
	"fmt"
	"sync"

	"github.com/atlasgraph/t4wallet/descriptor"
	"github.com/btcsuite/btcd/chaincfg"
)

var (
	// ErrUnknownKeyChain is returned for a keychain other than External
	// or Internal.
	ErrUnknownKeyChain = errors.New("unknown keychain")

	// ErrIndexOutOfRange is returned when a non-ranged keychain is asked
	// for an index other than zero.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// chainState is the derivation state of one keychain.
type chainState struct {
	desc *descriptor.Descriptor

	// scripts holds every derived entry. It has no gaps: entry i is at
	// index i.
	scripts []ScriptEntry

	// nextUsed is one past the highest index seen in a transaction.
	nextUsed uint32

	// nextReveal is one past the highest index handed out.
	nextReveal uint32
}

// nextUnused is the lowest index above both watermarks.
func (c *chainState) nextUnused() uint32 {
	if !c.desc.IsRange() {
		return 0
	}

	return max(c.nextUsed, c.nextReveal)
}

// Manager derives and indexes the scripts of an external and an internal
// descriptor and tracks how far each keychain has been used and revealed.
// It is safe for concurrent use.
type Manager struct {
	mtx sync.RWMutex

	params *chaincfg.Params
	chains [2]*chainState
	owned  map[string]ScriptEntry
}

// NewManager returns a manager for the two descriptors. Both must produce
// the same policy shape and belong to params.
func NewManager(external, internal *descriptor.Descriptor,
	params *chaincfg.Params) (*Manager, error) {

	if external == nil || internal == nil {
		return nil, fmt.Errorf("%w: both external and internal "+
			"descriptors are required", descriptor.ErrInvalidDescriptor)
	}
	if external.Type() != internal.Type() {
		return nil, fmt.Errorf("%w: external is %v but internal is %v",
			descriptor.ErrInvalidDescriptor, external.Type(),
			internal.Type())
	}
	for _, d := range []*descriptor.Descriptor{external, internal} {
		if d.Params().Net != params.Net {
			return nil, fmt.Errorf("%w: %s is not for network %s",
				descriptor.ErrInvalidDescriptor, d, params.Name)
		}
	}

	return &Manager{
		params: params,
		chains: [2]*chainState{
			External: {desc: external},
			Internal: {desc: internal},
		},
		owned: make(map[string]ScriptEntry),
	}, nil
}

func (m *Manager) chain(kc KeyChain) (*chainState, error) {
	if int(kc) >= len(m.chains) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKeyChain, kc)
	}

	return m.chains[kc], nil
}

// Params returns the network of the manager.
func (m *Manager) Params() *chaincfg.Params {
	return m.params
}

// Descriptor returns the descriptor of a keychain.
func (m *Manager) Descriptor(kc KeyChain) *descriptor.Descriptor {
	c, err := m.chain(kc)
	if err != nil {
		return nil
	}

	return c.desc
}

// IsRange reports whether the keychain derives more than one script.
func (m *Manager) IsRange(kc KeyChain) bool {
	d := m.Descriptor(kc)
	return d != nil && d.IsRange()
}

// Script returns the entry at index, deriving it and every lower index on
// first use.
func (m *Manager) Script(kc KeyChain, index uint32) (ScriptEntry, error) {
	m.mtx.RLock()
	c, err := m.chain(kc)
	if err == nil && int64(index) < int64(len(c.scripts)) {
		entry := c.scripts[index]
		m.mtx.RUnlock()

		return entry, nil
	}
	m.mtx.RUnlock()
	if err != nil {
		return ScriptEntry{}, err
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.deriveTo(kc, c, index)
}

// deriveTo extends the script cache of a keychain up to index. The write
// lock must be held.
func (m *Manager) deriveTo(kc KeyChain, c *chainState,
	index uint32) (ScriptEntry, error) {

	if !c.desc.IsRange() && index != 0 {
		return ScriptEntry{}, fmt.Errorf("%w: %v keychain has a single "+
			"script, got index %d", ErrIndexOutOfRange, kc, index)
	}

	for i := uint32(len(c.scripts)); i <= index; i++ {
		key, err := c.desc.Derive(i)
		if err != nil {
			return ScriptEntry{}, err
		}

		entry := ScriptEntry{
			KeyChain: kc,
			Index:    i,
			PkScript: key.PkScript,
			Address:  key.Address,
			key:      key,
		}
		c.scripts = append(c.scripts, entry)
		m.owned[string(key.PkScript)] = entry
	}

	return c.scripts[index], nil
}

// LookupScript returns the entry owning pkScript among the derived scripts.
func (m *Manager) LookupScript(pkScript []byte) (ScriptEntry, bool) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	entry, ok := m.owned[string(pkScript)]
	return entry, ok
}

// MarkUsed records that the script at index appeared in a transaction. The
// used watermark never moves backwards.
func (m *Manager) MarkUsed(kc KeyChain, index uint32) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	c, err := m.chain(kc)
	if err != nil {
		return err
	}
	if _, err := m.deriveTo(kc, c, index); err != nil {
		return err
	}

	if index+1 > c.nextUsed {
		c.nextUsed = index + 1
	}

	return nil
}

// NextUnused returns the lowest script above every used and previously
// returned index and reveals it, so consecutive calls never repeat an index.
// Non-ranged keychains always return their only script.
func (m *Manager) NextUnused(kc KeyChain) (ScriptEntry, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	c, err := m.chain(kc)
	if err != nil {
		return ScriptEntry{}, err
	}

	entry, err := m.deriveTo(kc, c, c.nextUnused())
	if err != nil {
		return ScriptEntry{}, err
	}
	if entry.Index+1 > c.nextReveal {
		c.nextReveal = entry.Index + 1
	}

	log.Debugf("Revealed %v script %d: %v", kc, entry.Index, entry)

	return entry, nil
}

// PeekUnused returns the script NextUnused would return without revealing
// it.
func (m *Manager) PeekUnused(kc KeyChain) (ScriptEntry, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	c, err := m.chain(kc)
	if err != nil {
		return ScriptEntry{}, err
	}

	return m.deriveTo(kc, c, c.nextUnused())
}

// Watermarks returns one past the highest used index and one past the
// highest revealed index of a keychain.
func (m *Manager) Watermarks(kc KeyChain) (uint32, uint32) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	c, err := m.chain(kc)
	if err != nil {
		return 0, 0
	}

	return c.nextUsed, c.nextReveal
}
