// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcnp

import (
	"encoding/binary"
	"hash/fnv"
	"sort"
	"sync"
)

// registryEntry is the per-type_id record held by a Registry.
type registryEntry struct {
	wireSize  int
	validator Validator
}

// Registry is a mapping of type_id to wire_size (and an optional payload
// validator), populated once at startup from the application's schema. It
// is safe for concurrent lookups; Register is expected to complete before
// the first packet arrives, but is still guarded by a mutex so a
// misbehaving caller that registers late does not corrupt state.
type Registry struct {
	mu      sync.RWMutex
	entries map[TypeID]registryEntry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[TypeID]registryEntry)}
}

// Register adds a message type to the registry. It fails with
// ErrDuplicateTypeID if the id is already registered — a programmer error,
// refused at setup rather than silently overwritten.
func (r *Registry) Register(id TypeID, wireSize int, validator Validator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; ok {
		return ErrDuplicateTypeID
	}
	r.entries[id] = registryEntry{wireSize: wireSize, validator: validator}
	return nil
}

// RegisterType registers a Message's TypeID/WireSize directly, using
// newMsg to produce a scratch instance purely to read those two constants.
func RegisterType(r *Registry, newMsg func() Message, validator Validator) error {
	m := newMsg()
	return r.Register(m.TypeID(), m.WireSize(), validator)
}

// WireSize returns the wire size registered for id, and whether it was
// found at all. Register does not check the size it is given, so a zero or
// negative size passed to Register is returned here as is, with ok=true;
// only ok=false means "unknown type".
func (r *Registry) WireSize(id TypeID) (size int, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return 0, false
	}
	return e.wireSize, true
}

// Validator returns the optional validator registered for id, if any.
func (r *Registry) Validator(id TypeID) Validator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[id].validator
}

// Len reports how many message types are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// SchemaHash computes a 32-bit fingerprint over the ordered (type_id,
// wire_size) pairs of every registered type. Peers must compute it
// identically — ordering by ascending type_id makes the hash independent of
// registration order, which registration-time map iteration would
// otherwise randomize.
func (r *Registry) SchemaHash() uint32 {
	r.mu.RLock()
	ids := make([]TypeID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	h := fnv.New32a()
	var buf [4]byte
	for _, id := range ids {
		binary.BigEndian.PutUint16(buf[:2], uint16(id))
		h.Write(buf[:2])
		binary.BigEndian.PutUint16(buf[:2], uint16(r.entries[id].wireSize))
		h.Write(buf[:2])
	}
	r.mu.RUnlock()
	return h.Sum32()
}
