// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/finance-ledger/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	accounts map[generic.ID]generic.AccountRecord
	entries  map[generic.ID]generic.EntryRecord
	savings  map[generic.ID]generic.SavingsRecord
	named    map[namedKey]generic.NamedRecord
	audit    []generic.AuditEntry

	// entries come back in insertion order
	seq      int
	entrySeq map[generic.ID]int
}

type namedKey struct {
	Kind generic.Kind
	ID   generic.ID
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[generic.ID]generic.AccountRecord),
		entries:  make(map[generic.ID]generic.EntryRecord),
		savings:  make(map[generic.ID]generic.SavingsRecord),
		named:    make(map[namedKey]generic.NamedRecord),
		entrySeq: make(map[generic.ID]int),
	}
}

func (m *Memory) SaveAccount(_ context.Context, rec generic.AccountRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[rec.ID] = rec
	return nil
}

func (m *Memory) LoadAccounts(_ context.Context) ([]generic.AccountRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accountsLocked(), nil
}

func (m *Memory) SaveEntry(_ context.Context, rec generic.EntryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveEntryLocked(rec)
	return nil
}

func (m *Memory) DeleteEntry(_ context.Context, id generic.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteEntryLocked(id)
	return nil
}

func (m *Memory) LoadEntries(_ context.Context) ([]generic.EntryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entriesLocked(), nil
}

func (m *Memory) SaveSavings(_ context.Context, rec generic.SavingsRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.savings[rec.ID] = rec
	return nil
}

func (m *Memory) LoadSavings(_ context.Context) ([]generic.SavingsRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.savingsLocked(), nil
}

func (m *Memory) SaveNamed(_ context.Context, rec generic.NamedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.named[namedKey{Kind: rec.Kind, ID: rec.ID}] = rec
	return nil
}

func (m *Memory) LoadNamed(_ context.Context, kind generic.Kind) ([]generic.NamedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.namedLocked(kind), nil
}

func (m *Memory) MaxID(_ context.Context, kind generic.Kind, prefix string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.maxIDLocked(kind, prefix)
	return id, ok, nil
}

// =============================================================================
// LOCKED HELPERS - Shared with the transactional view
// =============================================================================

func (m *Memory) accountsLocked() []generic.AccountRecord {
	out := make([]generic.AccountRecord, 0, len(m.accounts))
	for _, r := range m.accounts {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) saveEntryLocked(rec generic.EntryRecord) {
	if _, ok := m.entrySeq[rec.ID]; !ok {
		m.seq++
		m.entrySeq[rec.ID] = m.seq
	}
	m.entries[rec.ID] = rec
}

func (m *Memory) deleteEntryLocked(id generic.ID) {
	delete(m.entries, id)
	delete(m.entrySeq, id)
}

func (m *Memory) entriesLocked() []generic.EntryRecord {
	out := make([]generic.EntryRecord, 0, len(m.entries))
	for _, r := range m.entries {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return m.entrySeq[out[i].ID] < m.entrySeq[out[j].ID] })
	return out
}

func (m *Memory) savingsLocked() []generic.SavingsRecord {
	out := make([]generic.SavingsRecord, 0, len(m.savings))
	for _, r := range m.savings {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) namedLocked(kind generic.Kind) []generic.NamedRecord {
	var out []generic.NamedRecord
	for k, r := range m.named {
		if k.Kind == kind {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// maxIDLocked keeps the id of kind with the largest numeric suffix. Ids that
// do not parse are skipped here; the loader rejects them when it adopts them.
func (m *Memory) maxIDLocked(kind generic.Kind, prefix string) (string, bool) {
	var ids []generic.ID
	switch kind {
	case generic.KindAccount:
		for id := range m.accounts {
			ids = append(ids, id)
		}
	case generic.KindAccumulativeSavings, generic.KindEconomicalSavings:
		for id, r := range m.savings {
			if r.Kind == kind {
				ids = append(ids, id)
			}
		}
	case generic.KindCategory, generic.KindSubject:
		for k := range m.named {
			if k.Kind == kind {
				ids = append(ids, k.ID)
			}
		}
	default:
		for id, r := range m.entries {
			if r.Kind.IDKind() == kind {
				ids = append(ids, id)
			}
		}
	}

	var (
		best  string
		bestN int64 = -1
	)
	for _, id := range ids {
		if n, ok := generic.Suffix(string(id), prefix); ok && n > bestN {
			best, bestN = string(id), n
		}
	}
	return best, bestN >= 0
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, entry generic.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

// QueryAudit returns matching entries, newest first.
func (m *Memory) QueryAudit(_ context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []generic.AuditEntry
	for i := len(m.audit) - 1; i >= 0; i-- {
		if !filter.Matches(m.audit[i]) {
			continue
		}
		out = append(out, m.audit[i])
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// WithTx executes fn against a view of the store. For the memory store this
// is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(generic.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&txMemoryView{m: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	accounts map[generic.ID]generic.AccountRecord
	entries  map[generic.ID]generic.EntryRecord
	savings  map[generic.ID]generic.SavingsRecord
	named    map[namedKey]generic.NamedRecord
	entrySeq map[generic.ID]int
	seq      int
}

func (m *Memory) snapshot() memorySnapshot {
	return memorySnapshot{
		accounts: copyMap(m.accounts),
		entries:  copyMap(m.entries),
		savings:  copyMap(m.savings),
		named:    copyMap(m.named),
		entrySeq: copyMap(m.entrySeq),
		seq:      m.seq,
	}
}

func (m *Memory) restore(s memorySnapshot) {
	m.accounts = s.accounts
	m.entries = s.entries
	m.savings = s.savings
	m.named = s.named
	m.entrySeq = s.entrySeq
	m.seq = s.seq
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// txMemoryView writes straight into the parent. WithTx holds the parent's
// lock for the view's whole lifetime.
type txMemoryView struct {
	m *Memory
}

func (tv *txMemoryView) SaveAccount(_ context.Context, rec generic.AccountRecord) error {
	tv.m.accounts[rec.ID] = rec
	return nil
}

func (tv *txMemoryView) LoadAccounts(_ context.Context) ([]generic.AccountRecord, error) {
	return tv.m.accountsLocked(), nil
}

func (tv *txMemoryView) SaveEntry(_ context.Context, rec generic.EntryRecord) error {
	tv.m.saveEntryLocked(rec)
	return nil
}

func (tv *txMemoryView) DeleteEntry(_ context.Context, id generic.ID) error {
	tv.m.deleteEntryLocked(id)
	return nil
}

func (tv *txMemoryView) LoadEntries(_ context.Context) ([]generic.EntryRecord, error) {
	return tv.m.entriesLocked(), nil
}

func (tv *txMemoryView) SaveSavings(_ context.Context, rec generic.SavingsRecord) error {
	tv.m.savings[rec.ID] = rec
	return nil
}

func (tv *txMemoryView) LoadSavings(_ context.Context) ([]generic.SavingsRecord, error) {
	return tv.m.savingsLocked(), nil
}

func (tv *txMemoryView) SaveNamed(_ context.Context, rec generic.NamedRecord) error {
	tv.m.named[namedKey{Kind: rec.Kind, ID: rec.ID}] = rec
	return nil
}

func (tv *txMemoryView) LoadNamed(_ context.Context, kind generic.Kind) ([]generic.NamedRecord, error) {
	return tv.m.namedLocked(kind), nil
}

func (tv *txMemoryView) MaxID(_ context.Context, kind generic.Kind, prefix string) (string, bool, error) {
	id, ok := tv.m.maxIDLocked(kind, prefix)
	return id, ok, nil
}
