// Package memory provides an in-process data service for tests and local
// development. Safe for concurrent use.
package memory

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bjaus/plugin"
	"github.com/bjaus/plugin/internal/ids"
)

// ModifiedByAttribute is stamped with the acting user on every write.
const ModifiedByAttribute = "modifiedby"

// Ensure the store and its sessions satisfy the plugin contracts.
var (
	_ plugin.ServiceFactory = (*Store)(nil)
	_ plugin.Session        = (*Session)(nil)
)

// Write is one Create, Update, or Delete seen by the store, in order.
type Write struct {
	Op     string
	UserID string
	Record *plugin.Record
}

// Store keeps records in maps keyed by logical name and id.
type Store struct {
	mu      sync.RWMutex
	records map[string]map[string]plugin.Attributes
	writes  []Write

	opened atomic.Int64
	closed atomic.Int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{records: make(map[string]map[string]plugin.Attributes)}
}

// Seed stores rec as-is, bypassing sessions. Useful for test setup.
func (s *Store) Seed(rec *plugin.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table(rec.LogicalName)[rec.ID] = rec.Clone().Attributes
}

// Writes returns the writes made through sessions, oldest first.
func (s *Store) Writes() []Write {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Write, len(s.writes))
	copy(out, s.writes)
	return out
}

// OpenSessions returns the number of sessions opened and not yet closed.
func (s *Store) OpenSessions() int64 {
	return s.opened.Load() - s.closed.Load()
}

// OpenSession implements plugin.ServiceFactory.
func (s *Store) OpenSession(ctx context.Context, userID string) (plugin.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.opened.Add(1)
	return &Session{store: s, userID: userID}, nil
}

func (s *Store) table(logicalName string) map[string]plugin.Attributes {
	key := strings.ToLower(logicalName)
	t, ok := s.records[key]
	if !ok {
		t = make(map[string]plugin.Attributes)
		s.records[key] = t
	}
	return t
}

// Session is a plugin.Session acting as one user.
type Session struct {
	store  *Store
	userID string
	closed atomic.Bool
}

// UserID returns the user the session acts as.
func (s *Session) UserID() string { return s.userID }

// Close releases the session. Closing twice is a no-op.
func (s *Session) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.store.closed.Add(1)
	}
	return nil
}

// Create implements plugin.DataService.
func (s *Session) Create(ctx context.Context, rec *plugin.Record) (string, error) {
	if err := s.check(ctx); err != nil {
		return "", err
	}
	out := rec.Clone()
	if out.ID == "" {
		out.ID = ids.New()
	}
	out.Attributes[ModifiedByAttribute] = s.userID

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.table(out.LogicalName)[out.ID] = out.Attributes
	s.store.writes = append(s.store.writes, Write{Op: plugin.MessageCreate, UserID: s.userID, Record: out.Clone()})
	return out.ID, nil
}

// Retrieve implements plugin.DataService.
func (s *Session) Retrieve(ctx context.Context, ref plugin.Reference, columns ...string) (*plugin.Record, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	attrs, ok := s.store.records[strings.ToLower(ref.LogicalName)][ref.ID]
	if !ok {
		return nil, plugin.ErrNotFound
	}
	out := plugin.NewRecord(ref.LogicalName, ref.ID)
	if len(columns) == 0 {
		for k, v := range attrs {
			out.Attributes[k] = v
		}
		return out, nil
	}
	for _, c := range columns {
		if v, ok := attrs[c]; ok {
			out.Attributes[c] = v
		}
	}
	return out, nil
}

// Update implements plugin.DataService. Only attributes present on rec are
// written.
func (s *Session) Update(ctx context.Context, rec *plugin.Record) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	attrs, ok := s.store.table(rec.LogicalName)[rec.ID]
	if !ok {
		return plugin.ErrNotFound
	}
	for k, v := range rec.Attributes {
		attrs[k] = v
	}
	attrs[ModifiedByAttribute] = s.userID
	s.store.writes = append(s.store.writes, Write{Op: plugin.MessageUpdate, UserID: s.userID, Record: rec.Clone()})
	return nil
}

// Delete implements plugin.DataService.
func (s *Session) Delete(ctx context.Context, ref plugin.Reference) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	t := s.store.table(ref.LogicalName)
	if _, ok := t[ref.ID]; !ok {
		return plugin.ErrNotFound
	}
	delete(t, ref.ID)
	s.store.writes = append(s.store.writes, Write{
		Op:     plugin.MessageDelete,
		UserID: s.userID,
		Record: plugin.NewRecord(ref.LogicalName, ref.ID),
	})
	return nil
}

func (s *Session) check(ctx context.Context) error {
	if s.closed.Load() {
		return plugin.ErrSessionClosed
	}
	return ctx.Err()
}
