// Package inmemory provides an in-memory implementation of the store.Store
// interface. It is used by tests and by the "memory" storage type.
package inmemory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/contract-promoter/internal/record"
	"github.com/stacklok/contract-promoter/internal/store"
)

type memStore struct {
	mu      sync.RWMutex // Protects records, order, keys
	records map[string]*record.Record
	order   []string
	keys    map[string]string

	now   func() time.Time
	newID func() string
}

var _ store.Store = (*memStore)(nil)

// Option is a functional option for configuring the in-memory store
type Option func(*memStore)

// WithClock sets the clock used for creation timestamps
func WithClock(now func() time.Time) Option {
	return func(s *memStore) {
		s.now = now
	}
}

// WithIDGenerator sets the generator for record ids
func WithIDGenerator(newID func() string) Option {
	return func(s *memStore) {
		s.newID = newID
	}
}

// WithRecords preloads records as they are, without schema validation.
// Records without an id get one assigned.
func WithRecords(records ...*record.Record) Option {
	return func(s *memStore) {
		for _, r := range records {
			if err := s.putLocked(r.Clone()); err != nil {
				slog.Warn("Skipping preloaded record", "slug", r.Slug, "version", r.Version, "error", err)
			}
		}
	}
}

// New creates an empty in-memory store holding only the meta type definition.
func New(opts ...Option) store.Store {
	s := &memStore{
		records: make(map[string]*record.Record),
		keys:    make(map[string]string),
		now:     time.Now,
		newID:   uuid.NewString,
	}

	meta := store.TypeDefinitionRecord(store.MetaTypeDefinition())
	if err := s.putLocked(meta); err != nil {
		panic(fmt.Sprintf("failed to bootstrap meta type definition: %v", err))
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping implements store.Store.Ping
func (*memStore) Ping(_ context.Context) error {
	return nil
}

// GetTypeDefinition implements store.Store.GetTypeDefinition
func (s *memStore) GetTypeDefinition(_ context.Context, typeRef string) (*record.TypeDefinition, error) {
	ref, err := record.ParseTypeRef(typeRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrTypeNotFound, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []*record.Record
	for _, id := range s.order {
		r := s.records[id]
		if r.Slug == ref.Slug && record.BaseType(r.Type) == record.TypeType {
			candidates = append(candidates, r)
		}
	}
	def, err := store.SelectTypeDefinition(ref, candidates)
	if err != nil {
		return nil, err
	}
	// Schema maps are shared with the stored record
	return &record.TypeDefinition{
		ID:      def.ID,
		Slug:    def.Slug,
		Version: def.Version,
		Schema:  (&record.Record{Data: def.Schema}).Clone().Data,
	}, nil
}

// GetRecord implements store.Store.GetRecord
func (s *memStore) GetRecord(_ context.Context, _ string, id string) (*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return r.Clone(), nil
}

// InsertRecord implements store.Store.InsertRecord
func (s *memStore) InsertRecord(
	_ context.Context,
	_ string,
	typeDef *record.TypeDefinition,
	provenance record.Provenance,
	draft *record.Record,
) (*record.Record, error) {
	r, err := store.PrepareInsert(typeDef, draft, s.now())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[key(r.Slug, r.Version)]; exists {
		return nil, fmt.Errorf("%w: %s@%s", store.ErrAlreadyExists, r.Slug, r.Version)
	}

	var event *record.Record
	r.ID = s.newID()
	if provenance.AttachEvents {
		event = store.NewCreateEvent(r, provenance)
		event.ID = s.newID()
		event.CreatedAt = r.CreatedAt
		if _, exists := s.keys[key(event.Slug, event.Version)]; exists {
			return nil, fmt.Errorf("%w: %s@%s", store.ErrAlreadyExists, event.Slug, event.Version)
		}
	}

	if err := s.putLocked(r); err != nil {
		return nil, err
	}
	if event != nil {
		if err := s.putLocked(event); err != nil {
			return nil, err
		}
	}
	return r.Clone(), nil
}

// PatchRecord implements store.Store.PatchRecord
func (s *memStore) PatchRecord(
	_ context.Context,
	_ string,
	typeDef *record.TypeDefinition,
	_ record.Provenance,
	target *record.Record,
	ops []record.PatchOperation,
) error {
	if target == nil || target.ID == "" {
		return fmt.Errorf("%w: patch target id is required", store.ErrInvalidPatch)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[target.ID]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrNotFound, target.ID)
	}
	patched, err := store.ApplyPatch(current, ops)
	if err != nil {
		return err
	}
	if err := store.ValidateData(typeDef, patched.Data); err != nil {
		return err
	}
	s.records[target.ID] = patched
	return nil
}

// Query implements store.Store.Query
func (s *memStore) Query(
	_ context.Context,
	_ string,
	query store.Query,
	opts store.QueryOptions,
) ([]*record.Record, error) {
	matcher, err := store.NewMatcher(query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := opts.GetLimit()
	results := make([]*record.Record, 0)
	for _, id := range s.order {
		r := s.records[id]
		ok, err := matcher.MatchRecord(r)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for _, verb := range matcher.Links() {
			ok, err = matcher.MatchLink(verb, s.neighboursLocked(r.ID, verb))
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
		}
		if !ok {
			continue
		}
		results = append(results, r.Clone())
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// InsertSessionRecord implements store.Store.InsertSessionRecord
func (s *memStore) InsertSessionRecord(
	_ context.Context,
	_ string,
	actorID string,
	expiresAt time.Time,
) (*record.Record, error) {
	if actorID == "" {
		return nil, fmt.Errorf("%w: session actor is required", store.ErrInvalidRecord)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	session := store.NewSessionRecord("session-"+id, actorID, expiresAt)
	session.ID = id
	session.CreatedAt = s.now().UTC()
	if err := s.putLocked(session); err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

// neighboursLocked returns the records reached from id through links named
// verb, either forward or inverse. Caller must hold s.mu.
func (s *memStore) neighboursLocked(id, verb string) []*record.Record {
	var out []*record.Record
	for _, lid := range s.order {
		link := s.records[lid]
		if record.BaseType(link.Type) != record.TypeLink {
			continue
		}
		from, to := store.LinkEnds(link)
		var other string
		switch {
		case link.Name == verb && from == id:
			other = to
		case store.InverseName(link) == verb && to == id:
			other = from
		default:
			continue
		}
		if n, ok := s.records[other]; ok {
			out = append(out, n)
		}
	}
	return out
}

// putLocked stores r, enforcing slug/version uniqueness. Caller must hold s.mu
// or own s exclusively.
func (s *memStore) putLocked(r *record.Record) error {
	if r.ID == "" {
		r.ID = s.newID()
	}
	k := key(r.Slug, r.Version)
	if _, exists := s.keys[k]; exists {
		return fmt.Errorf("%w: %s@%s", store.ErrAlreadyExists, r.Slug, r.Version)
	}
	if _, exists := s.records[r.ID]; exists {
		return fmt.Errorf("%w: id %s", store.ErrAlreadyExists, r.ID)
	}
	s.records[r.ID] = r
	s.keys[k] = r.ID
	s.order = append(s.order, r.ID)
	return nil
}

func key(slug, version string) string {
	return slug + "@" + version
}
