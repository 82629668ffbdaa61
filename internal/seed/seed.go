// Package seed loads type definitions, records, links and sessions from a
// YAML document into a record store.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/contract-promoter/internal/links"
	"github.com/stacklok/contract-promoter/internal/record"
	"github.com/stacklok/contract-promoter/internal/store"
)

// Actor is recorded as the actor of every seeded write
const Actor = "contract-promoter-seed"

// File is the seed document
type File struct {
	Types    []TypeEntry    `yaml:"types"`
	Records  []RecordEntry  `yaml:"records"`
	Links    []LinkEntry    `yaml:"links"`
	Sessions []SessionEntry `yaml:"sessions"`
}

// TypeEntry defines a record type
type TypeEntry struct {
	Slug    string         `yaml:"slug"`
	Version string         `yaml:"version"`
	Schema  map[string]any `yaml:"schema"`
}

// RecordEntry is a record to insert. Type is a "slug@version" reference.
type RecordEntry struct {
	Slug    string         `yaml:"slug"`
	Type    string         `yaml:"type"`
	Version string         `yaml:"version"`
	Name    string         `yaml:"name"`
	Data    map[string]any `yaml:"data"`
}

// LinkEntry links two records named "slug@version"
type LinkEntry struct {
	From    string `yaml:"from"`
	To      string `yaml:"to"`
	Verb    string `yaml:"verb"`
	Inverse string `yaml:"inverse"`
}

// SessionEntry mints a session for the actor named "slug@version"
type SessionEntry struct {
	Actor string `yaml:"actor"`
	TTL   string `yaml:"ttl"`
}

// Session is a minted session
type Session struct {
	Actor     string    `json:"actor"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Result summarizes a seed run
type Result struct {
	Inserted []record.Summary `json:"inserted"`
	Skipped  []string         `json:"skipped"`
	Sessions []Session        `json:"sessions"`
}

// Load reads a seed document from path
func Load(path string) (*File, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a seed document. Mappings are normalized to their JSON form
// so seeded data compares equal to data read back from a store.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for i := range f.Types {
		if err := normalize(&f.Types[i].Schema); err != nil {
			return nil, fmt.Errorf("type %s: %w", f.Types[i].Slug, err)
		}
	}
	for i := range f.Records {
		if err := normalize(&f.Records[i].Data); err != nil {
			return nil, fmt.Errorf("record %s: %w", f.Records[i].Slug, err)
		}
	}
	return &f, nil
}

func normalize(m *map[string]any) error {
	if *m == nil {
		return nil
	}
	raw, err := json.Marshal(*m)
	if err != nil {
		return fmt.Errorf("failed to encode: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to decode: %w", err)
	}
	*m = out
	return nil
}

// Seeder applies seed documents to a store
type Seeder struct {
	store store.Store
	links *links.Builder
	now   func() time.Time
}

// Option configures a Seeder
type Option func(*Seeder)

// WithClock sets the clock used for provenance and session expiry
func WithClock(now func() time.Time) Option {
	return func(s *Seeder) {
		s.now = now
	}
}

// New creates a Seeder writing to s
func New(s store.Store, opts ...Option) *Seeder {
	sd := &Seeder{store: s, now: time.Now}
	for _, opt := range opts {
		opt(sd)
	}
	sd.links = links.NewBuilder(s, links.WithClock(sd.now))
	return sd
}

// Apply inserts the content of f: types first, then records, links and
// sessions. Types and records that already exist are skipped, so a document
// can be applied more than once. Links are always created.
func (s *Seeder) Apply(ctx context.Context, f *File) (*Result, error) {
	res := &Result{Inserted: []record.Summary{}, Skipped: []string{}, Sessions: []Session{}}
	prov := record.Provenance{Timestamp: s.now(), Actor: Actor}
	ids := make(map[string]*record.Record)

	meta := store.MetaTypeDefinition()
	for _, t := range f.Types {
		def := &record.TypeDefinition{Slug: t.Slug, Version: t.Version, Schema: t.Schema}
		if def.Version == "" {
			def.Version = "1.0.0"
		}
		if err := s.insert(ctx, meta, prov, store.TypeDefinitionRecord(def), res, ids); err != nil {
			return res, fmt.Errorf("failed to seed type %s: %w", def.Ref(), err)
		}
	}

	for _, r := range f.Records {
		def, err := s.store.GetTypeDefinition(ctx, r.Type)
		if err != nil {
			return res, fmt.Errorf("failed to resolve type of record %s: %w", r.Slug, err)
		}
		rec := &record.Record{Slug: r.Slug, Type: r.Type, Version: r.Version, Name: r.Name, Data: r.Data}
		if err := s.insert(ctx, def, prov, rec, res, ids); err != nil {
			return res, fmt.Errorf("failed to seed record %s: %w", r.Slug, err)
		}
	}

	for _, l := range f.Links {
		from, err := s.resolve(ctx, l.From, ids)
		if err != nil {
			return res, err
		}
		to, err := s.resolve(ctx, l.To, ids)
		if err != nil {
			return res, err
		}
		link, err := s.links.Link(ctx, "", prov, links.Edge{From: from, To: to, Verb: l.Verb, Inverse: l.Inverse})
		if err != nil {
			return res, fmt.Errorf("failed to link %s to %s: %w", l.From, l.To, err)
		}
		res.Inserted = append(res.Inserted, link.Summary())
	}

	for _, se := range f.Sessions {
		actor, err := s.resolve(ctx, se.Actor, ids)
		if err != nil {
			return res, err
		}
		ttl := 24 * time.Hour
		if se.TTL != "" {
			if ttl, err = time.ParseDuration(se.TTL); err != nil || ttl <= 0 {
				return res, fmt.Errorf("invalid session ttl %q for %s", se.TTL, se.Actor)
			}
		}
		expiresAt := s.now().Add(ttl)
		minted, err := s.store.InsertSessionRecord(ctx, "", actor.ID, expiresAt)
		if err != nil {
			return res, fmt.Errorf("failed to mint session for %s: %w", se.Actor, err)
		}
		res.Sessions = append(res.Sessions, Session{Actor: actor.Slug, Token: minted.ID, ExpiresAt: expiresAt})
	}

	slog.InfoContext(ctx, "Seed applied",
		"inserted", len(res.Inserted),
		"skipped", len(res.Skipped),
		"sessions", len(res.Sessions))
	return res, nil
}

func (s *Seeder) insert(
	ctx context.Context,
	def *record.TypeDefinition,
	prov record.Provenance,
	rec *record.Record,
	res *Result,
	ids map[string]*record.Record,
) error {
	stored, err := s.store.InsertRecord(ctx, "", def, prov, rec)
	if errors.Is(err, store.ErrAlreadyExists) {
		slog.DebugContext(ctx, "Seed entry already present", "slug", rec.Slug, "version", rec.Version)
		res.Skipped = append(res.Skipped, rec.Slug+"@"+rec.Version)
		return nil
	}
	if err != nil {
		return err
	}
	ids[stored.Slug+"@"+stored.Version] = stored
	res.Inserted = append(res.Inserted, stored.Summary())
	return nil
}

// resolve finds the record named "slug@version", first among the records
// inserted by this run and then in the store
func (s *Seeder) resolve(ctx context.Context, ref string, ids map[string]*record.Record) (*record.Record, error) {
	if r, ok := ids[ref]; ok {
		return r, nil
	}
	found, err := FindRecord(ctx, s.store, "", ref)
	if err != nil {
		return nil, err
	}
	ids[ref] = found
	return found, nil
}

// FindRecord returns the record referenced as "slug@version"
func FindRecord(ctx context.Context, s store.Store, session, ref string) (*record.Record, error) {
	slug, version, ok := strings.Cut(ref, "@")
	if !ok || slug == "" || version == "" {
		return nil, fmt.Errorf("invalid record reference %q, expected slug@version", ref)
	}

	found, err := s.Query(ctx, session, store.Query{
		Schema: map[string]any{
			"type":     "object",
			"required": []any{"slug", "version"},
			"properties": map[string]any{
				"slug":    map[string]any{"const": slug},
				"version": map[string]any{"const": version},
			},
		},
	}, store.QueryOptions{Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", ref, err)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, ref)
	}
	return found[0], nil
}
