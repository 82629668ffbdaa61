// Package links creates named, directed relationship edges between records.
package links

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/contract-promoter/internal/record"
	"github.com/stacklok/contract-promoter/internal/store"
)

// ErrUnknownType is returned when the link type cannot be resolved
var ErrUnknownType = errors.New("link type is not defined")

// Verbs used by the promotion workflow
const (
	VerbMergedAs      = "was merged as"
	VerbMergedFrom    = "was merged from"
	VerbContains      = "contains"
	VerbContainedIn   = "is contained in"
	linkSlugPrefix    = "link-"
	linkRecordVersion = "1.0.0"
)

// Edge describes a link to create
type Edge struct {
	From    *record.Record
	To      *record.Record
	Verb    string
	Inverse string
}

// Builder inserts link records through the store
type Builder struct {
	store store.Store
	now   func() time.Time
	newID func() string
}

// Option is a functional option for configuring the builder
type Option func(*Builder)

// WithClock sets the clock used for link provenance
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		b.now = now
	}
}

// WithSlugGenerator sets the generator of the unique part of link slugs
func WithSlugGenerator(newID func() string) Option {
	return func(b *Builder) {
		b.newID = newID
	}
}

// NewBuilder creates a link builder backed by s
func NewBuilder(s store.Store, opts ...Option) *Builder {
	b := &Builder{
		store: s,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Link inserts a link record from edge.From to edge.To named edge.Verb, with
// edge.Inverse as the name seen from the target. Links are not deduplicated.
func (b *Builder) Link(ctx context.Context, session string, prov record.Provenance, edge Edge) (*record.Record, error) {
	if edge.From == nil || edge.To == nil || edge.From.ID == "" || edge.To.ID == "" {
		return nil, fmt.Errorf("link %q requires stored records on both ends", edge.Verb)
	}
	if edge.Verb == "" || edge.Inverse == "" {
		return nil, fmt.Errorf("link between %s and %s requires a verb and its inverse", edge.From.Slug, edge.To.Slug)
	}

	def, err := b.store.GetTypeDefinition(ctx, record.LinkTypeRef)
	if err != nil {
		if errors.Is(err, store.ErrTypeNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownType, record.LinkTypeRef)
		}
		return nil, fmt.Errorf("failed to resolve %s: %w", record.LinkTypeRef, err)
	}

	if prov.Timestamp.IsZero() {
		prov.Timestamp = b.now()
	}

	link := &record.Record{
		Slug:    linkSlugPrefix + b.newID(),
		Type:    record.LinkTypeRef,
		Version: linkRecordVersion,
		Name:    edge.Verb,
		Data: map[string]any{
			"inverseName": edge.Inverse,
			"from":        endpoint(edge.From),
			"to":          endpoint(edge.To),
		},
	}

	created, err := b.store.InsertRecord(ctx, session, def, prov, link)
	if err != nil {
		return nil, fmt.Errorf("failed to link %s %q %s: %w", edge.From.Slug, edge.Verb, edge.To.Slug, err)
	}

	slog.DebugContext(ctx, "Records linked",
		"link", created.Slug,
		"verb", edge.Verb,
		"from", edge.From.ID,
		"to", edge.To.ID)
	return created, nil
}

func endpoint(r *record.Record) map[string]any {
	return map[string]any{
		"id":   r.ID,
		"slug": r.Slug,
		"type": r.Type,
	}
}
