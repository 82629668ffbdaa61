package promotion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/contract-promoter/internal/links"
	"github.com/stacklok/contract-promoter/internal/otel"
	"github.com/stacklok/contract-promoter/internal/record"
	"github.com/stacklok/contract-promoter/internal/registry"
	"github.com/stacklok/contract-promoter/internal/store"
	"github.com/stacklok/contract-promoter/internal/telemetry"
	"github.com/stacklok/contract-promoter/internal/versions"
)

const (
	// ServiceTracerName is the name used for the promotion tracer
	ServiceTracerName = "github.com/stacklok/contract-promoter/promotion"

	transformerKey    = "$transformer"
	artifactReadyKey  = "artifactReady"
	artifactReadyPath = "/data/" + transformerKey + "/" + artifactReadyKey
)

// Outcome labels reported with promotion metrics
const (
	OutcomePromoted        = "promoted"
	OutcomeNotADraft       = "not_a_draft"
	OutcomeUnknownType     = "unknown_type"
	OutcomeAlreadyPromoted = "already_promoted"
	OutcomeRegistryError   = "registry_error"
	OutcomeFailed          = "failed"
)

// Option is a functional option for configuring the promoter
type Option func(*promoter)

// WithRetagger sets the client used to publish artifacts. Without it, drafts
// carrying a ready artifact fail with ErrNoRegistry.
func WithRetagger(r Retagger) Option {
	return func(p *promoter) {
		p.retagger = r
	}
}

// WithLinkBuilder replaces the link builder
func WithLinkBuilder(b *links.Builder) Option {
	return func(p *promoter) {
		p.links = b
	}
}

// WithTracer sets the OpenTelemetry tracer
func WithTracer(tracer trace.Tracer) Option {
	return func(p *promoter) {
		p.tracer = tracer
	}
}

// WithMetrics sets the promotion metrics
func WithMetrics(m *telemetry.PromotionMetrics) Option {
	return func(p *promoter) {
		p.metrics = m
	}
}

// WithClock sets the clock used for timestamps and session expiry
func WithClock(now func() time.Time) Option {
	return func(p *promoter) {
		p.now = now
	}
}

// WithSessionTTL sets the lifetime of sessions minted for registry access
func WithSessionTTL(ttl time.Duration) Option {
	return func(p *promoter) {
		p.sessionTTL = ttl
	}
}

type promoter struct {
	store      store.Store
	retagger   Retagger
	links      *links.Builder
	tracer     trace.Tracer
	metrics    *telemetry.PromotionMetrics
	now        func() time.Time
	sessionTTL time.Duration
}

// New creates a promotion service backed by s
func New(s store.Store, opts ...Option) (Service, error) {
	if s == nil {
		return nil, fmt.Errorf("store is required")
	}

	p := &promoter{
		store:      s,
		now:        time.Now,
		sessionTTL: DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.sessionTTL <= 0 {
		return nil, fmt.Errorf("session TTL must be positive, got %s", p.sessionTTL)
	}
	if p.links == nil {
		p.links = links.NewBuilder(s, links.WithClock(p.now))
	}
	return p, nil
}

// CheckReadiness implements Service.CheckReadiness
func (p *promoter) CheckReadiness(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("store not reachable: %w", err)
	}
	return nil
}

// GetRecord implements Service.GetRecord
func (p *promoter) GetRecord(ctx context.Context, session, id string) (*record.Record, error) {
	return p.store.GetRecord(ctx, session, id)
}

// PromoteRecord implements Service.PromoteRecord
func (p *promoter) PromoteRecord(ctx context.Context, session, id string, req Request) (*record.Summary, error) {
	draft, err := p.store.GetRecord(ctx, session, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load record %s: %w", id, err)
	}
	return p.PromoteDraft(ctx, session, draft, req)
}

// PromoteDraft implements Service.PromoteDraft
func (p *promoter) PromoteDraft(
	ctx context.Context,
	session string,
	draft *record.Record,
	req Request,
) (summary *record.Summary, retErr error) {
	if draft == nil {
		return nil, fmt.Errorf("draft record is required")
	}

	start := p.now()
	ctx, span := otel.StartSpan(ctx, p.tracer, "promotion.PromoteDraft", trace.WithAttributes(
		otel.RecordAttributes(draft.ID, draft.Slug, draft.Type, draft.Version)...,
	))
	defer func() {
		otel.RecordError(span, retErr)
		p.metrics.RecordPromotion(ctx, outcome(retErr), p.now().Sub(start))
		span.End()
	}()

	if !versions.IsDraft(draft.Version) {
		return nil, fmt.Errorf("%w: %s@%s", ErrNotADraft, draft.Slug, draft.Version)
	}

	typeDef, err := p.store.GetTypeDefinition(ctx, draft.Type)
	if err != nil {
		if errors.Is(err, store.ErrTypeNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownType, draft.Type)
		}
		return nil, fmt.Errorf("failed to resolve type %s: %w", draft.Type, err)
	}

	flag, _ := draft.Lookup(transformerKey, artifactReadyKey)
	publish := truthy(flag)

	final, err := finalCopy(draft, publish)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(otel.AttrFinalVersion.String(final.Version))

	prov := record.Provenance{
		Timestamp:    req.Timestamp,
		Actor:        req.Actor,
		Originator:   req.Originator,
		AttachEvents: true,
	}
	if prov.Timestamp.IsZero() {
		prov.Timestamp = start
	}

	// Publication requirements are checked before anything is written
	var actor *record.Record
	if publish {
		if actor, err = p.publisher(ctx, session, draft, prov.Actor); err != nil {
			return nil, err
		}
	}

	final, err = p.store.InsertRecord(ctx, session, typeDef, prov, final)
	if err != nil {
		return nil, fmt.Errorf("failed to store final record %s@%s: %w", draft.Slug, draft.Version, err)
	}
	slog.InfoContext(ctx, "Final record stored",
		"id", final.ID,
		"slug", final.Slug,
		"version", final.Version,
		"draft_id", draft.ID)

	if publish {
		if err := p.publishArtifact(ctx, session, typeDef, prov, actor, draft, final, flag); err != nil {
			return nil, err
		}
	}

	linkProv := prov
	linkProv.AttachEvents = false

	if err := p.link(ctx, session, linkProv, links.Edge{
		From:    draft,
		To:      final,
		Verb:    links.VerbMergedAs,
		Inverse: links.VerbMergedFrom,
	}); err != nil {
		return nil, err
	}

	if err := p.linkRepository(ctx, session, linkProv, draft, final); err != nil {
		return nil, err
	}

	s := final.Summary()
	slog.InfoContext(ctx, "Draft promoted",
		"slug", s.Slug,
		"draft_version", draft.Version,
		"version", s.Version,
		"id", s.ID,
		"artifact_published", publish)
	return &s, nil
}

// publisher resolves the actor an artifact is published as. It fails when no
// registry is configured or the actor does not exist.
func (p *promoter) publisher(ctx context.Context, session string, draft *record.Record, actorID string) (*record.Record, error) {
	if p.retagger == nil {
		return nil, fmt.Errorf("%w: cannot publish artifact of %s@%s", ErrNoRegistry, draft.Slug, draft.Version)
	}

	actor, err := p.store.GetRecord(ctx, session, actorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownActor, actorID)
		}
		return nil, fmt.Errorf("failed to resolve actor %s: %w", actorID, err)
	}
	return actor, nil
}

// publishArtifact mints a short-lived session for actor, retags the draft's
// manifest under the final version and records the new reference on the
// final record.
func (p *promoter) publishArtifact(
	ctx context.Context,
	session string,
	typeDef *record.TypeDefinition,
	prov record.Provenance,
	actor *record.Record,
	draft, final *record.Record,
	flag any,
) (retErr error) {
	ctx, span := otel.StartSpan(ctx, p.tracer, "promotion.publishArtifact", trace.WithAttributes(
		otel.AttrRecordID.String(final.ID),
		otel.AttrFinalVersion.String(final.Version),
	))
	defer func() {
		otel.RecordError(span, retErr)
		span.End()
	}()

	minted, err := p.store.InsertSessionRecord(ctx, session, actor.ID, p.now().Add(p.sessionTTL))
	if err != nil {
		return fmt.Errorf("failed to mint registry session for %s: %w", actor.Slug, err)
	}

	result, err := p.retagger.Retag(ctx, draft, final, actor.Slug, minted.ID)
	if err != nil {
		return fmt.Errorf("failed to publish artifact of %s@%s: %w", final.Slug, final.Version, err)
	}

	ready := rewriteFlag(flag, draft.Version, final.Version)
	if err := p.store.PatchRecord(ctx, session, typeDef, prov, final, []record.PatchOperation{
		record.Replace(artifactReadyPath, ready),
	}); err != nil {
		return fmt.Errorf("failed to mark artifact of %s@%s ready: %w", final.Slug, final.Version, err)
	}
	final.Set(ready, transformerKey, artifactReadyKey)

	if result != nil {
		slog.InfoContext(ctx, "Artifact published",
			"slug", final.Slug,
			"version", final.Version,
			"digest", result.Digest.String())
	}
	return nil
}

// linkRepository links final into the repository containing draft, if any
func (p *promoter) linkRepository(
	ctx context.Context,
	session string,
	prov record.Provenance,
	draft, final *record.Record,
) error {
	repos, err := p.store.Query(ctx, session, store.Query{
		Type: record.TypeContractRepository,
		Links: []store.LinkFilter{{
			Verb: links.VerbContains,
			Schema: map[string]any{
				"type":     "object",
				"required": []any{"id"},
				"properties": map[string]any{
					"id": map[string]any{"const": draft.ID},
				},
			},
		}},
	}, store.QueryOptions{Limit: 1})
	if err != nil {
		return fmt.Errorf("failed to find repository of %s: %w", draft.Slug, err)
	}
	if len(repos) == 0 {
		slog.DebugContext(ctx, "Draft belongs to no repository", "draft_id", draft.ID)
		return nil
	}

	return p.link(ctx, session, prov, links.Edge{
		From:    repos[0],
		To:      final,
		Verb:    links.VerbContains,
		Inverse: links.VerbContainedIn,
	})
}

// link inserts edge. A missing link type is reported as ErrUnknownType.
func (p *promoter) link(ctx context.Context, session string, prov record.Provenance, edge links.Edge) error {
	_, err := p.links.Link(ctx, session, prov, edge)
	if errors.Is(err, links.ErrUnknownType) {
		return fmt.Errorf("%w: %w", ErrUnknownType, err)
	}
	return err
}

// finalCopy returns a copy of draft without id and with the finalized
// version. A pending artifact is reset until it is published.
func finalCopy(draft *record.Record, publish bool) (*record.Record, error) {
	version, err := versions.Finalize(draft.Version)
	if err != nil {
		return nil, err
	}

	final := draft.Clone()
	final.ID = ""
	final.CreatedAt = time.Time{}
	final.Version = version
	if publish {
		final.Set(false, transformerKey, artifactReadyKey)
	}
	return final, nil
}

// rewriteFlag computes the artifact flag of the final record. References are
// rewritten by plain substring replacement of the version.
func rewriteFlag(flag any, draftVersion, finalVersion string) any {
	if ref, ok := flag.(string); ok {
		return strings.ReplaceAll(ref, draftVersion, finalVersion)
	}
	return true
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		return true
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomePromoted
	case errors.Is(err, ErrNotADraft):
		return OutcomeNotADraft
	case errors.Is(err, ErrUnknownType):
		return OutcomeUnknownType
	case errors.Is(err, store.ErrAlreadyExists):
		return OutcomeAlreadyPromoted
	case registry.IsCommunicationError(err):
		return OutcomeRegistryError
	default:
		return OutcomeFailed
	}
}
