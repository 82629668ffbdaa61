// Package postgres provides a PostgreSQL implementation of the store.Store
// interface on top of a pgx connection pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/contract-promoter/internal/db/sqlc"
	"github.com/stacklok/contract-promoter/internal/otel"
	"github.com/stacklok/contract-promoter/internal/record"
	"github.com/stacklok/contract-promoter/internal/store"
)

const uniqueViolation = "23505"

// options holds configuration options for the PostgreSQL store
type options struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	now    func() time.Time
}

// Option is a functional option for configuring the PostgreSQL store
type Option func(*options) error

// WithConnectionPool sets the pgx pool used by the store. The caller is
// responsible for closing the pool when it is done.
func WithConnectionPool(pool *pgxpool.Pool) Option {
	return func(o *options) error {
		if pool == nil {
			return fmt.Errorf("pgx pool is required")
		}
		o.pool = pool
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer for the store.
// If not set, tracing is disabled.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// WithClock sets the clock used for creation and update timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		o.now = now
		return nil
	}
}

type pgStore struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	now    func() time.Time
}

var _ store.Store = (*pgStore)(nil)

// New creates a PostgreSQL-backed store with the given options
func New(opts ...Option) (store.Store, error) {
	o := &options{now: time.Now}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.pool == nil {
		return nil, fmt.Errorf("pgx pool is required")
	}

	return &pgStore{
		pool:   o.pool,
		tracer: o.tracer,
		now:    o.now,
	}, nil
}

// Ping implements store.Store.Ping
func (s *pgStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// GetTypeDefinition implements store.Store.GetTypeDefinition
func (s *pgStore) GetTypeDefinition(ctx context.Context, typeRef string) (*record.TypeDefinition, error) {
	ctx, span := s.startSpan(ctx, "pgStore.GetTypeDefinition", otel.AttrRecordType.String(typeRef))
	defer span.End()

	ref, err := record.ParseTypeRef(typeRef)
	if err != nil {
		err = fmt.Errorf("%w: %v", store.ErrTypeNotFound, err)
		otel.RecordError(span, err)
		return nil, err
	}

	rows, err := sqlc.New(s.pool).ListTypeDefinitions(ctx, ref.Slug)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list type definitions: %w", err)
	}
	candidates, err := toRecords(rows)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	def, err := store.SelectTypeDefinition(ref, candidates)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	return def, nil
}

// GetRecord implements store.Store.GetRecord
func (s *pgStore) GetRecord(ctx context.Context, _ string, id string) (*record.Record, error) {
	ctx, span := s.startSpan(ctx, "pgStore.GetRecord", otel.AttrRecordID.String(id))
	defer span.End()

	uid, err := uuid.Parse(id)
	if err != nil {
		// Ids are always UUIDs, anything else cannot exist
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}

	row, err := sqlc.New(s.pool).GetRecord(ctx, uid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
		}
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	return toRecord(row)
}

// InsertRecord implements store.Store.InsertRecord
func (s *pgStore) InsertRecord(
	ctx context.Context,
	session string,
	typeDef *record.TypeDefinition,
	provenance record.Provenance,
	draft *record.Record,
) (*record.Record, error) {
	ctx, span := s.startSpan(ctx, "pgStore.InsertRecord")
	defer span.End()

	r, err := store.PrepareInsert(typeDef, draft, s.now())
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	r.ID = uuid.NewString()
	span.SetAttributes(otel.RecordAttributes(r.ID, r.Slug, r.Type, r.Version)...)

	err = s.withTx(ctx, func(q *sqlc.Queries) error {
		if err := insert(ctx, q, r, session); err != nil {
			return err
		}
		if !provenance.AttachEvents {
			return nil
		}
		event := store.NewCreateEvent(r, provenance)
		event.ID = uuid.NewString()
		event.CreatedAt = r.CreatedAt
		return insert(ctx, q, event, session)
	})
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	slog.DebugContext(ctx, "Record inserted",
		"id", r.ID,
		"slug", r.Slug,
		"type", r.Type,
		"version", r.Version,
		"events", provenance.AttachEvents)
	return r, nil
}

// PatchRecord implements store.Store.PatchRecord
func (s *pgStore) PatchRecord(
	ctx context.Context,
	session string,
	typeDef *record.TypeDefinition,
	_ record.Provenance,
	target *record.Record,
	ops []record.PatchOperation,
) error {
	ctx, span := s.startSpan(ctx, "pgStore.PatchRecord")
	defer span.End()

	if target == nil || target.ID == "" {
		err := fmt.Errorf("%w: patch target id is required", store.ErrInvalidPatch)
		otel.RecordError(span, err)
		return err
	}
	span.SetAttributes(otel.AttrRecordID.String(target.ID), attribute.Int("patch.operations", len(ops)))

	uid, err := uuid.Parse(target.ID)
	if err != nil {
		return fmt.Errorf("%w: %s", store.ErrNotFound, target.ID)
	}

	err = s.withTx(ctx, func(q *sqlc.Queries) error {
		row, err := q.GetRecordForUpdate(ctx, uid)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", store.ErrNotFound, target.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to lock record %s: %w", target.ID, err)
		}
		current, err := toRecord(row)
		if err != nil {
			return err
		}

		patched, err := store.ApplyPatch(current, ops)
		if err != nil {
			return err
		}
		if err := store.ValidateData(typeDef, patched.Data); err != nil {
			return err
		}

		data, err := json.Marshal(patched.Data)
		if err != nil {
			return fmt.Errorf("failed to encode record data: %w", err)
		}
		return q.UpdateRecordData(ctx, sqlc.UpdateRecordDataParams{
			ID:        uid,
			Name:      optional(patched.Name),
			Data:      data,
			Session:   optional(session),
			UpdatedAt: s.now().UTC(),
		})
	})
	if err != nil {
		otel.RecordError(span, err)
		return err
	}
	return nil
}

// Query implements store.Store.Query. Candidates are narrowed by base type
// and link neighbours in SQL; schemas are evaluated in process.
func (s *pgStore) Query(
	ctx context.Context,
	_ string,
	query store.Query,
	opts store.QueryOptions,
) ([]*record.Record, error) {
	ctx, span := s.startSpan(ctx, "pgStore.Query",
		otel.AttrQueryType.String(query.Type),
		attribute.Int("query.links", len(query.Links)),
	)
	defer span.End()

	matcher, err := store.NewMatcher(query)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	q := sqlc.New(s.pool)
	rows, err := q.ListRecordsByBaseType(ctx, query.Type)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	limit := opts.GetLimit()
	results := make([]*record.Record, 0)
	for _, row := range rows {
		r, err := toRecord(row)
		if err != nil {
			otel.RecordError(span, err)
			return nil, err
		}
		ok, err := s.match(ctx, q, matcher, r)
		if err != nil {
			otel.RecordError(span, err)
			return nil, err
		}
		if !ok {
			continue
		}
		results = append(results, r)
		if len(results) >= limit {
			break
		}
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(results)))
	return results, nil
}

func (*pgStore) match(ctx context.Context, q *sqlc.Queries, matcher *store.Matcher, r *record.Record) (bool, error) {
	ok, err := matcher.MatchRecord(r)
	if err != nil || !ok {
		return false, err
	}
	for _, verb := range matcher.Links() {
		rows, err := q.ListLinkNeighbours(ctx, sqlc.ListLinkNeighboursParams{Verb: verb, RecordID: r.ID})
		if err != nil {
			return false, fmt.Errorf("failed to list %q neighbours of %s: %w", verb, r.ID, err)
		}
		neighbours, err := toRecords(rows)
		if err != nil {
			return false, err
		}
		ok, err := matcher.MatchLink(verb, neighbours)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// InsertSessionRecord implements store.Store.InsertSessionRecord
func (s *pgStore) InsertSessionRecord(
	ctx context.Context,
	session string,
	actorID string,
	expiresAt time.Time,
) (*record.Record, error) {
	ctx, span := s.startSpan(ctx, "pgStore.InsertSessionRecord")
	defer span.End()

	if actorID == "" {
		err := fmt.Errorf("%w: session actor is required", store.ErrInvalidRecord)
		otel.RecordError(span, err)
		return nil, err
	}

	id := uuid.NewString()
	r := store.NewSessionRecord("session-"+id, actorID, expiresAt)
	r.ID = id
	r.CreatedAt = s.now().UTC()

	if err := insert(ctx, sqlc.New(s.pool), r, session); err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	return r, nil
}

func (s *pgStore) withTx(ctx context.Context, fn func(q *sqlc.Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.WarnContext(ctx, "Failed to roll back transaction", "error", err)
		}
	}()

	if err := fn(sqlc.New(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insert(ctx context.Context, q *sqlc.Queries, r *record.Record, session string) error {
	uid, err := uuid.Parse(r.ID)
	if err != nil {
		return fmt.Errorf("%w: id %q is not a UUID", store.ErrInvalidRecord, r.ID)
	}
	data := r.Data
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode record data: %w", err)
	}

	err = q.InsertRecord(ctx, sqlc.InsertRecordParams{
		ID:        uid,
		Slug:      r.Slug,
		Type:      r.Type,
		Version:   r.Version,
		Name:      optional(r.Name),
		Data:      raw,
		Session:   optional(session),
		CreatedAt: r.CreatedAt,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s@%s", store.ErrAlreadyExists, r.Slug, r.Version)
		}
		return fmt.Errorf("failed to insert record %s@%s: %w", r.Slug, r.Version, err)
	}
	return nil
}

func toRecord(row sqlc.Record) (*record.Record, error) {
	r := &record.Record{
		ID:        row.ID.String(),
		Slug:      row.Slug,
		Type:      row.Type,
		Version:   row.Version,
		CreatedAt: row.CreatedAt.UTC(),
	}
	if row.Name != nil {
		r.Name = *row.Name
	}
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &r.Data); err != nil {
			return nil, fmt.Errorf("failed to decode data of record %s: %w", r.ID, err)
		}
	}
	if r.Data == nil {
		r.Data = map[string]any{}
	}
	return r, nil
}

func toRecords(rows []sqlc.Record) ([]*record.Record, error) {
	out := make([]*record.Record, 0, len(rows))
	for _, row := range rows {
		r, err := toRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
