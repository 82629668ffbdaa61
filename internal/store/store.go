// Package store defines the record store contract consumed by the promotion
// workflow, along with helpers shared by its implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/stacklok/contract-promoter/internal/record"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrTypeNotFound is returned when a type definition cannot be resolved
	ErrTypeNotFound = errors.New("type definition not found")
	// ErrAlreadyExists is returned when a record with the same slug and version exists
	ErrAlreadyExists = errors.New("record already exists")
	// ErrInvalidRecord is returned when a record does not satisfy its type schema
	ErrInvalidRecord = errors.New("invalid record")
	// ErrInvalidPatch is returned when a patch cannot be applied to a record
	ErrInvalidPatch = errors.New("invalid patch")
)

// DefaultQueryLimit caps the number of records a query returns when no limit is given
const DefaultQueryLimit = 100

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go Store

// Store is the structured record store. Every method that mutates state takes
// the caller's session token; implementations record it with the change.
type Store interface {
	// Ping checks that the store is reachable
	Ping(ctx context.Context) error

	// GetTypeDefinition resolves a "slug@version" type reference. Returns
	// ErrTypeNotFound when no definition exists.
	GetTypeDefinition(ctx context.Context, typeRef string) (*record.TypeDefinition, error)

	// GetRecord returns the record with the given id, or ErrNotFound
	GetRecord(ctx context.Context, session, id string) (*record.Record, error)

	// InsertRecord validates draft against typeDef and inserts it, returning the
	// stored record with its assigned id. When provenance.AttachEvents is set a
	// create event is stored alongside it.
	InsertRecord(
		ctx context.Context,
		session string,
		typeDef *record.TypeDefinition,
		provenance record.Provenance,
		draft *record.Record,
	) (*record.Record, error)

	// PatchRecord applies JSON patch operations to the target record
	PatchRecord(
		ctx context.Context,
		session string,
		typeDef *record.TypeDefinition,
		provenance record.Provenance,
		target *record.Record,
		ops []record.PatchOperation,
	) error

	// Query returns the records that satisfy the query
	Query(ctx context.Context, session string, query Query, opts QueryOptions) ([]*record.Record, error)

	// InsertSessionRecord mints a session for actorID that expires at expiresAt.
	// The returned record id is the session token.
	InsertSessionRecord(ctx context.Context, session, actorID string, expiresAt time.Time) (*record.Record, error)
}

// Query selects records. Type narrows candidates by base type slug, Schema is
// a JSON schema the record document must satisfy and every Links entry must be
// satisfied by at least one linked record.
type Query struct {
	Type   string
	Schema map[string]any
	Links  []LinkFilter
}

// LinkFilter requires a link with the given verb to a record matching Schema.
// The verb may be either the forward name or the inverse name of a link.
type LinkFilter struct {
	Verb   string
	Schema map[string]any
}

// QueryOptions controls query result size
type QueryOptions struct {
	Limit int
}

// GetLimit returns the effective query limit.
func (o QueryOptions) GetLimit() int {
	if o.Limit <= 0 || o.Limit > DefaultQueryLimit {
		return DefaultQueryLimit
	}
	return o.Limit
}
