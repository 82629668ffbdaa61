// Package promotion turns draft records into their final releases: it creates
// the final record, publishes the draft's artifact under the final version and
// links the new release into the record graph.
package promotion

import (
	"context"
	"errors"
	"time"

	"github.com/stacklok/contract-promoter/internal/record"
	"github.com/stacklok/contract-promoter/internal/registry"
)

var (
	// ErrNotADraft is returned when the record version has no pre-release
	ErrNotADraft = errors.New("record is not a draft")
	// ErrUnknownType is returned when the record type cannot be resolved
	ErrUnknownType = errors.New("record type is not defined")
	// ErrUnknownActor is returned when the promoting actor has no record
	ErrUnknownActor = errors.New("actor record not found")
	// ErrNoRegistry is returned when an artifact must be published but no
	// registry client is configured
	ErrNoRegistry = errors.New("no registry configured")
)

// DefaultSessionTTL is the lifetime of the session minted for registry access
const DefaultSessionTTL = 10 * time.Minute

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go Service,Retagger

// Request is the envelope of a promotion
type Request struct {
	// Timestamp is recorded on every write; the current time if zero
	Timestamp time.Time
	// Actor is the id of the actor record performing the promotion
	Actor string
	// Originator identifies the request that triggered the promotion
	Originator string
}

// Service defines the promotion operations
type Service interface {
	// CheckReadiness checks that the backing store is reachable
	CheckReadiness(ctx context.Context) error

	// GetRecord returns the record with the given id
	GetRecord(ctx context.Context, session, id string) (*record.Record, error)

	// PromoteRecord loads the record with the given id and promotes it
	PromoteRecord(ctx context.Context, session, id string, req Request) (*record.Summary, error)

	// PromoteDraft creates the final release of draft and returns its summary.
	// Failures after the final record is stored leave it in place.
	PromoteDraft(ctx context.Context, session string, draft *record.Record, req Request) (*record.Summary, error)
}

// Retagger makes a draft's artifact available under the final version
type Retagger interface {
	Retag(
		ctx context.Context,
		draft, final *record.Record,
		actorSlug, sessionToken string,
	) (*registry.RetagResult, error)
}
