package store

import (
	"encoding/json"
	"fmt"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/stacklok/contract-promoter/internal/record"
	"github.com/stacklok/contract-promoter/internal/versions"
)

// PrepareInsert checks a record about to be inserted against its type
// definition and returns the copy that should be persisted.
func PrepareInsert(def *record.TypeDefinition, draft *record.Record, now time.Time) (*record.Record, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: type definition is required", ErrInvalidRecord)
	}
	if draft == nil {
		return nil, fmt.Errorf("%w: record is required", ErrInvalidRecord)
	}
	if draft.Slug == "" {
		return nil, fmt.Errorf("%w: slug is required", ErrInvalidRecord)
	}
	if record.BaseType(draft.Type) != "" && record.BaseType(draft.Type) != def.Slug {
		return nil, fmt.Errorf("%w: record type %s does not match definition %s", ErrInvalidRecord, draft.Type, def.Ref())
	}

	r := draft.Clone()
	r.ID = ""
	r.Type = def.Ref()
	if r.Version == "" {
		r.Version = "1.0.0"
	}
	if _, err := versions.Parse(r.Version); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if r.Data == nil {
		r.Data = map[string]any{}
	}
	if err := ValidateData(def, r.Data); err != nil {
		return nil, err
	}
	r.CreatedAt = now.UTC()
	return r, nil
}

// NewCreateEvent builds the audit record stored next to an insert. Session
// tokens are credentials and never part of it.
func NewCreateEvent(target *record.Record, prov record.Provenance) *record.Record {
	payload := target.Clone()
	data := map[string]any{
		"target":    target.ID,
		"actor":     prov.Actor,
		"timestamp": timestamp(prov.Timestamp),
		"payload": map[string]any{
			"slug":    payload.Slug,
			"type":    payload.Type,
			"version": payload.Version,
			"data":    payload.Data,
		},
	}
	if prov.Originator != "" {
		data["originator"] = prov.Originator
	}
	return &record.Record{
		Slug:    "create-" + target.ID,
		Type:    record.EventTypeRef,
		Version: "1.0.0",
		Data:    data,
	}
}

// NewSessionRecord builds the session record minted for actorID.
func NewSessionRecord(slug, actorID string, expiresAt time.Time) *record.Record {
	return &record.Record{
		Slug:    slug,
		Type:    record.SessionTypeRef,
		Version: "1.0.0",
		Data: map[string]any{
			"actor":      actorID,
			"expiration": expiresAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

// ApplyPatch applies ops to the record document of target and returns the
// patched copy. Identity fields cannot be patched.
func ApplyPatch(target *record.Record, ops []record.PatchOperation) (*record.Record, error) {
	if len(ops) == 0 {
		return target.Clone(), nil
	}

	rawOps, err := json.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	patch, err := jsonpatch.DecodePatch(rawOps)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	doc, err := json.Marshal(target)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record %s: %w", target.Slug, err)
	}
	patched, err := patch.Apply(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	var out record.Record
	if err := json.Unmarshal(patched, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	if out.ID != target.ID || out.Slug != target.Slug || out.Type != target.Type || out.Version != target.Version {
		return nil, fmt.Errorf("%w: identity fields of %s are immutable", ErrInvalidPatch, target.Slug)
	}
	out.CreatedAt = target.CreatedAt
	return &out, nil
}

// LinkEnds returns the from and to ids of a link record.
func LinkEnds(link *record.Record) (from, to string) {
	if v, ok := link.Lookup("from", "id"); ok {
		from, _ = v.(string)
	}
	if v, ok := link.Lookup("to", "id"); ok {
		to, _ = v.(string)
	}
	return from, to
}

// InverseName returns the inverse verb of a link record.
func InverseName(link *record.Record) string {
	v, _ := link.Data["inverseName"].(string)
	return v
}

// SessionActor returns the actor of a session record and whether it is still
// valid at now.
func SessionActor(session *record.Record, now time.Time) (string, bool) {
	if record.BaseType(session.Type) != record.TypeSession {
		return "", false
	}
	actor, _ := session.Data["actor"].(string)
	if actor == "" {
		return "", false
	}
	if raw, ok := session.Data["expiration"].(string); ok && raw != "" {
		exp, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil || !now.Before(exp) {
			return "", false
		}
	}
	return actor, true
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}
