// Package record defines the versioned record model shared by the store,
// the link builder and the promotion workflow.
package record

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Well-known type slugs.
const (
	TypeType               = "type"
	TypeLink               = "link"
	TypeSession            = "session"
	TypeCreateEvent        = "create"
	TypeContractRepository = "contract-repository"
)

// Built-in type references used by the workflow.
const (
	LinkTypeRef    = TypeLink + "@1.0.0"
	SessionTypeRef = TypeSession + "@1.0.0"
	EventTypeRef   = TypeCreateEvent + "@1.0.0"
	TypeDefTypeRef = TypeType + "@1.0.0"
)

// Record is a versioned, typed entity held by the record store.
// Data is kept as an open mapping; its shape is governed by the type's schema.
type Record struct {
	ID        string         `json:"id,omitempty"`
	Slug      string         `json:"slug"`
	Type      string         `json:"type"`
	Version   string         `json:"version"`
	Name      string         `json:"name,omitempty"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at,omitzero"`
}

// Summary identifies a record by identity fields only
type Summary struct {
	ID      string `json:"id"`
	Slug    string `json:"slug"`
	Type    string `json:"type"`
	Version string `json:"version,omitempty"`
}

// Summary returns the identity fields of r.
func (r *Record) Summary() Summary {
	return Summary{ID: r.ID, Slug: r.Slug, Type: r.Type, Version: r.Version}
}

// Clone returns a deep copy of r. Nested maps and slices in Data are copied,
// so the clone can be modified without touching the original.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Data = cloneMap(r.Data)
	return &c
}

// Document returns the record as a plain JSON-like mapping, the form that
// store queries are evaluated against.
func (r *Record) Document() (map[string]any, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record %s: %w", r.Slug, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", r.Slug, err)
	}
	return doc, nil
}

// Lookup walks Data along the given keys and returns the value found, if any.
func (r *Record) Lookup(keys ...string) (any, bool) {
	var cur any = r.Data
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set writes value into Data along the given keys, creating intermediate maps.
func (r *Record) Set(value any, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if r.Data == nil {
		r.Data = map[string]any{}
	}
	cur := r.Data
	for _, k := range keys[:len(keys)-1] {
		next, ok := cur[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[k] = next
		}
		cur = next
	}
	cur[keys[len(keys)-1]] = value
}

// BaseType returns the type slug without its version, so "card@1.0.0" yields "card".
func BaseType(typeRef string) string {
	slug, _, _ := strings.Cut(typeRef, "@")
	return slug
}

// TypeRef is a parsed "<slug>@<version>" type reference. An empty Version
// means the latest definition.
type TypeRef struct {
	Slug    string
	Version string
}

// ParseTypeRef parses a type reference of the form "slug" or "slug@version".
func ParseTypeRef(ref string) (TypeRef, error) {
	slug, version, _ := strings.Cut(strings.TrimSpace(ref), "@")
	if slug == "" {
		return TypeRef{}, fmt.Errorf("invalid type reference %q: empty slug", ref)
	}
	if version == "latest" {
		version = ""
	}
	return TypeRef{Slug: slug, Version: version}, nil
}

// String formats the reference back to "slug@version" or "slug@latest".
func (t TypeRef) String() string {
	if t.Version == "" {
		return t.Slug + "@latest"
	}
	return t.Slug + "@" + t.Version
}

// TypeDefinition is the resolved schema definition of a record type
type TypeDefinition struct {
	ID      string         `json:"id"`
	Slug    string         `json:"slug"`
	Version string         `json:"version"`
	Schema  map[string]any `json:"schema,omitempty"`
}

// Ref returns the exact type reference of the definition.
func (t *TypeDefinition) Ref() string {
	return t.Slug + "@" + t.Version
}

// TypeDefinitionFromRecord converts a record of type "type" into its definition.
func TypeDefinitionFromRecord(r *Record) (*TypeDefinition, error) {
	if BaseType(r.Type) != TypeType {
		return nil, fmt.Errorf("record %s is of type %s, not a type definition", r.Slug, r.Type)
	}
	def := &TypeDefinition{ID: r.ID, Slug: r.Slug, Version: r.Version}
	if schema, ok := r.Data["schema"].(map[string]any); ok {
		def.Schema = schema
	}
	return def, nil
}

// Provenance carries the request envelope recorded with every store mutation
type Provenance struct {
	Timestamp    time.Time
	Actor        string
	Originator   string
	AttachEvents bool
}

// PatchOperation is a single RFC 6902 JSON patch operation
type PatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// Replace builds a "replace" patch operation.
func Replace(path string, value any) PatchOperation {
	return PatchOperation{Op: "replace", Path: path, Value: value}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
