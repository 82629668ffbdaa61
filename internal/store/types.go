package store

import (
	"fmt"

	"github.com/stacklok/contract-promoter/internal/record"
	"github.com/stacklok/contract-promoter/internal/versions"
)

// MetaTypeDefinition is the definition of type definitions themselves. Stores
// hold it from the start so further definitions can be inserted through
// InsertRecord.
func MetaTypeDefinition() *record.TypeDefinition {
	return &record.TypeDefinition{
		Slug:    record.TypeType,
		Version: "1.0.0",
		Schema: map[string]any{
			"type":     "object",
			"required": []any{"schema"},
			"properties": map[string]any{
				"schema": map[string]any{"type": "object"},
			},
		},
	}
}

// TypeDefinitionRecord returns the record form of def.
func TypeDefinitionRecord(def *record.TypeDefinition) *record.Record {
	schema := def.Schema
	if schema == nil {
		schema = map[string]any{}
	}
	r := &record.Record{
		ID:      def.ID,
		Slug:    def.Slug,
		Type:    record.TypeDefTypeRef,
		Version: def.Version,
		Data:    map[string]any{"schema": schema},
	}
	return r.Clone()
}

// SelectTypeDefinition picks the definition named by ref among candidate type
// records of the same slug. An empty ref version selects the highest version.
func SelectTypeDefinition(ref record.TypeRef, candidates []*record.Record) (*record.TypeDefinition, error) {
	var best *record.Record
	for _, c := range candidates {
		if c.Slug != ref.Slug || record.BaseType(c.Type) != record.TypeType {
			continue
		}
		if ref.Version != "" {
			if c.Version == ref.Version {
				best = c
				break
			}
			continue
		}
		if best == nil || newer(c.Version, best.Version) {
			best = c
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotFound, ref)
	}
	return record.TypeDefinitionFromRecord(best)
}

func newer(a, b string) bool {
	va, err := versions.Parse(a)
	if err != nil {
		return false
	}
	vb, err := versions.Parse(b)
	if err != nil {
		return true
	}
	return va.GreaterThan(vb)
}
