package store

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/stacklok/contract-promoter/internal/record"
)

// Matcher evaluates a compiled Query against records.
type Matcher struct {
	query  Query
	schema *gojsonschema.Schema
	links  []compiledLink
}

type compiledLink struct {
	verb   string
	schema *gojsonschema.Schema
}

// NewMatcher compiles the schemas of q.
func NewMatcher(q Query) (*Matcher, error) {
	m := &Matcher{query: q}

	schema, err := compileSchema(q.Schema)
	if err != nil {
		return nil, fmt.Errorf("invalid query schema: %w", err)
	}
	m.schema = schema

	for _, l := range q.Links {
		if l.Verb == "" {
			return nil, fmt.Errorf("link filter verb is required")
		}
		ls, err := compileSchema(l.Schema)
		if err != nil {
			return nil, fmt.Errorf("invalid schema for link %q: %w", l.Verb, err)
		}
		m.links = append(m.links, compiledLink{verb: l.Verb, schema: ls})
	}
	return m, nil
}

// Links returns the verbs the matcher needs neighbours for, in order.
func (m *Matcher) Links() []string {
	verbs := make([]string, len(m.links))
	for i, l := range m.links {
		verbs[i] = l.verb
	}
	return verbs
}

// MatchRecord reports whether r satisfies the type filter and the record schema.
func (m *Matcher) MatchRecord(r *record.Record) (bool, error) {
	if m.query.Type != "" && record.BaseType(r.Type) != m.query.Type {
		return false, nil
	}
	return matchSchema(m.schema, r)
}

// MatchLink reports whether any of the neighbours reached through verb
// satisfies the link filter for that verb.
func (m *Matcher) MatchLink(verb string, neighbours []*record.Record) (bool, error) {
	for _, l := range m.links {
		if l.verb != verb {
			continue
		}
		for _, n := range neighbours {
			ok, err := matchSchema(l.schema, n)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	return true, nil
}

func compileSchema(schema map[string]any) (*gojsonschema.Schema, error) {
	if len(schema) == 0 {
		return nil, nil
	}
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
}

func matchSchema(schema *gojsonschema.Schema, r *record.Record) (bool, error) {
	if schema == nil {
		return true, nil
	}
	doc, err := r.Document()
	if err != nil {
		return false, err
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate schema against %s: %w", r.Slug, err)
	}
	return result.Valid(), nil
}

// ValidateData checks data against the type definition schema.
func ValidateData(def *record.TypeDefinition, data map[string]any) error {
	if def == nil || len(def.Schema) == 0 {
		return nil
	}
	if data == nil {
		data = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(def.Schema),
		gojsonschema.NewGoLoader(data),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to load schema of %s: %v", ErrInvalidRecord, def.Ref(), err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", field, desc.Description()))
	}
	return fmt.Errorf("%w: data does not match %s: %s", ErrInvalidRecord, def.Ref(), strings.Join(msgs, "; "))
}
