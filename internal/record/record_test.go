package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Clone(t *testing.T) {
	t.Parallel()

	original := &Record{
		ID:      "0d6f2b9e-0000-4000-8000-000000000001",
		Slug:    "card-x",
		Type:    "card@1.0.0",
		Version: "1.0.2-beta1+rev02",
		Data: map[string]any{
			"$transformer": map[string]any{"artifactReady": "registry.example/repo:1.0.2-beta1+rev02"},
			"tags":         []any{"a", map[string]any{"b": 1}},
		},
	}

	clone := original.Clone()
	clone.ID = ""
	clone.Version = "1.0.2+rev02"
	clone.Set(false, "$transformer", "artifactReady")
	clone.Data["tags"].([]any)[1].(map[string]any)["b"] = 2

	assert.Equal(t, "0d6f2b9e-0000-4000-8000-000000000001", original.ID)
	assert.Equal(t, "1.0.2-beta1+rev02", original.Version)
	flag, ok := original.Lookup("$transformer", "artifactReady")
	require.True(t, ok)
	assert.Equal(t, "registry.example/repo:1.0.2-beta1+rev02", flag)
	assert.Equal(t, 1, original.Data["tags"].([]any)[1].(map[string]any)["b"])

	flag, ok = clone.Lookup("$transformer", "artifactReady")
	require.True(t, ok)
	assert.Equal(t, false, flag)
}

func TestRecord_LookupAndSet(t *testing.T) {
	t.Parallel()

	r := &Record{Slug: "x"}
	_, ok := r.Lookup("$transformer", "artifactReady")
	assert.False(t, ok)

	r.Set(true, "$transformer", "artifactReady")
	v, ok := r.Lookup("$transformer", "artifactReady")
	require.True(t, ok)
	assert.Equal(t, true, v)

	r.Data["scalar"] = "s"
	_, ok = r.Lookup("scalar", "nested")
	assert.False(t, ok)
}

func TestRecord_Document(t *testing.T) {
	t.Parallel()

	r := &Record{ID: "id-1", Slug: "card-x", Type: "card@1.0.0", Version: "1.0.0", Data: map[string]any{"n": 1}}
	doc, err := r.Document()
	require.NoError(t, err)
	assert.Equal(t, "card-x", doc["slug"])
	assert.Equal(t, "card@1.0.0", doc["type"])
	assert.Equal(t, map[string]any{"n": float64(1)}, doc["data"])
	assert.NotContains(t, doc, "created_at")
}

func TestParseTypeRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ref      string
		expected TypeRef
		wantErr  bool
	}{
		{ref: "card@1.0.0", expected: TypeRef{Slug: "card", Version: "1.0.0"}},
		{ref: "card", expected: TypeRef{Slug: "card"}},
		{ref: "card@latest", expected: TypeRef{Slug: "card"}},
		{ref: "@1.0.0", wantErr: true},
		{ref: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			t.Parallel()

			got, err := ParseTypeRef(tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	assert.Equal(t, "card@latest", TypeRef{Slug: "card"}.String())
	assert.Equal(t, "link", BaseType("link@1.0.0"))
}

func TestTypeDefinitionFromRecord(t *testing.T) {
	t.Parallel()

	def, err := TypeDefinitionFromRecord(&Record{
		ID: "t1", Slug: "card", Type: TypeDefTypeRef, Version: "1.0.0",
		Data: map[string]any{"schema": map[string]any{"type": "object"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "card@1.0.0", def.Ref())
	assert.Equal(t, map[string]any{"type": "object"}, def.Schema)

	_, err = TypeDefinitionFromRecord(&Record{Slug: "card-x", Type: "card@1.0.0"})
	require.Error(t, err)
}
