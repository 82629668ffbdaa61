package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/contract-promoter/internal/record"
)

func cardDefinition() *record.TypeDefinition {
	return &record.TypeDefinition{
		ID:      "type-card",
		Slug:    "card",
		Version: "1.0.0",
		Schema: map[string]any{
			"type":     "object",
			"required": []any{"title"},
			"properties": map[string]any{
				"title": map[string]any{"type": "string"},
			},
		},
	}
}

func TestPrepareInsert(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		draft   *record.Record
		wantErr error
	}{
		{
			name:  "valid record",
			draft: &record.Record{ID: "stale", Slug: "card-x", Type: "card@1.0.0", Version: "1.0.2+rev02", Data: map[string]any{"title": "X"}},
		},
		{
			name:    "missing slug",
			draft:   &record.Record{Type: "card@1.0.0", Version: "1.0.0", Data: map[string]any{"title": "X"}},
			wantErr: ErrInvalidRecord,
		},
		{
			name:    "type mismatch",
			draft:   &record.Record{Slug: "card-x", Type: "user@1.0.0", Version: "1.0.0", Data: map[string]any{"title": "X"}},
			wantErr: ErrInvalidRecord,
		},
		{
			name:    "schema violation",
			draft:   &record.Record{Slug: "card-x", Type: "card@1.0.0", Version: "1.0.0", Data: map[string]any{"title": 7}},
			wantErr: ErrInvalidRecord,
		},
		{
			name:    "invalid version",
			draft:   &record.Record{Slug: "card-x", Type: "card@1.0.0", Version: "one", Data: map[string]any{"title": "X"}},
			wantErr: ErrInvalidRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := PrepareInsert(cardDefinition(), tt.draft, now)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, got.ID)
			assert.Equal(t, "card@1.0.0", got.Type)
			assert.Equal(t, now, got.CreatedAt)
			assert.Equal(t, "stale", tt.draft.ID, "draft must not be mutated")
		})
	}
}

func TestApplyPatch(t *testing.T) {
	t.Parallel()

	target := &record.Record{
		ID: "r1", Slug: "card-x", Type: "card@1.0.0", Version: "1.0.2+rev02",
		Data: map[string]any{"title": "X", "$transformer": map[string]any{"artifactReady": false}},
	}

	patched, err := ApplyPatch(target, []record.PatchOperation{
		record.Replace("/data/$transformer/artifactReady", "registry.example/repo:1.0.2+rev02"),
	})
	require.NoError(t, err)
	v, ok := patched.Lookup("$transformer", "artifactReady")
	require.True(t, ok)
	assert.Equal(t, "registry.example/repo:1.0.2+rev02", v)

	original, _ := target.Lookup("$transformer", "artifactReady")
	assert.Equal(t, false, original)

	_, err = ApplyPatch(target, []record.PatchOperation{record.Replace("/slug", "other")})
	require.ErrorIs(t, err, ErrInvalidPatch)

	_, err = ApplyPatch(target, []record.PatchOperation{record.Replace("/data/missing/field", 1)})
	require.ErrorIs(t, err, ErrInvalidPatch)
}

func TestMatcher(t *testing.T) {
	t.Parallel()

	repo := &record.Record{ID: "repo-1", Slug: "repo-card", Type: "contract-repository@1.0.0", Version: "1.0.0"}
	draft := &record.Record{ID: "draft-1", Slug: "card-x", Type: "card@1.0.0", Version: "1.0.2-beta1"}
	other := &record.Record{ID: "draft-2", Slug: "card-y", Type: "card@1.0.0", Version: "1.0.0"}

	m, err := NewMatcher(Query{
		Type: record.TypeContractRepository,
		Schema: map[string]any{
			"type":     "object",
			"required": []any{"slug"},
		},
		Links: []LinkFilter{{
			Verb: "contains",
			Schema: map[string]any{
				"type":       "object",
				"required":   []any{"id"},
				"properties": map[string]any{"id": map[string]any{"const": "draft-1"}},
			},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"contains"}, m.Links())

	ok, err := m.MatchRecord(repo)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.MatchRecord(draft)
	require.NoError(t, err)
	assert.False(t, ok, "type filter should exclude cards")

	ok, err = m.MatchLink("contains", []*record.Record{other, draft})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.MatchLink("contains", []*record.Record{other})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.MatchLink("unrelated", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = NewMatcher(Query{Links: []LinkFilter{{Verb: ""}}})
	require.Error(t, err)
}

func TestSessionActor(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessionRecord("session-1", "actor-1", now.Add(10*time.Minute))

	actor, ok := SessionActor(s, now)
	assert.True(t, ok)
	assert.Equal(t, "actor-1", actor)

	_, ok = SessionActor(s, now.Add(11*time.Minute))
	assert.False(t, ok)

	_, ok = SessionActor(&record.Record{Type: "card@1.0.0"}, now)
	assert.False(t, ok)
}

func TestQueryOptions_GetLimit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultQueryLimit, QueryOptions{}.GetLimit())
	assert.Equal(t, 1, QueryOptions{Limit: 1}.GetLimit())
	assert.Equal(t, DefaultQueryLimit, QueryOptions{Limit: 10000}.GetLimit())
}
