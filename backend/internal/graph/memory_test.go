package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, err := store.CreateNode(ctx, []string{"Author"}, map[string]string{"name": "Jane Doe"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	found, ok, err := store.FindNodeByProperty(ctx, "Author", "name", "Jane Doe")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, found)

	_, ok, err = store.FindNodeByProperty(ctx, "Author", "name", "jane doe")
	require.NoError(t, err)
	assert.False(t, ok, "lookup is case-sensitive")

	_, ok, err = store.FindNodeByProperty(ctx, "Keyword", "name", "Jane Doe")
	require.NoError(t, err)
	assert.False(t, ok, "lookup is scoped to the label")
}

func TestMemoryStore_FindReturnsFirstOfDuplicates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first, err := store.CreateNode(ctx, []string{"Keyword"}, map[string]string{"name": "x"})
	require.NoError(t, err)
	_, err = store.CreateNode(ctx, []string{"Keyword"}, map[string]string{"name": "x"})
	require.NoError(t, err)

	found, ok, err := store.FindNodeByProperty(ctx, "Keyword", "name", "x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, first, found)
}

func TestMemoryStore_RequireUnique(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureSchema(ctx))

	_, err := store.CreateNode(ctx, []string{"Author"}, map[string]string{"name": "Jane Doe"})
	require.NoError(t, err)

	_, err = store.CreateNode(ctx, []string{"Author"}, map[string]string{"name": "Jane Doe"})
	assert.ErrorIs(t, err, ErrConstraintViolation)
	assert.Len(t, store.Nodes("Author"), 1)

	_, err = store.CreateNode(ctx, []string{"PDFDocument"}, map[string]string{"name": "Jane Doe"})
	assert.NoError(t, err, "constraint is per label")
}

func TestMemoryStore_WriteTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	boom := errors.New("boom")

	err := store.WriteTx(ctx, func(w Writer) error {
		doc, err := w.CreateNode(ctx, []string{"PDFDocument"}, map[string]string{"url": "http://x/a.pdf"})
		require.NoError(t, err)
		kw, err := w.CreateNode(ctx, []string{"Keyword"}, map[string]string{"name": "health"})
		require.NoError(t, err)
		require.NoError(t, w.CreateRelationship(ctx, doc, "HAS_KEYWORD", kw))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.Nodes("PDFDocument"))
	assert.Empty(t, store.Nodes("Keyword"))
	assert.Empty(t, store.Relationships(""))
}

func TestMemoryStore_WriteTxCommits(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	author, err := store.CreateNode(ctx, []string{"Author"}, map[string]string{"name": "Jane Doe"})
	require.NoError(t, err)

	var doc NodeID
	err = store.WriteTx(ctx, func(w Writer) error {
		var err error
		doc, err = w.CreateNode(ctx, []string{"PDFDocument"}, map[string]string{"url": "http://x/a.pdf", "title": "Report"})
		if err != nil {
			return err
		}
		found, ok, err := w.FindNodeByProperty(ctx, "PDFDocument", "url", "http://x/a.pdf")
		require.NoError(t, err)
		require.True(t, ok, "pending nodes are visible inside the transaction")
		assert.Equal(t, doc, found)
		return w.CreateRelationship(ctx, doc, "AUTHORED_BY", author)
	})
	require.NoError(t, err)

	node, ok := store.Node(doc)
	require.True(t, ok)
	assert.Equal(t, "Report", node.Properties["title"])
	assert.Equal(t, []Relationship{{From: doc, Type: "AUTHORED_BY", To: author}}, store.Relationships("AUTHORED_BY"))
}

func TestMemoryStore_RelationshipNeedsEndpoints(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a, err := store.CreateNode(ctx, []string{"Author"}, map[string]string{"name": "a"})
	require.NoError(t, err)

	err = store.CreateRelationship(ctx, a, "AUTHORED_BY", NodeID("mem:999"))
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestMemoryStore_RejectsInvalidIdentifiers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.CreateNode(ctx, []string{"Author) DETACH DELETE (x"}, nil)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = store.CreateNode(ctx, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, _, err = store.FindNodeByProperty(ctx, "Author", "name` OR 1=1", "x")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	a, err := store.CreateNode(ctx, []string{"Author"}, map[string]string{"name": "a"})
	require.NoError(t, err)
	assert.ErrorIs(t, store.CreateRelationship(ctx, a, "AUTHORED BY", a), ErrInvalidIdentifier)
}

func TestMemoryStore_HonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewMemoryStore()
	_, err := store.CreateNode(ctx, []string{"Author"}, map[string]string{"name": "a"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.Nodes("Author"))
}
