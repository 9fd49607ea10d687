package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *SQLitePassageStore {
	t.Helper()
	s, err := NewSQLitePassageStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func samplePassages(docID string, n int) []*Passage {
	out := make([]*Passage, n)
	for i := range out {
		out[i] = &Passage{
			ID:         docID + "-" + string(rune('a'+i)),
			DocumentID: docID,
			Page:       i/2 + 1,
			Ordinal:    i,
			Section:    "Intro",
			Content:    "passage text " + string(rune('a'+i)),
			TokenCount: 3,
		}
	}
	return out
}

func TestSQLitePassageStore_SaveAndGet(t *testing.T) {
	// Given: a document with three passages
	s := newTestCatalog(t)
	ctx := context.Background()
	doc := &Document{ID: "bio", Title: "Biology", PageCount: 2, ContentHash: "h1"}

	// When: saving it
	require.NoError(t, s.SaveDocument(ctx, doc, samplePassages("bio", 3)))

	// Then: the document and passages round-trip
	got, err := s.GetDocument(ctx, "bio")
	require.NoError(t, err)
	assert.Equal(t, "Biology", got.Title)
	assert.Equal(t, 3, got.PassageCount)
	assert.Equal(t, 2, got.PageCount)
	assert.False(t, got.IndexedAt.IsZero())

	ps, err := s.GetPassages(ctx, []string{"bio-a", "bio-c", "missing"})
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, 2, ps["bio-c"].Page)
	assert.Equal(t, "Intro", ps["bio-a"].Section)
	assert.Equal(t, "bio", ps["bio-a"].DocumentID)
}

func TestSQLitePassageStore_SaveReplacesPassages(t *testing.T) {
	s := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDocument(ctx, &Document{ID: "bio", Title: "v1"}, samplePassages("bio", 4)))
	require.NoError(t, s.SaveDocument(ctx, &Document{ID: "bio", Title: "v2"}, samplePassages("bio", 2)))

	ids, err := s.PassageIDs(ctx, "bio")
	require.NoError(t, err)
	assert.Equal(t, []string{"bio-a", "bio-b"}, ids)

	got, err := s.GetDocument(ctx, "bio")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Title)
	assert.Equal(t, 2, got.PassageCount)
}

func TestSQLitePassageStore_ListDocuments(t *testing.T) {
	s := newTestCatalog(t)
	ctx := context.Background()

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)

	require.NoError(t, s.SaveDocument(ctx, &Document{ID: "z", Title: "Zoology"}, nil))
	require.NoError(t, s.SaveDocument(ctx, &Document{ID: "a", Title: "Anatomy", IndexedAt: time.Unix(100, 0)}, nil))

	docs, err = s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Anatomy", docs[0].Title)
	assert.Equal(t, int64(100), docs[0].IndexedAt.Unix())
	assert.Equal(t, "Zoology", docs[1].Title)
}

func TestSQLitePassageStore_DeleteDocument(t *testing.T) {
	s := newTestCatalog(t)
	ctx := context.Background()
	require.NoError(t, s.SaveDocument(ctx, &Document{ID: "bio", Title: "Biology"}, samplePassages("bio", 2)))

	// When: deleting the document
	require.NoError(t, s.DeleteDocument(ctx, "bio"))

	// Then: document and passages are gone
	_, err := s.GetDocument(ctx, "bio")
	assert.ErrorIs(t, err, ErrNotFound)

	ps, err := s.GetPassages(ctx, []string{"bio-a", "bio-b"})
	require.NoError(t, err)
	assert.Empty(t, ps)

	// And: deleting again reports not found
	assert.ErrorIs(t, s.DeleteDocument(ctx, "bio"), ErrNotFound)
}

func TestSQLitePassageStore_RejectsMissingID(t *testing.T) {
	s := newTestCatalog(t)
	assert.Error(t, s.SaveDocument(context.Background(), &Document{Title: "x"}, nil))
	assert.Error(t, s.SaveDocument(context.Background(), nil, nil))
}

func TestSQLitePassageStore_OnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "catalog.db")
	ctx := context.Background()

	s, err := NewSQLitePassageStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveDocument(ctx, &Document{ID: "bio", Title: "Biology"}, samplePassages("bio", 1)))
	require.NoError(t, s.Close())

	s, err = NewSQLitePassageStore(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := s.GetDocument(ctx, "bio")
	require.NoError(t, err)
	assert.Equal(t, 1, got.PassageCount)
}
