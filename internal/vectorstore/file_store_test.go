package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"ragserver/pkg/xerr"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir, "default", "nomic-embed-text", 4)
	require.NoError(t, err)
	return s
}

func rec(chunkID, documentID string, vec []float32) Record {
	return Record{
		ChunkID: chunkID,
		Vector:  vec,
		Text:    "text for " + chunkID,
		Metadata: Metadata{
			DocumentID: documentID,
			Filename:   documentID + ".txt",
			FileType:   ".txt",
			ChunkIndex: 0,
			UploadedAt: "2026-08-03T00:00:00Z",
		},
	}
}

func TestFileStore_UpsertAndQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []Record{
		rec("doc1:0", "doc1", []float32{1, 0, 0, 0}),
		rec("doc2:0", "doc2", []float32{0, 1, 0, 0}),
	}))

	hits, err := s.Query(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "doc1:0", hits[0].ChunkID)
}

func TestFileStore_QueryDeterministicTieBreak(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []Record{
		rec("b:0", "b", []float32{1, 0, 0, 0}),
		rec("a:0", "a", []float32{1, 0, 0, 0}),
	}))

	hits1, err := s.Query(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	hits2, err := s.Query(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)

	require.Equal(t, hits1, hits2)
	require.Equal(t, "a:0", hits1[0].ChunkID)
}

func TestFileStore_DeleteDocumentCompleteness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []Record{
		rec("doc1:0", "doc1", []float32{1, 0, 0, 0}),
		rec("doc1:1", "doc1", []float32{0, 1, 0, 0}),
		rec("doc2:0", "doc2", []float32{0, 0, 1, 0}),
	}))

	deleted, err := s.DeleteDocument(ctx, "doc1")
	require.NoError(t, err)
	require.Equal(t, 2, deleted)

	hits, err := s.Query(ctx, []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	for _, h := range hits {
		require.NotEqual(t, "doc1", h.Metadata.DocumentID)
	}

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalChunks)
}

func TestFileStore_DeleteNonexistentIsNoop(t *testing.T) {
	s := newTestStore(t)
	deleted, err := s.DeleteDocument(context.Background(), "nope")
	require.NoError(t, err)
	require.Equal(t, 0, deleted)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir, "default", "nomic-embed-text", 4)
	require.NoError(t, err)
	require.NoError(t, s1.Upsert(context.Background(), []Record{rec("doc1:0", "doc1", []float32{1, 0, 0, 0})}))

	s2, err := Open(dir, "default", "nomic-embed-text", 4)
	require.NoError(t, err)
	stats, err := s2.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalChunks)
}

func TestOpen_RejectsEmbeddingModelMismatch(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(dir, "default", "nomic-embed-text", 4)
	require.NoError(t, err)

	_, err = Open(dir, "default", "a-different-model", 4)
	require.Error(t, err)
	ce, ok := xerr.As(err)
	require.True(t, ok)
	require.Equal(t, xerr.KindEmbeddingModelMismatch, ce.Kind)
}

func TestFileStore_ListDocumentsSortedByUploadedAtDescending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := rec("doc1:0", "doc1", []float32{1, 0, 0, 0})
	older.Metadata.UploadedAt = "2026-01-01T00:00:00Z"
	newer := rec("doc2:0", "doc2", []float32{0, 1, 0, 0})
	newer.Metadata.UploadedAt = "2026-06-01T00:00:00Z"

	require.NoError(t, s.Upsert(ctx, []Record{older, newer}))

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "doc2", docs[0].DocumentID)
}
