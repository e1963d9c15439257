package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"ragserver/pkg/xerr"
	"ragserver/pkg/zlog"

	"go.uber.org/zap"
)

// manifest is the small sidecar file recording the embedding model a
// collection was created against. Opening a collection with a
// different model must fail loudly rather than silently mixing vector
// spaces — this is what makes that check possible.
type manifest struct {
	EmbeddingModel string `toml:"embedding_model"`
	Dimension      int    `toml:"dimension"`
	CreatedAt      string `toml:"created_at"`
}

// FileStore is a file-backed Store: vectors and metadata are held
// in-memory during process lifetime and flushed to a single JSON
// snapshot on every mutation, so the collection survives a restart
// without requiring an external vector database server.
type FileStore struct {
	dir            string
	embeddingModel string

	mu      sync.RWMutex
	records map[string]persistedRecord // keyed by chunk_id
}

type persistedRecord struct {
	ChunkID  string    `json:"chunk_id"`
	Vector   []float32 `json:"vector"`
	Text     string    `json:"text"`
	Metadata Metadata  `json:"metadata"`
}

const snapshotFile = "records.json"
const manifestFile = "manifest.toml"

// Open opens (or creates) the collection at dir/collection. If the
// collection already exists, its recorded embedding model must match
// embeddingModel — a mismatch is a consistency error and is fatal at
// startup.
func Open(baseDir, collection, embeddingModel string, dimension int) (*FileStore, error) {
	dir := filepath.Join(baseDir, collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create collection directory: %w", err)
	}

	manifestPath := filepath.Join(dir, manifestFile)
	var m manifest
	if _, err := os.Stat(manifestPath); err == nil {
		if _, err := toml.DecodeFile(manifestPath, &m); err != nil {
			return nil, fmt.Errorf("decode collection manifest: %w", err)
		}
		if m.EmbeddingModel != embeddingModel {
			return nil, xerr.EmbeddingModelMismatch(fmt.Sprintf(
				"collection %q was created with embedding model %q, configuration specifies %q — delete the collection to reindex",
				collection, m.EmbeddingModel, embeddingModel))
		}
	} else {
		m = manifest{
			EmbeddingModel: embeddingModel,
			Dimension:      dimension,
			CreatedAt:      time.Now().UTC().Format(time.RFC3339),
		}
		if err := writeManifest(manifestPath, m); err != nil {
			return nil, fmt.Errorf("write collection manifest: %w", err)
		}
	}

	s := &FileStore{
		dir:            dir,
		embeddingModel: embeddingModel,
		records:        make(map[string]persistedRecord),
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("load collection snapshot: %w", err)
	}

	zlog.Info("vector store opened", zap.String("collection", collection), zap.Int("records", len(s.records)))
	return s, nil
}

func writeManifest(path string, m manifest) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(m)
}

func (s *FileStore) snapshotPath() string {
	return filepath.Join(s.dir, snapshotFile)
}

func (s *FileStore) load() error {
	path := s.snapshotPath()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	var list []persistedRecord
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	for _, r := range list {
		s.records[r.ChunkID] = r
	}
	return nil
}

// persist writes the in-memory record set to disk atomically (write
// to a temp file, then rename) so a crash mid-write never corrupts the
// existing snapshot.
func (s *FileStore) persist() error {
	list := make([]persistedRecord, 0, len(s.records))
	for _, r := range s.records {
		list = append(list, r)
	}
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}

	tmp := s.snapshotPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.snapshotPath())
}

// Upsert implements Store.
func (s *FileStore) Upsert(ctx context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		s.records[r.ChunkID] = persistedRecord{
			ChunkID:  r.ChunkID,
			Vector:   r.Vector,
			Text:     r.Text,
			Metadata: r.Metadata,
		}
	}
	if err := s.persist(); err != nil {
		return xerr.VectorStoreFailed("failed to persist upsert", err)
	}
	return nil
}

// Query implements Store: brute-force cosine similarity over every
// record in the collection, which is the right tradeoff for the
// single-admin, single-collection scale this store targets.
func (s *FileStore) Query(ctx context.Context, embedding []float32, k int) ([]SearchHit, error) {
	if k <= 0 {
		k = 1
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]SearchHit, 0, len(s.records))
	for _, r := range s.records {
		score := cosineSimilarity(embedding, r.Vector)
		hits = append(hits, SearchHit{
			ChunkID:  r.ChunkID,
			Score:    score,
			Text:     r.Text,
			Metadata: r.Metadata,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// DeleteDocument implements Store.
func (s *FileStore) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, r := range s.records {
		if r.Metadata.DocumentID == documentID {
			delete(s.records, id)
			deleted++
		}
	}
	if deleted == 0 {
		return 0, nil
	}
	if err := s.persist(); err != nil {
		return 0, xerr.VectorStoreFailed("failed to persist delete", err)
	}
	return deleted, nil
}

// ListDocuments implements Store.
func (s *FileStore) ListDocuments(ctx context.Context) ([]DocumentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDoc := make(map[string]*DocumentSummary)
	for _, r := range s.records {
		d, ok := byDoc[r.Metadata.DocumentID]
		if !ok {
			d = &DocumentSummary{
				DocumentID: r.Metadata.DocumentID,
				Filename:   r.Metadata.Filename,
				FileType:   r.Metadata.FileType,
				FileSize:   r.Metadata.FileSize,
				UploadedAt: r.Metadata.UploadedAt,
			}
			byDoc[r.Metadata.DocumentID] = d
		}
		d.ChunkCount++
	}

	out := make([]DocumentSummary, 0, len(byDoc))
	for _, d := range byDoc {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadedAt > out[j].UploadedAt
	})
	return out, nil
}

// Stats implements Store.
func (s *FileStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make(map[string]struct{})
	for _, r := range s.records {
		docs[r.Metadata.DocumentID] = struct{}{}
	}
	return Stats{
		TotalDocuments: len(docs),
		TotalChunks:    len(s.records),
		EmbeddingModel: s.embeddingModel,
	}, nil
}

// Close implements Store. The file store has no background resources
// to release; every mutation is already flushed synchronously.
func (s *FileStore) Close() error { return nil }

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
