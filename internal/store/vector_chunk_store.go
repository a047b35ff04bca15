package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"sync"

	"github.com/lyy0709/contextweaver/internal/chunk"
)

// VectorChunkStore is the "ChunkRecord" store of spec.md §4.6: it
// persists every field of a chunk (not just its vector), keyed by
// chunk id, on top of a plain string-ID-keyed VectorStore.
// BatchUpsertFiles adds a file's new chunk records before removing
// any of that file's previous ones, so a search never observes a
// file with zero chunks mid-reindex.
type VectorChunkStore struct {
	mu     sync.RWMutex
	store  VectorStore
	chunks map[string]*chunk.Chunk // chunk_id -> full record
}

// NewVectorChunkStore wraps an existing VectorStore.
func NewVectorChunkStore(vs VectorStore) *VectorChunkStore {
	return &VectorChunkStore{
		store:  vs,
		chunks: make(map[string]*chunk.Chunk),
	}
}

// BatchUpsertFiles inserts the given chunks (vector plus record),
// then deletes any previously indexed chunk for the same relative
// path whose file_hash no longer matches the incoming chunks'
// file_hash (i.e. superseded by a reindex of that file). Chunks for
// different files are independent; a failure on one file's insert
// does not roll back others already applied in this call.
func (s *VectorChunkStore) BatchUpsertFiles(ctx context.Context, chunksByFile map[string][]*chunk.Chunk) error {
	for relativePath, chunks := range chunksByFile {
		if len(chunks) == 0 {
			continue
		}

		ids := make([]string, len(chunks))
		vectors := make([][]float32, len(chunks))
		newFileHash := chunks[0].FileHash
		for i, c := range chunks {
			ids[i] = c.ChunkID
			vectors[i] = c.Vector
		}

		if err := s.store.Add(ctx, ids, vectors); err != nil {
			return fmt.Errorf("failed to add vectors for %s: %w", relativePath, err)
		}

		s.mu.Lock()
		for _, c := range chunks {
			s.chunks[c.ChunkID] = c
		}
		var stale []string
		for id, c := range s.chunks {
			if c.RelativePath == relativePath && c.FileHash != newFileHash {
				stale = append(stale, id)
			}
		}
		s.mu.Unlock()

		if len(stale) > 0 {
			if err := s.deleteIDs(ctx, stale); err != nil {
				return fmt.Errorf("failed to delete stale vectors for %s: %w", relativePath, err)
			}
		}
	}
	return nil
}

// DeleteFiles removes every indexed chunk for the given relative paths.
func (s *VectorChunkStore) DeleteFiles(ctx context.Context, relativePaths []string) error {
	paths := make(map[string]struct{}, len(relativePaths))
	for _, p := range relativePaths {
		paths[p] = struct{}{}
	}

	s.mu.RLock()
	var ids []string
	for id, c := range s.chunks {
		if _, ok := paths[c.RelativePath]; ok {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	return s.deleteIDs(ctx, ids)
}

func (s *VectorChunkStore) deleteIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.store.Delete(ctx, ids); err != nil {
		return err
	}
	s.mu.Lock()
	for _, id := range ids {
		delete(s.chunks, id)
	}
	s.mu.Unlock()
	return nil
}

// Search runs a nearest-neighbor search and resolves hits back to
// their chunk metadata.
func (s *VectorChunkStore) Search(ctx context.Context, queryVector []float32, limit int) ([]*ScoredChunk, error) {
	results, err := s.store.Search(ctx, queryVector, limit)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ScoredChunk, 0, len(results))
	for _, r := range results {
		c, ok := s.chunks[r.ID]
		if !ok {
			continue // orphaned entry with no live chunk record
		}
		out = append(out, &ScoredChunk{
			ChunkID:      r.ID,
			RelativePath: c.RelativePath,
			ChunkIndex:   c.ChunkIndex,
			Score:        r.Score,
		})
	}
	return out, nil
}

// GetChunk returns the full chunk record for an id, or nil if absent.
func (s *VectorChunkStore) GetChunk(chunkID string) *chunk.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chunks[chunkID]
}

// ChunksForFile returns every chunk for relativePath, unordered.
func (s *VectorChunkStore) ChunksForFile(relativePath string) []*chunk.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*chunk.Chunk
	for _, c := range s.chunks {
		if c.RelativePath == relativePath {
			out = append(out, c)
		}
	}
	return out
}

func (s *VectorChunkStore) Count() int {
	return s.store.Count()
}

// Clear removes all entries by deleting every known chunk ID.
func (s *VectorChunkStore) Clear(ctx context.Context) error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.chunks))
	for id := range s.chunks {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	return s.deleteIDs(ctx, ids)
}

// chunkRecordsPath derives the sidecar path that holds full chunk
// records (display_code, breadcrumb, spans, ...), next to the
// underlying vector store's own persistence file.
func chunkRecordsPath(path string) string {
	return path + ".records"
}

// Save persists both the underlying vector index and the chunk
// records sidecar needed to resolve search hits back to content.
func (s *VectorChunkStore) Save(path string) error {
	if err := s.store.Save(path); err != nil {
		return err
	}

	s.mu.RLock()
	records := make([]*chunk.Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		records = append(records, c)
	}
	s.mu.RUnlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(records); err != nil {
		return fmt.Errorf("failed to encode chunk records: %w", err)
	}
	return os.WriteFile(chunkRecordsPath(path), buf.Bytes(), 0o644)
}

// Load restores both the underlying vector index and the chunk
// records sidecar.
func (s *VectorChunkStore) Load(path string) error {
	if err := s.store.Load(path); err != nil {
		return err
	}

	data, err := os.ReadFile(chunkRecordsPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read chunk records: %w", err)
	}

	var records []*chunk.Chunk
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&records); err != nil {
		return fmt.Errorf("failed to decode chunk records: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = make(map[string]*chunk.Chunk, len(records))
	for _, c := range records {
		s.chunks[c.ChunkID] = c
	}
	return nil
}

func (s *VectorChunkStore) Close() error {
	return s.store.Close()
}
