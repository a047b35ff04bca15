package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyy0709/contextweaver/internal/scanner"
	"github.com/lyy0709/contextweaver/internal/store"
)

func writeFile(t *testing.T, dir, name, content string) *scanner.FileInfo {
	t.Helper()
	abs := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	return &scanner.FileInfo{Path: name, AbsPath: abs, Size: int64(len(content)), Language: "go"}
}

func TestClassify_NewFileIsAdded(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "a.go", "package a")
	metadata := newFakeMetadataStore()

	results, err := Classify(context.Background(), metadata, dir, []*scanner.FileInfo{f})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusAdded, results[0].Status)
	assert.NotEmpty(t, results[0].ContentHash)
}

func TestClassify_UnchangedContentIsUnchanged(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "a.go", "package a")
	metadata := newFakeMetadataStore()

	first, err := Classify(context.Background(), metadata, dir, []*scanner.FileInfo{f})
	require.NoError(t, err)
	require.NoError(t, metadata.UpsertFiles(context.Background(), []*store.File{
		{RelativePath: "a.go", ContentHash: first[0].ContentHash, VectorIndexHash: first[0].ContentHash},
	}))

	second, err := Classify(context.Background(), metadata, dir, []*scanner.FileInfo{f})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, StatusUnchanged, second[0].Status)
}

func TestClassify_ChangedContentIsModified(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "a.go", "package a")
	metadata := newFakeMetadataStore()

	first, err := Classify(context.Background(), metadata, dir, []*scanner.FileInfo{f})
	require.NoError(t, err)
	require.NoError(t, metadata.UpsertFiles(context.Background(), []*store.File{
		{RelativePath: "a.go", ContentHash: first[0].ContentHash, VectorIndexHash: first[0].ContentHash},
	}))

	f2 := writeFile(t, dir, "a.go", "package a // changed")
	second, err := Classify(context.Background(), metadata, dir, []*scanner.FileInfo{f2})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, StatusModified, second[0].Status)
}

func TestClassify_TrackedPathAbsentFromScanIsDeleted(t *testing.T) {
	dir := t.TempDir()
	metadata := newFakeMetadataStore()
	require.NoError(t, metadata.UpsertFiles(context.Background(), []*store.File{
		{RelativePath: "gone.go", ContentHash: "h1", VectorIndexHash: "h1"},
	}))

	results, err := Classify(context.Background(), metadata, dir, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusDeleted, results[0].Status)
	assert.Equal(t, "gone.go", results[0].RelativePath)
}

func TestClassify_UnreadableFileIsError(t *testing.T) {
	dir := t.TempDir()
	f := &scanner.FileInfo{Path: "missing.go", AbsPath: filepath.Join(dir, "missing.go")}
	metadata := newFakeMetadataStore()

	results, err := Classify(context.Background(), metadata, dir, []*scanner.FileInfo{f})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusError, results[0].Status)
	assert.Error(t, results[0].Err)
}
