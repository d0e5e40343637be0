// ABOUTME: Tests for VectorIndex insertion, search, deletion, and snapshots
// ABOUTME: Uses the hash embedder so results are deterministic offline
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/harper/finrag/internal/llm/llmtest"
	"github.com/harper/finrag/internal/logging"
	"github.com/harper/finrag/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 32

func newTestIndex(t *testing.T, dir string) (*VectorIndex, *llmtest.HashEmbedder) {
	t.Helper()
	emb := llmtest.NewHashEmbedder(testDim)
	idx := New(emb, Options{Dir: dir, Logger: logging.Discard()})
	require.NoError(t, idx.Initialize(context.Background()))
	t.Cleanup(func() { _ = idx.Close() })
	return idx, emb
}

func inputs(texts ...string) []models.ChunkInput {
	out := make([]models.ChunkInput, len(texts))
	for i, t := range texts {
		out[i] = models.ChunkInput{Text: t}
	}
	return out
}

func embeddingIndices(idx *VectorIndex) []int {
	v := idx.View()
	out := make([]int, v.Len())
	for i := range out {
		out[i] = v.Chunk(i).EmbeddingIndex
	}
	return out
}

func TestInitialize_RequiresEmbedder(t *testing.T) {
	idx := New(nil, Options{})
	err := idx.Initialize(context.Background())
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestInitialize_RequiresPositiveDimension(t *testing.T) {
	idx := New(llmtest.NewHashEmbedder(0), Options{})
	err := idx.Initialize(context.Background())
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestSearch_EmptyIndex(t *testing.T) {
	idx, _ := newTestIndex(t, "")
	results, err := idx.Search(context.Background(), "revenue", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_SingleChunk(t *testing.T) {
	idx, _ := newTestIndex(t, "")
	n, err := idx.Add(context.Background(), inputs("Quarterly revenue grew 12 percent"), "q3.pdf")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	results, err := idx.Search(context.Background(), "revenue growth", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Greater(t, results[0].SimilarityScore, 0.0)
	assert.LessOrEqual(t, results[0].SimilarityScore, 1.0)
	assert.Equal(t, models.MethodSemantic, results[0].Method)
	assert.InDelta(t, 1/(1+results[0].Distance), results[0].SimilarityScore, 1e-12)
}

func TestSearch_ExactMatchFirst(t *testing.T) {
	idx, _ := newTestIndex(t, "")
	_, err := idx.Add(context.Background(), inputs(
		"operating cash flow improved",
		"the board approved a new logo",
		"net income declined on higher costs",
	), "report.pdf")
	require.NoError(t, err)

	results, err := idx.Search(context.Background(), "the board approved a new logo", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].EmbeddingIndex)
	assert.InDelta(t, 1.0, results[0].SimilarityScore, 1e-6)
	assert.GreaterOrEqual(t, results[0].SimilarityScore, results[1].SimilarityScore)
}

func TestAdd_AssignsIndices(t *testing.T) {
	idx, _ := newTestIndex(t, "")
	ctx := context.Background()

	_, err := idx.Add(ctx, inputs("a one", "a two", "a three"), "a.pdf")
	require.NoError(t, err)
	_, err = idx.Add(ctx, inputs("b one", "b two"), "b.pdf")
	require.NoError(t, err)
	_, err = idx.Add(ctx, inputs("a four"), "a.pdf")
	require.NoError(t, err)

	v := idx.View()
	require.Equal(t, 6, v.Len())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, embeddingIndices(idx))
	assert.Equal(t, 3, v.Chunk(5).ChunkIndex, "chunk index continues per source")
	assert.Equal(t, "a.pdf", v.Chunk(5).Source)
	assert.Equal(t, 1, v.Chunk(4).ChunkIndex)
}

func TestAdd_EmptyIsNoop(t *testing.T) {
	idx, emb := newTestIndex(t, "")
	n, err := idx.Add(context.Background(), nil, "x.pdf")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, emb.Calls())
}

func TestAdd_FinancialKeywordFlag(t *testing.T) {
	idx, _ := newTestIndex(t, "")
	_, err := idx.Add(context.Background(), inputs("EBITDA margin expanded", "weather was nice"), "x.pdf")
	require.NoError(t, err)

	v := idx.View()
	assert.True(t, v.Chunk(0).HasFinancialKeywords)
	assert.False(t, v.Chunk(1).HasFinancialKeywords)
}

func TestAdd_EmbeddingFailureLeavesIndexUntouched(t *testing.T) {
	idx, emb := newTestIndex(t, "")
	_, err := idx.Add(context.Background(), inputs("first"), "a.pdf")
	require.NoError(t, err)

	emb.FailWith(errors.New("provider down"))
	_, err = idx.Add(context.Background(), inputs("second"), "b.pdf")
	assert.ErrorIs(t, err, models.ErrUpstream)
	assert.Equal(t, 1, idx.Count())
}

func TestReplace_SwapsSourceInOneStep(t *testing.T) {
	idx, _ := newTestIndex(t, "")
	ctx := context.Background()
	_, err := idx.Add(ctx, inputs("a one", "a two"), "a.pdf")
	require.NoError(t, err)
	_, err = idx.Add(ctx, inputs("b one"), "b.pdf")
	require.NoError(t, err)

	n, err := idx.Replace(ctx, inputs("a new one", "a new two", "a new three"), "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 4, idx.Count())
	assert.Equal(t, []int{0, 1, 2, 3}, embeddingIndices(idx))

	v := idx.View()
	assert.Equal(t, "b.pdf", v.Chunk(0).Source)
	for i := 1; i < 4; i++ {
		assert.Equal(t, "a.pdf", v.Chunk(i).Source)
		assert.Equal(t, i-1, v.Chunk(i).ChunkIndex)
	}

	results, err := idx.Search(ctx, "a new two", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a new two", results[0].Text)
}

func TestReplace_NewSourceAppends(t *testing.T) {
	idx, _ := newTestIndex(t, "")
	n, err := idx.Replace(context.Background(), inputs("first"), "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, idx.Count())
}

func TestReplace_EmbeddingFailureKeepsOldChunks(t *testing.T) {
	dir := t.TempDir()
	idx, emb := newTestIndex(t, dir)
	ctx := context.Background()
	_, err := idx.Add(ctx, inputs("old one", "old two"), "a.pdf")
	require.NoError(t, err)

	emb.FailWith(errors.New("provider down"))
	_, err = idx.Replace(ctx, inputs("new"), "a.pdf")
	assert.ErrorIs(t, err, models.ErrUpstream)
	assert.Equal(t, 2, idx.Count())
	require.NoError(t, idx.Close())

	reopened, _ := newTestIndex(t, dir)
	assert.Equal(t, 2, reopened.Count())
}

func TestAdd_Validation(t *testing.T) {
	idx, _ := newTestIndex(t, "")
	_, err := idx.Add(context.Background(), inputs("text"), "")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = idx.Add(context.Background(), inputs(""), "a.pdf")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestDelete_UnknownSource(t *testing.T) {
	idx, _ := newTestIndex(t, "")
	_, err := idx.Add(context.Background(), inputs("one", "two"), "a.pdf")
	require.NoError(t, err)

	deleted, err := idx.Delete(context.Background(), "never-added.pdf")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, 2, idx.Count())
	assert.Equal(t, []int{0, 1}, embeddingIndices(idx))
}

func TestDelete_RenumbersContiguously(t *testing.T) {
	idx, emb := newTestIndex(t, "")
	ctx := context.Background()
	_, err := idx.Add(ctx, inputs("a1 revenue"), "a.pdf")
	require.NoError(t, err)
	_, err = idx.Add(ctx, inputs("b1 costs", "b2 margins"), "b.pdf")
	require.NoError(t, err)
	_, err = idx.Add(ctx, inputs("a2 guidance", "a3 outlook"), "a.pdf")
	require.NoError(t, err)
	callsBefore := emb.Calls()

	deleted, err := idx.Delete(ctx, "b.pdf")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 3, idx.Count())
	assert.Equal(t, []int{0, 1, 2}, embeddingIndices(idx))
	assert.Equal(t, callsBefore, emb.Calls(), "delete must not re-embed")

	// rebuilt structure still answers with the right chunk
	results, err := idx.Search(ctx, "a3 outlook", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a3 outlook", results[0].Text)
	assert.Equal(t, 2, results[0].EmbeddingIndex)
}

func TestDelete_LastSourceEmptiesIndex(t *testing.T) {
	idx, _ := newTestIndex(t, "")
	_, err := idx.Add(context.Background(), inputs("only"), "a.pdf")
	require.NoError(t, err)

	deleted, err := idx.Delete(context.Background(), "a.pdf")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Zero(t, idx.Count())

	results, err := idx.Search(context.Background(), "only", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestListSources_InterleavedCounts(t *testing.T) {
	idx, _ := newTestIndex(t, "")
	ctx := context.Background()
	for _, step := range []struct {
		source string
		texts  []string
	}{
		{"a.pdf", []string{"a1", "a2"}},
		{"b.pdf", []string{"b1"}},
		{"a.pdf", []string{"a3"}},
		{"b.pdf", []string{"b2"}},
	} {
		_, err := idx.Add(ctx, inputs(step.texts...), step.source)
		require.NoError(t, err)
	}

	sources := idx.ListSources()
	require.Len(t, sources, 2)
	assert.Equal(t, "a.pdf", sources[0].Source)
	assert.Equal(t, 3, sources[0].ChunkCount)
	assert.Equal(t, "b.pdf", sources[1].Source)
	assert.Equal(t, 2, sources[1].ChunkCount)
}

func TestView_IsStableAcrossWrites(t *testing.T) {
	idx, _ := newTestIndex(t, "")
	ctx := context.Background()
	_, err := idx.Add(ctx, inputs("first chunk"), "a.pdf")
	require.NoError(t, err)

	pinned := idx.View()
	_, err = idx.Add(ctx, inputs("second chunk"), "b.pdf")
	require.NoError(t, err)
	_, err = idx.Delete(ctx, "a.pdf")
	require.NoError(t, err)

	assert.Equal(t, 1, pinned.Len())
	assert.Equal(t, "first chunk", pinned.Chunk(0).Text)
	assert.Equal(t, 1, idx.Count())
	assert.Equal(t, "second chunk", idx.View().Chunk(0).Text)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, _ := newTestIndex(t, dir)
	_, err := idx.Add(ctx, []models.ChunkInput{
		{Text: "revenue rose", Metadata: map[string]string{"document_type": "pdf"}},
		{Text: "costs fell"},
	}, "a.pdf")
	require.NoError(t, err)
	_, err = idx.Add(ctx, inputs("guidance raised"), "b.pdf")
	require.NoError(t, err)
	_, err = idx.Delete(ctx, "a.pdf")
	require.NoError(t, err)
	_, err = idx.Add(ctx, inputs("dividend declared"), "c.pdf")
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	assert.FileExists(t, filepath.Join(dir, VectorFileName))
	assert.FileExists(t, filepath.Join(dir, ChunkFileName))

	reopened, _ := newTestIndex(t, dir)
	assert.Equal(t, 2, reopened.Count())
	assert.Equal(t, []int{0, 1}, embeddingIndices(reopened))
	v := reopened.View()
	assert.Equal(t, "guidance raised", v.Chunk(0).Text)
	assert.Equal(t, "c.pdf", v.Chunk(1).Source)

	results, err := reopened.Search(ctx, "dividend declared", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "dividend declared", results[0].Text)
}

func TestSnapshot_MetadataSurvives(t *testing.T) {
	dir := t.TempDir()
	idx, _ := newTestIndex(t, dir)
	_, err := idx.Add(context.Background(), []models.ChunkInput{
		{Text: "revenue rose", Metadata: map[string]string{"filename": "a.pdf"}},
	}, "a.pdf")
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	reopened, _ := newTestIndex(t, dir)
	require.Equal(t, 1, reopened.Count())
	c := reopened.View().Chunk(0)
	assert.Equal(t, "a.pdf", c.Metadata["filename"])
	assert.True(t, c.HasFinancialKeywords)
}

func TestSnapshot_MissingVectorFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	idx, _ := newTestIndex(t, dir)
	_, err := idx.Add(context.Background(), inputs("one", "two"), "a.pdf")
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	require.NoError(t, os.Remove(filepath.Join(dir, VectorFileName)))

	reopened, _ := newTestIndex(t, dir)
	assert.Zero(t, reopened.Count())
}

func TestSnapshot_DimensionMismatchStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	idx, _ := newTestIndex(t, dir)
	_, err := idx.Add(context.Background(), inputs("one"), "a.pdf")
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	other := New(llmtest.NewHashEmbedder(testDim*2), Options{Dir: dir, Logger: logging.Discard()})
	require.NoError(t, other.Initialize(context.Background()))
	t.Cleanup(func() { _ = other.Close() })
	assert.Zero(t, other.Count())
}

func TestSnapshot_RowCountMismatchStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	idx, _ := newTestIndex(t, dir)
	_, err := idx.Add(context.Background(), inputs("one", "two", "three"), "a.pdf")
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	snap, err := loadVectors(dir)
	require.NoError(t, err)
	require.Len(t, snap.Rows, 3)
	require.NoError(t, saveVectors(dir, snap.Dimension, snap.Rows[:2]))

	reopened, _ := newTestIndex(t, dir)
	assert.Zero(t, reopened.Count())
	assert.Empty(t, reopened.ListSources())
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	idx, _ := newTestIndex(t, "")
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, err := idx.Add(ctx, inputs(fmt.Sprintf("writer %d chunk %d", w, i)), fmt.Sprintf("w%d.pdf", w))
				assert.NoError(t, err)
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_, err := idx.Search(ctx, "writer chunk", 3)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 40, idx.Count())
	want := make([]int, 40)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, embeddingIndices(idx))
	for _, s := range idx.ListSources() {
		assert.Equal(t, 10, s.ChunkCount)
	}
}

func TestHasFinancialKeywords(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Free Cash Flow was strong", true},
		{"the P/E ratio", false},
		{"pe ratio of 14", true},
		{"Management raised guidance", true},
		{"the cafeteria menu", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HasFinancialKeywords(tt.text), tt.text)
	}
}
