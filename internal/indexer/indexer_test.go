package indexer

import (
	"context"
	"strings"
	"testing"

	"github.com/nexus-react/core/internal/embedding"
	"github.com/nexus-react/core/internal/vectorstore"
	"github.com/nexus-react/core/pkg/core"
)

type stubReader struct {
	content map[string]string
}

func (r *stubReader) ReadResource(ctx context.Context, uri string) (string, string, error) {
	return r.content[uri], "text/plain", nil
}

func newTestIndexer(t *testing.T, reader ResourceReader) (*Indexer, *vectorstore.Store) {
	t.Helper()
	embedder := embedding.NewHashingProvider(32)
	if err := embedder.Init(context.Background()); err != nil {
		t.Fatalf("init embedder: %v", err)
	}
	store := vectorstore.MustNew(32, nil)
	return New(embedder, store, reader, nil), store
}

func TestIndexResource_Framing(t *testing.T) {
	ix, store := newTestIndexer(t, nil)

	if err := ix.IndexResource(context.Background(), "res://doc1", "hello world"); err != nil {
		t.Fatalf("IndexResource: %v", err)
	}

	uris := store.AllURIs()
	if len(uris) != 1 || uris[0] != "res://doc1" {
		t.Fatalf("uris = %v", uris)
	}
}

func TestHumanNameFromURI_AuthorityForm(t *testing.T) {
	// res://<id> puts the id in url.URL.Host, not Path or Opaque, since the
	// "//" makes it an authority-form URI rather than an opaque one.
	got := humanNameFromURI("res://vegan_pasta_primavera")
	if got != "vegan pasta primavera" {
		t.Fatalf("humanNameFromURI(%q) = %q, want %q", "res://vegan_pasta_primavera", got, "vegan pasta primavera")
	}
}

func TestIndexResource_FramingUsesHumanNameForAuthorityFormURI(t *testing.T) {
	ix, store := newTestIndexer(t, nil)

	if err := ix.IndexResource(context.Background(), "res://vegan_pasta_primavera", "a weeknight pasta dish"); err != nil {
		t.Fatalf("IndexResource: %v", err)
	}

	embedder := embedding.NewHashingProvider(32)
	_ = embedder.Init(context.Background())
	queryEmbedding, _ := embedder.Embed(context.Background(), "a weeknight pasta dish")
	results := store.Search(queryEmbedding, 1, 0)
	if len(results) != 1 {
		t.Fatalf("expected one search result, got %d", len(results))
	}
	if !strings.Contains(results[0].Text, "RESOURCE: vegan pasta primavera") {
		t.Fatalf("framed text = %q, expected it to surface the human name", results[0].Text)
	}
}

func TestIndexToolResult_ExpandsReferencedResource(t *testing.T) {
	reader := &stubReader{content: map[string]string{"res://expanded": "expanded content"}}
	ix, store := newTestIndexer(t, reader)

	execution := core.ToolExecution{
		ID:   "exec-1",
		Name: "lookup",
		Result: map[string]any{
			"resource_uri": "res://expanded",
			"nested": map[string]any{
				"resource_uri": "res://also-expanded",
			},
		},
	}
	reader.content["res://also-expanded"] = "more content"

	if err := ix.IndexToolResult(context.Background(), execution); err != nil {
		t.Fatalf("IndexToolResult: %v", err)
	}

	uris := store.AllURIs()
	want := map[string]bool{
		"tool://lookup/exec-1": true,
		"res://expanded":       true,
		"res://also-expanded":  true,
	}
	if len(uris) != len(want) {
		t.Fatalf("uris = %v, want %v keys", uris, want)
	}
	for _, u := range uris {
		if !want[u] {
			t.Fatalf("unexpected uri %q", u)
		}
	}
}
