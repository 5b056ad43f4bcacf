package contextmgr

import (
	"context"
	"testing"

	"github.com/nexus-react/core/internal/embedding"
	"github.com/nexus-react/core/internal/vectorstore"
	"github.com/nexus-react/core/pkg/core"
)

func defaultConfig() Config {
	return Config{
		UseVectorSearch:        true,
		EnableContextBudgeting: true,
		CandidateThreshold:     0.25,
		FinalThreshold:         0.35,
		RecencyBoost:           0.30,
		MaxResults:             5,
		BudgetResources:        2048,
		BudgetHistory:          512,
	}
}

func TestExtractEntity_PrefersPatterns(t *testing.T) {
	cases := map[string]string{
		`Look at res://project_alpha for details`: "project alpha",
		`The Great Library has the answer`:        "The Great Library",
		`search for "quarterly report"`:           "quarterly report",
		`nothing special here`:                    "",
	}
	for text, want := range cases {
		got := extractEntity(text)
		if got != want {
			t.Errorf("extractEntity(%q) = %q, want %q", text, got, want)
		}
	}
}

func TestEnhanceQuery_UsesMostRecentEntity(t *testing.T) {
	history := []core.ChatMessage{
		{Role: core.RoleUser, Content: `check res://doc_one`},
		{Role: core.RoleAssistant, Content: `check res://doc_two`},
	}
	got := enhanceQuery("show it to me", history)
	if got != "show it to me doc two" {
		t.Fatalf("enhanceQuery = %q", got)
	}
}

func TestRecencyBoost_AppliedBeforeFinalThreshold(t *testing.T) {
	embedder := embedding.NewHashingProvider(16)
	_ = embedder.Init(context.Background())
	store := vectorstore.MustNew(16, nil)

	mentioned, _ := embedder.Embed(context.Background(), "alpha beta gamma delta")
	store.Add("res://mentioned", "alpha beta gamma delta", mentioned)

	m := New(embedder, store, nil)

	history := []core.ChatMessage{
		{Role: core.RoleUser, Content: "what about res://mentioned"},
	}

	cfg := defaultConfig()
	cfg.CandidateThreshold = -1 // force candidate through regardless of raw score
	cfg.FinalThreshold = 0.5    // unreachable without the boost for unrelated text
	cfg.RecencyBoost = 2.0      // large enough to guarantee the threshold regardless of raw cosine

	results := m.retrieve(context.Background(), "what about it", history, cfg)
	if len(results) != 1 || results[0].URI != "res://mentioned" {
		t.Fatalf("results = %v, expected boosted resource to survive final threshold", results)
	}
}

func TestTruncateResources_TruncatesBeforeDropping(t *testing.T) {
	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'x'
	}
	results := []core.SearchResult{
		{URI: "res://big", Text: string(long)},
	}
	out := TruncateResources(results, 100) // 400 char budget
	if len(out) != 1 {
		t.Fatalf("expected truncation not drop, got %d results", len(out))
	}
	if len(out[0].Text) != 400 {
		t.Fatalf("truncated length = %d, want 400", len(out[0].Text))
	}
}

func TestTruncateResources_DropsBelowMinUseful(t *testing.T) {
	results := []core.SearchResult{
		{URI: "res://a", Text: string(make([]byte, 1000))},
		{URI: "res://b", Text: string(make([]byte, 1000))},
	}
	// First result consumes the whole budget leaving < 200 chars for the
	// second, which must be dropped rather than truncated to near-nothing.
	out := TruncateResources(results, 250) // 1000 char budget
	if len(out) != 1 {
		t.Fatalf("expected second resource dropped, got %d results", len(out))
	}
}

func TestBudgetHistory_MostRecentFirstUntilExhausted(t *testing.T) {
	m := New(embedding.NewHashingProvider(8), vectorstore.MustNew(8, nil), nil)
	history := []core.ChatMessage{
		{Role: core.RoleUser, Content: "first message, somewhat long content here"},
		{Role: core.RoleAssistant, Content: "second message"},
		{Role: core.RoleUser, Content: "third message"},
	}
	cfg := defaultConfig()
	cfg.BudgetHistory = 5 // very small, only the last short message fits

	kept := m.budgetHistory(history, cfg)
	if len(kept) != 1 || kept[0].Content != "third message" {
		t.Fatalf("kept = %v", kept)
	}
}
