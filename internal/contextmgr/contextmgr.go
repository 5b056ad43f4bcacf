// Package contextmgr implements the Context Manager (C4): query
// enhancement, threshold/boost retrieval, and token budgeting that together
// produce a ContextBundle for each ReAct Controller turn. The retrieval
// ordering (candidate threshold, then recency boost, then final threshold)
// is load-bearing: applying the boost after the final filter would drop
// resources a user just referenced, so that order is enforced in code, not
// left to caller discipline.
package contextmgr

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/nexus-react/core/internal/embedding"
	"github.com/nexus-react/core/internal/vectorstore"
	"github.com/nexus-react/core/pkg/core"
)

// Config holds the tunables from configuration §4.9 that this package
// consumes directly.
type Config struct {
	UseVectorSearch        bool
	EnableContextBudgeting bool
	CandidateThreshold     float64
	FinalThreshold         float64
	RecencyBoost           float64
	MaxResults             int
	BudgetResources        int
	BudgetHistory          int
	DebugMode              bool
}

var (
	capitalizedPhrase = regexp.MustCompile(`\b([A-Z][a-zA-Z0-9]*(?:\s+[A-Z][a-zA-Z0-9]*)+)\b`)
	resourceURIPattern = regexp.MustCompile(`res://[\w_]+`)
	quotedSubstring    = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
)

// Manager builds ContextBundles for ReAct Controller turns.
type Manager struct {
	embedder embedding.Provider
	store    *vectorstore.Store
	logger   *slog.Logger
}

// New builds a Manager backed by the given embedder and vector store.
func New(embedder embedding.Provider, store *vectorstore.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{embedder: embedder, store: store, logger: logger.With("component", "contextmgr")}
}

// Build produces a ContextBundle for userMessage given the prior history
// (oldest-first) and the tools currently available.
func (m *Manager) Build(ctx context.Context, userMessage string, history []core.ChatMessage, tools []core.Tool, cfg Config) core.ContextBundle {
	bundle := core.ContextBundle{Tools: tools}

	if cfg.UseVectorSearch {
		bundle.RelevantResources = m.retrieve(ctx, userMessage, history, cfg)
	}

	bundle.HistoryMessages = m.budgetHistory(history, cfg)
	return bundle
}

// retrieve runs query enhancement (§4.4.1) and the mandatory-order
// retrieval/boosting pipeline (§4.4.2).
func (m *Manager) retrieve(ctx context.Context, userMessage string, history []core.ChatMessage, cfg Config) []core.SearchResult {
	query := enhanceQuery(userMessage, history)

	queryEmbedding, err := m.embedder.Embed(ctx, query)
	if err != nil {
		m.logger.Warn("query embedding failed, skipping retrieval", "error", err)
		return nil
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	kCandidate := 2 * maxResults

	candidates := m.store.Search(queryEmbedding, kCandidate, cfg.CandidateThreshold)

	boostURIs := recencyBoostURIs(history, m.store.AllURIs())
	for i := range candidates {
		if boostURIs[candidates[i].URI] {
			candidates[i].Score += cfg.RecencyBoost
			if cfg.DebugMode {
				m.logger.Debug("applied recency boost", "uri", candidates[i].URI, "score", candidates[i].Score)
			}
		}
	}

	final := candidates[:0]
	for _, c := range candidates {
		if c.Score >= cfg.FinalThreshold {
			final = append(final, c)
		}
	}

	sort.Slice(final, func(i, j int) bool { return final[i].Score > final[j].Score })
	if len(final) > maxResults {
		final = final[:maxResults]
	}

	if cfg.DebugMode {
		for _, c := range final {
			m.logger.Debug("candidate retained", "uri", c.URI, "score", c.Score)
		}
	}
	return final
}

// enhanceQuery concatenates userMessage with the single most-recent entity
// mined from the last two history messages (most-recent-first).
func enhanceQuery(userMessage string, history []core.ChatMessage) string {
	recent := lastN(history, 2)
	for i := len(recent) - 1; i >= 0; i-- {
		if entity := extractEntity(recent[i].Content); entity != "" {
			return userMessage + " " + entity
		}
	}
	return userMessage
}

// extractEntity returns a single entity from text. Each pattern (capitalized
// phrase, res:// URI, quoted substring) contributes only its first match; of
// those, the match that starts furthest right in the text wins.
func extractEntity(text string) string {
	type match struct {
		pos   int
		value string
	}
	var best *match

	consider := func(pos int, value string) {
		if best == nil || pos > best.pos {
			best = &match{pos: pos, value: value}
		}
	}

	if loc := capitalizedPhrase.FindStringIndex(text); loc != nil {
		consider(loc[0], text[loc[0]:loc[1]])
	}
	if loc := resourceURIPattern.FindStringIndex(text); loc != nil {
		raw := text[loc[0]:loc[1]]
		consider(loc[0], strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(raw, "res://"), "_", " ")))
	}
	if m := quotedSubstring.FindStringSubmatchIndex(text); m != nil {
		value := text[m[2]:m[3]]
		if value == "" {
			value = text[m[4]:m[5]]
		}
		consider(m[0], value)
	}

	if best == nil {
		return ""
	}
	return best.value
}

// recencyBoostURIs scans the last three history messages for res://<id>
// references and bare identifiers matching a known indexed URI's tail
// segment, returning the set of indexed URIs eligible for the boost.
func recencyBoostURIs(history []core.ChatMessage, indexedURIs []string) map[string]bool {
	boosted := make(map[string]bool)
	recent := lastN(history, 3)

	tails := make(map[string]string, len(indexedURIs))
	for _, uri := range indexedURIs {
		tails[tailOf(uri)] = uri
	}

	for _, msg := range recent {
		for _, match := range resourceURIPattern.FindAllString(msg.Content, -1) {
			boosted[match] = true
		}
		for _, word := range strings.Fields(msg.Content) {
			word = strings.Trim(word, ".,!?;:()[]\"'")
			if uri, ok := tails[word]; ok {
				boosted[uri] = true
			}
		}
	}
	return boosted
}

func tailOf(uri string) string {
	if idx := strings.LastIndexAny(uri, "/:"); idx >= 0 && idx+1 < len(uri) {
		return uri[idx+1:]
	}
	return uri
}

func lastN(history []core.ChatMessage, n int) []core.ChatMessage {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// approxTokens implements the char/4 heuristic used throughout this
// component in place of exact tokenization (explicitly out of scope).
func approxTokens(s string) int {
	return (len(s) + 3) / 4
}

// budgetHistory returns the most-recent-first history messages that fit
// within BudgetHistory token-equivalents, when budgeting is enabled.
func (m *Manager) budgetHistory(history []core.ChatMessage, cfg Config) []core.ChatMessage {
	if !cfg.EnableContextBudgeting || cfg.BudgetHistory <= 0 {
		return history
	}

	budget := cfg.BudgetHistory
	var kept []core.ChatMessage
	for i := len(history) - 1; i >= 0; i-- {
		cost := approxTokens(history[i].Content)
		if cost > budget {
			break
		}
		budget -= cost
		kept = append([]core.ChatMessage{history[i]}, kept...)
	}
	return kept
}

// TruncateResources applies the resources budget (§4.4.3) in place: a
// resource exceeding its share is truncated to fit rather than dropped,
// unless truncation would leave fewer than minUsefulChars, in which case it
// is omitted and the next candidate takes its slot.
func TruncateResources(results []core.SearchResult, budgetResources int) []core.SearchResult {
	const minUsefulChars = 200
	if budgetResources <= 0 {
		return results
	}

	budgetChars := budgetResources * 4
	out := make([]core.SearchResult, 0, len(results))
	for _, r := range results {
		if len(r.Text) <= budgetChars {
			out = append(out, r)
			budgetChars -= len(r.Text)
			continue
		}
		if budgetChars < minUsefulChars {
			continue // dropped: doesn't fit and wouldn't be useful truncated
		}
		truncated := r
		truncated.Text = r.Text[:budgetChars]
		out = append(out, truncated)
		budgetChars = 0
	}
	return out
}
