// Package indexer implements the Resource Indexer (C3): it frames raw
// resource and tool-result content for embedding and writes the result into
// the Vector Store, including referenced-resource expansion. Framing
// templates are new (no direct source counterpart) but the
// walk-and-expand-by-field-name pattern is grounded on the JSON-tree walking
// idiom used elsewhere in tool-result plumbing.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/nexus-react/core/internal/embedding"
	"github.com/nexus-react/core/internal/vectorstore"
	"github.com/nexus-react/core/pkg/core"
)

// ResourceReader reads a single resource's content by URI, fulfilled by the
// MCP Bridge's readResource. Kept as a narrow interface so the indexer
// doesn't import the mcp package directly.
type ResourceReader interface {
	ReadResource(ctx context.Context, uri string) (text string, mimeType string, err error)
}

// Resource is the minimal shape indexResources needs per item.
type Resource struct {
	URI         string
	Name        string
	Description string
	Content     string
}

// Indexer frames content and writes embeddings into the Vector Store.
type Indexer struct {
	embedder embedding.Provider
	store    *vectorstore.Store
	reader   ResourceReader
	logger   *slog.Logger
}

// New builds an Indexer. reader may be nil until an MCP Bridge is attached;
// referenced-resource expansion is skipped (with a log) when it is.
func New(embedder embedding.Provider, store *vectorstore.Store, reader ResourceReader, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{embedder: embedder, store: store, reader: reader, logger: logger.With("component", "indexer")}
}

// SetReader attaches (or replaces) the resource reader, used when the
// facade boots a new MCP server.
func (ix *Indexer) SetReader(reader ResourceReader) { ix.reader = reader }

// IndexResource frames and embeds a single resource.
func (ix *Indexer) IndexResource(ctx context.Context, uri, content string) error {
	return ix.indexResourceNamed(ctx, uri, "", "", content)
}

// IndexResources frames and embeds a batch of resources.
func (ix *Indexer) IndexResources(ctx context.Context, resources []Resource) error {
	for _, r := range resources {
		if err := ix.indexResourceNamed(ctx, r.URI, r.Name, r.Description, r.Content); err != nil {
			ix.logger.Warn("failed to index resource", "uri", r.URI, "error", err)
		}
	}
	return nil
}

func (ix *Indexer) indexResourceNamed(ctx context.Context, uri, name, description, content string) error {
	if name == "" {
		name = humanNameFromURI(uri)
	}

	var framed strings.Builder
	fmt.Fprintf(&framed, "RESOURCE: %s\n", name)
	if description != "" {
		fmt.Fprintf(&framed, "DESCRIPTION: %s\n", description)
	}
	fmt.Fprintf(&framed, "URI: %s\n\nCONTENT:\n%s", uri, content)

	return ix.embedAndStore(ctx, uri, framed.String(), core.KindResource)
}

// IndexToolResult frames and embeds a completed tool execution under
// tool://<toolName>/<executionId>, then expands any resource_uri references
// found inside the result.
func (ix *Indexer) IndexToolResult(ctx context.Context, execution core.ToolExecution) error {
	argsJSON, _ := json.Marshal(execution.Arguments)
	resultJSON, _ := json.MarshalIndent(execution.Result, "", "  ")

	var framed strings.Builder
	fmt.Fprintf(&framed, "Tool: %s\n", execution.Name)
	fmt.Fprintf(&framed, "Arguments: %s\n", string(argsJSON))
	fmt.Fprintf(&framed, "Result: %s", string(resultJSON))

	uri := fmt.Sprintf("tool://%s/%s", execution.Name, execution.ID)
	if err := ix.embedAndStore(ctx, uri, framed.String(), core.KindToolResult); err != nil {
		return err
	}

	ix.expandReferencedResources(ctx, execution.Result)
	return nil
}

// expandReferencedResources walks a decoded JSON value looking for any
// string field named resource_uri (at any nesting depth), reads it through
// the attached ResourceReader, and indexes the content with full framing.
func (ix *Indexer) expandReferencedResources(ctx context.Context, value any) {
	uris := collectResourceURIs(value, nil)
	if len(uris) == 0 {
		return
	}
	if ix.reader == nil {
		ix.logger.Warn("resource_uri references found but no reader attached", "count", len(uris))
		return
	}
	for _, uri := range uris {
		text, _, err := ix.reader.ReadResource(ctx, uri)
		if err != nil {
			ix.logger.Warn("failed to expand referenced resource", "uri", uri, "error", err)
			continue
		}
		if err := ix.IndexResource(ctx, uri, text); err != nil {
			ix.logger.Warn("failed to index expanded resource", "uri", uri, "error", err)
		}
	}
}

func collectResourceURIs(value any, acc []string) []string {
	switch v := value.(type) {
	case map[string]any:
		for key, val := range v {
			if key == "resource_uri" {
				if s, ok := val.(string); ok && s != "" {
					acc = append(acc, s)
				}
				continue
			}
			acc = collectResourceURIs(val, acc)
		}
	case []any:
		for _, item := range v {
			acc = collectResourceURIs(item, acc)
		}
	}
	return acc
}

func (ix *Indexer) embedAndStore(ctx context.Context, uri, framed string, kind core.IndexKind) error {
	vec, err := ix.embedder.Embed(ctx, framed)
	if err != nil {
		// EncodeError per component contract: skip indexing, don't abort.
		ix.logger.Warn("embedding failed, skipping index", "uri", uri, "error", err)
		return nil
	}
	ix.store.AddWithKind(uri, framed, vec, kind)
	return nil
}

// humanNameFromURI derives a readable name from a URI's last path segment.
// For an authority-form URI like res://vegan_pasta_primavera, url.Parse
// puts the id in Host rather than Path or Opaque, so Host is checked last.
func humanNameFromURI(uri string) string {
	if u, err := url.Parse(uri); err == nil {
		segment := u.Path
		if segment == "" {
			segment = u.Opaque
		}
		if segment == "" {
			segment = u.Host
		}
		if idx := strings.LastIndex(segment, "/"); idx >= 0 && idx+1 < len(segment) {
			segment = segment[idx+1:]
		}
		segment = strings.TrimSuffix(segment, "/")
		if segment != "" {
			return strings.ReplaceAll(segment, "_", " ")
		}
	}
	return uri
}
