// ABOUTME: Knowledge augmentation step that queries a search backend before the first model turn
// ABOUTME: Leases a pooled session, runs the configured search tool, and formats snippets as context

package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/toolgate/internal/config"
	"github.com/2389/toolgate/internal/errkind"
	"github.com/2389/toolgate/internal/pool"
)

// snippetLimit caps how much of each retrieved document is injected into the
// model prompt.
const snippetLimit = 500

// Augmenter produces retrieval context for a user query. An empty string
// means nothing relevant was found; augmentation failures must never fail
// the request they decorate.
type Augmenter interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// Leaser is the slice of the session pool the augmenter needs.
type Leaser interface {
	Lease(ctx context.Context, server string) (*pool.Session, error)
	Return(server string, sess *pool.Session, callErr error)
}

// KnowledgeAugmenter retrieves context from a knowledge-base backend's search
// tool through the shared session pool.
type KnowledgeAugmenter struct {
	leaser   Leaser
	settings config.AugmenterSettings
	logger   *slog.Logger
}

// NewKnowledgeAugmenter creates an augmenter over the given pool slice.
func NewKnowledgeAugmenter(leaser Leaser, settings config.AugmenterSettings, logger *slog.Logger) *KnowledgeAugmenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &KnowledgeAugmenter{
		leaser:   leaser,
		settings: settings,
		logger:   logger.With("component", "augmenter"),
	}
}

// searchResponse is the wire shape the knowledge backend returns.
type searchResponse struct {
	Success bool `json:"success"`
	Results []struct {
		DocumentTitle   string  `json:"document_title"`
		Content         string  `json:"content"`
		SimilarityScore float64 `json:"similarity_score"`
	} `json:"results"`
}

// Retrieve runs a semantic search for the query and formats the hits as a
// context block. No hits yields an empty string and no error.
func (a *KnowledgeAugmenter) Retrieve(ctx context.Context, query string) (string, error) {
	sess, err := a.leaser.Lease(ctx, a.settings.Server)
	if err != nil {
		return "", errkind.Wrap(errkind.KindOf(err), "leasing knowledge session", err)
	}

	args := map[string]any{
		"query":                query,
		"search_type":          "semantic",
		"max_results":          a.settings.MaxResults,
		"similarity_threshold": a.settings.SimilarityThreshold,
	}
	raw, callErr := sess.Transport.Call(ctx, a.settings.Tool, args)
	a.leaser.Return(a.settings.Server, sess, callErr)
	if callErr != nil {
		return "", errkind.Wrap(errkind.ToolExecution, "knowledge search failed", callErr)
	}

	var resp searchResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return "", errkind.Wrap(errkind.ToolExecution, "unparseable knowledge search result", err)
	}
	if !resp.Success || len(resp.Results) == 0 {
		a.logger.Debug("no knowledge results", "query_len", len(query))
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Relevant context from the knowledge base:\n")
	for _, r := range resp.Results {
		content := r.Content
		if len(content) > snippetLimit {
			content = content[:snippetLimit] + "..."
		}
		fmt.Fprintf(&b, "\n[%s] (similarity %.2f)\n%s\n", r.DocumentTitle, r.SimilarityScore, content)
	}

	a.logger.Info("query augmented", "results", len(resp.Results))
	return b.String(), nil
}
