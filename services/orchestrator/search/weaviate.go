// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search provides keyword search over documents indexed in Weaviate.
//
// The same index serves two purposes: GET /v1/documents/search lists
// matching chunks, and DocumentIndex implements llm.GroundedClient so the
// answer pipeline can ground OpenAI and Anthropic backends on it.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/AleutianAI/AleutianDocChat/services/llm"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/datatypes"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var searchTracer = otel.Tracer("docchat.search")

// DefaultLimit is used when a caller passes a non-positive limit.
const DefaultLimit = 5

// maxContextChars bounds the grounding context handed to the generator.
const maxContextChars = 12000

// bm25Runner executes one BM25 query. Swapped out in tests.
type bm25Runner func(ctx context.Context, className, query string, limit int) (*models.GraphQLResponse, error)

// DocumentIndex searches one Weaviate document class.
//
// # Thread Safety
//
// Safe for concurrent use.
type DocumentIndex struct {
	className string
	limit     int
	run       bm25Runner
}

// NewWeaviateClient builds a client from a service URL such as
// http://weaviate:8080.
func NewWeaviateClient(rawURL string) (*weaviate.Client, error) {
	rawURL = strings.Trim(rawURL, "\"' ")
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid weaviate URL %q", rawURL)
	}
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return client, nil
}

// NewDocumentIndex creates an index over className. A non-positive limit
// uses DefaultLimit.
func NewDocumentIndex(client *weaviate.Client, className string, limit int) *DocumentIndex {
	return newDocumentIndex(className, limit, func(ctx context.Context, class, query string, n int) (*models.GraphQLResponse, error) {
		fields := []graphql.Field{
			{Name: "content"},
			{Name: "title"},
			{Name: "source"},
			{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "score"}}},
		}
		return client.GraphQL().Get().
			WithClassName(class).
			WithFields(fields...).
			WithBM25(client.GraphQL().Bm25ArgBuilder().WithQuery(query).WithProperties("content", "title")).
			WithLimit(n).
			Do(ctx)
	})
}

func newDocumentIndex(className string, limit int, run bm25Runner) *DocumentIndex {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &DocumentIndex{className: className, limit: limit, run: run}
}

// ClassName returns the Weaviate class searched.
func (d *DocumentIndex) ClassName() string {
	return d.className
}

// Search returns the chunks best matching query by BM25 score.
//
// # Inputs
//
//   - ctx: Request context.
//   - query: Keyword query. Must be non-blank.
//   - limit: Maximum hits. Non-positive uses the index default.
//
// # Outputs
//
//   - []datatypes.DocumentHit: Hits in ranking order. Never nil.
//   - error: Query or GraphQL failure.
func (d *DocumentIndex) Search(ctx context.Context, query string, limit int) ([]datatypes.DocumentHit, error) {
	ctx, span := searchTracer.Start(ctx, "DocumentIndex.Search")
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is empty")
	}
	if limit <= 0 {
		limit = d.limit
	}
	span.SetAttributes(attribute.String("search.class", d.className), attribute.Int("search.limit", limit))

	resp, err := d.run(ctx, d.className, query, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}
	parsed, err := datatypes.ParseGraphQLResponse[datatypes.DocumentQueryResponse](resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	docs := parsed.Documents(d.className)
	hits := make([]datatypes.DocumentHit, 0, len(docs))
	for _, doc := range docs {
		hits = append(hits, datatypes.DocumentHit{
			ID:      doc.Additional.ID,
			Title:   doc.Title,
			Source:  doc.Source,
			Content: doc.Content,
			Score:   doc.Additional.Score,
		})
	}
	span.SetAttributes(attribute.Int("search.hits", len(hits)))
	slog.Debug("Document search completed", "class", d.className, "hits", len(hits))
	return hits, nil
}

// GenerateGrounded implements llm.GroundedClient. The prompt is used as the
// keyword query; generation params are ignored since no model runs here.
func (d *DocumentIndex) GenerateGrounded(ctx context.Context, prompt string, _ llm.GenerationParams) (*llm.GroundedResponse, error) {
	hits, err := d.Search(ctx, prompt, d.limit)
	if err != nil {
		return nil, err
	}
	citations := make([]llm.Citation, 0, len(hits))
	for _, h := range hits {
		uri := h.Source
		if uri == "" {
			uri = h.ID
		}
		citations = append(citations, llm.NewCitation(h.Title, uri))
	}
	return &llm.GroundedResponse{Text: renderContext(hits), Citations: citations}, nil
}

// renderContext joins hits into numbered passages. The passage that crosses
// maxContextChars is cut at the limit and later hits are dropped.
func renderContext(hits []datatypes.DocumentHit) string {
	var sb strings.Builder
	for i, h := range hits {
		title := h.Title
		if title == "" {
			title = llm.UnknownCitationTitle
		}
		passage := fmt.Sprintf("[%d] %s\n%s\n\n", i+1, title, strings.TrimSpace(h.Content))
		if remaining := maxContextChars - sb.Len(); len(passage) > remaining {
			sb.WriteString(truncateUTF8(passage, remaining))
			break
		}
		sb.WriteString(passage)
	}
	return strings.TrimSpace(sb.String())
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

var _ llm.GroundedClient = (*DocumentIndex)(nil)
