// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fewshot retrieves reference (requirement, code) pairs from a
// Weaviate class for inclusion in generation prompts. The whole package is
// optional: without a configured Weaviate URL there is no retriever and
// generation proceeds with zero examples.
package fewshot

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/solforge/services/llm"
	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// ExampleClassName is the Weaviate class holding corpus examples.
const ExampleClassName = "ContractExample"

// BatchSize is the number of examples imported per batch request.
const BatchSize = 100

// defaultLimit bounds retrieval when the caller passes no limit.
const defaultLimit = 4

// maxEmbedLength caps the query text sent to the embedding service. Longer
// documents carry no extra signal for similarity and blow the embed budget.
const maxEmbedLength = 2048

// Config carries the connection settings for the retriever.
type Config struct {
	// WeaviateURL is the full base URL (e.g. http://localhost:8080).
	// Empty disables retrieval entirely.
	WeaviateURL string

	// EmbedURL is the optional embedding service base URL. When set,
	// indexing attaches vectors and retrieval searches by vector
	// similarity; when empty, both sides use BM25 keyword ranking.
	EmbedURL string

	// Class overrides the Weaviate class name. Defaults to
	// ExampleClassName.
	Class string
}

// ConfigFromEnv reads WEAVIATE_URL and EMBEDDING_SERVICE_URL.
func ConfigFromEnv() Config {
	return Config{
		WeaviateURL: strings.Trim(os.Getenv("WEAVIATE_URL"), "\"' "),
		EmbedURL:    strings.Trim(os.Getenv("EMBEDDING_SERVICE_URL"), "\"' "),
	}
}

// Retriever answers similarity queries against indexed corpus examples.
// A nil *Retriever is never wrapped into the pipeline: New returns nil
// when no URL is configured and callers leave the pipeline hook unset.
type Retriever struct {
	client   *weaviate.Client
	embedURL string
	class    string
	httpc    *http.Client
}

// New builds a retriever from cfg. An empty or non-HTTP WeaviateURL is the
// lightweight mode: New returns (nil, nil) and the caller runs without
// retrieval. A malformed URL is an error.
func New(cfg Config) (*Retriever, error) {
	if cfg.WeaviateURL == "" || !strings.Contains(cfg.WeaviateURL, "http") {
		slog.Info("weaviate URL not configured, few-shot retrieval disabled")
		return nil, nil
	}

	parsed, err := url.Parse(cfg.WeaviateURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid weaviate URL: %s", cfg.WeaviateURL)
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("creating weaviate client: %w", err)
	}

	class := cfg.Class
	if class == "" {
		class = ExampleClassName
	}

	return &Retriever{
		client:   client,
		embedURL: cfg.EmbedURL,
		class:    class,
		httpc:    &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// exampleSchema returns the Weaviate class for corpus examples. Vectors are
// supplied externally (or not at all), so the vectorizer is "none".
func exampleSchema(class string) *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       class,
		Description: "Requirement/code pairs from the contract corpus",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:            "recordId",
				DataType:        []string{"text"},
				Description:     "Deterministic content hash of the pair",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "requirement",
				DataType:     []string{"text"},
				Description:  "Natural-language contract requirement",
				Tokenization: "word",
			},
			{
				Name:         "code",
				DataType:     []string{"text"},
				Description:  "Reference Solidity implementation",
				Tokenization: "word",
			},
			{
				Name:            "version",
				DataType:        []string{"text"},
				Description:     "Solidity version the reference targets",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
		},
	}
}

// EnsureSchema creates the example class if it does not exist. Idempotent.
func (r *Retriever) EnsureSchema(ctx context.Context) error {
	_, err := r.client.Schema().ClassGetter().WithClassName(r.class).Do(ctx)
	if err == nil {
		slog.Info("example schema already exists", "class", r.class)
		return nil
	}

	slog.Info("creating example schema", "class", r.class)
	if err := r.client.Schema().ClassCreator().WithClass(exampleSchema(r.class)).Do(ctx); err != nil {
		return fmt.Errorf("creating example schema: %w", err)
	}
	return nil
}

// exampleID derives a deterministic object ID from the pair's content, so
// re-indexing the same corpus upserts rather than duplicates.
func exampleID(rec datatypes.DatasetRecord) strfmt.UUID {
	hash := sha256.Sum256([]byte(rec.UserRequirement + "\x00" + rec.Code))
	id, _ := uuid.FromBytes(hash[:16])
	return strfmt.UUID(id.String())
}

// Index batch-imports corpus records. When an embedding service is
// configured each batch is embedded first and vectors ride along with the
// objects; otherwise objects are keyword-indexed only. Returns the number
// of records accepted by Weaviate.
func (r *Retriever) Index(ctx context.Context, records []datatypes.DatasetRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	indexed := 0
	for i := 0; i < len(records); i += BatchSize {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}

		end := i + BatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[i:end]

		var vectors [][]float32
		if r.embedURL != "" {
			texts := make([]string, len(batch))
			for j, rec := range batch {
				texts[j] = truncateForEmbed(rec.UserRequirement)
			}
			var err error
			vectors, err = r.embedTexts(ctx, texts)
			if err != nil {
				return indexed, fmt.Errorf("embedding batch: %w", err)
			}
			if len(vectors) != len(batch) {
				return indexed, fmt.Errorf("embedding service returned %d vectors for %d texts", len(vectors), len(batch))
			}
		}

		objects := make([]*models.Object, len(batch))
		for j, rec := range batch {
			objects[j] = &models.Object{
				Class: r.class,
				ID:    exampleID(rec),
				Properties: map[string]interface{}{
					"recordId":    fmt.Sprintf("%x", sha256.Sum256([]byte(rec.UserRequirement+"\x00"+rec.Code))),
					"requirement": rec.UserRequirement,
					"code":        rec.Code,
					"version":     rec.Version,
				},
			}
			if vectors != nil {
				objects[j].Vector = vectors[j]
			}
		}

		result, err := r.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
		if err != nil {
			return indexed, fmt.Errorf("batch import failed: %w", err)
		}
		for _, obj := range result {
			if obj.Result != nil && obj.Result.Errors == nil {
				indexed++
			}
		}

		slog.Info("indexed example batch", "count", len(batch), "total_indexed", indexed)
	}

	return indexed, nil
}

// Retrieve returns up to k examples similar to text. With an embedding
// service configured the query is embedded and matched by vector
// similarity, falling back to BM25 if the embed call fails; without one
// the search is BM25 throughout.
func (r *Retriever) Retrieve(ctx context.Context, text string, k int) ([]llm.Example, error) {
	if k <= 0 {
		k = defaultLimit
	}
	query := truncateForEmbed(text)

	fields := []graphql.Field{
		{Name: "requirement"},
		{Name: "code"},
	}

	builder := r.client.GraphQL().Get().
		WithClassName(r.class).
		WithFields(fields...).
		WithLimit(k)

	if r.embedURL != "" {
		vector, err := r.embedQuery(ctx, query)
		if err != nil {
			slog.Warn("query embedding failed, falling back to keyword search", "error", err)
			builder = builder.WithBM25(r.client.GraphQL().Bm25ArgBuilder().WithQuery(query))
		} else {
			builder = builder.WithNearVector(r.client.GraphQL().NearVectorArgBuilder().WithVector(vector))
		}
	} else {
		builder = builder.WithBM25(r.client.GraphQL().Bm25ArgBuilder().WithQuery(query))
	}

	result, err := builder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("example search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("example search error: %s", result.Errors[0].Message)
	}

	return parseExamples(result.Data, r.class), nil
}

// parseExamples walks the GraphQL Get response shape. Missing or malformed
// levels yield an empty slice, never an error: no results is a valid answer.
func parseExamples(data map[string]models.JSONObject, class string) []llm.Example {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return []llm.Example{}
	}
	objects, ok := get[class].([]interface{})
	if !ok {
		return []llm.Example{}
	}

	examples := make([]llm.Example, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		ex := llm.Example{
			Requirement: getString(m, "requirement"),
			Code:        getString(m, "code"),
		}
		if ex.Requirement == "" && ex.Code == "" {
			continue
		}
		examples = append(examples, ex)
	}
	return examples
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// truncateForEmbed caps text at maxEmbedLength bytes.
func truncateForEmbed(text string) string {
	if len(text) > maxEmbedLength {
		return text[:maxEmbedLength]
	}
	return text
}

// =============================================================================
// Embedding service client
// =============================================================================

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// embedTexts posts texts to the batch endpoint of the embedding service.
func (r *Retriever) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	endpoint := strings.TrimSuffix(r.embedURL, "/embed") + "/batch_embed"

	payload, err := json.Marshal(embedRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling embedding service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, string(body))
	}

	var decoded embedResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decoding embed response: %w", err)
	}
	return decoded.Vectors, nil
}

// embedQuery embeds a single query text.
func (r *Retriever) embedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := r.embedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding service returned %d vectors for one text", len(vectors))
	}
	return vectors[0], nil
}
