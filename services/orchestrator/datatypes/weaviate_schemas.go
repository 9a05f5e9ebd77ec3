// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// GetDocumentSchema returns the class holding indexed document chunks.
// Chunks are searched by BM25 over content and title; vectors are never
// computed by this service.
func GetDocumentSchema(className string) *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true
	indexSearchable := new(bool)
	*indexSearchable = true

	return &models.Class{
		Class:       className,
		Description: "A chunk of an indexed document with its source.",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexNullState:  true,
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:            "content",
				DataType:        []string{"text"},
				Description:     "The text of the chunk.",
				Tokenization:    "word",
				IndexSearchable: indexSearchable,
			},
			{
				Name:            "title",
				DataType:        []string{"text"},
				Description:     "Human readable document title, used for citations.",
				Tokenization:    "word",
				IndexSearchable: indexSearchable,
			},
			{
				Name:            "source",
				DataType:        []string{"text"},
				Description:     "The original file path or URI of the document.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
		},
	}
}

// EnsureDocumentSchema creates the document class if it does not exist.
func EnsureDocumentSchema(ctx context.Context, client *weaviate.Client, className string) error {
	class := GetDocumentSchema(className)
	slog.Info("Checking schema", "class", class.Class)

	if _, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(ctx); err == nil {
		slog.Info("Schema already exists", "class", class.Class)
		return nil
	}

	slog.Info("Schema not found, creating it...", "class", class.Class)
	if err := client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create schema for class %s: %w", class.Class, err)
	}
	slog.Info("Successfully created schema", "class", class.Class)
	return nil
}
