// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package exemplars holds the question/answer exemplar corpus and ranks it
// by textual similarity for few-shot prompting.
//
// Exemplars only demonstrate answer format. Their content is never used as
// answer material.
package exemplars

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/AleutianAI/AleutianDocChat/pkg/filewatch"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Exemplar is one stored question/answer pair.
type Exemplar struct {
	ID       string `yaml:"id" json:"id"`
	Question string `yaml:"question" json:"question" validate:"required"`
	Answer   string `yaml:"answer" json:"answer" validate:"required"`
}

var exemplarValidate = validator.New()

// Corpus is an ordered, read-mostly exemplar collection loaded from a JSON
// or YAML file.
//
// # Description
//
// Readers get the current snapshot without locking. Load and Reload build a
// new snapshot and swap it in atomically, so in-flight requests keep ranking
// against the snapshot they started with.
//
// # Thread Safety
//
// Safe for concurrent use.
type Corpus struct {
	path   string
	items  atomic.Pointer[[]Exemplar]
	loadMu sync.Mutex
}

// NewCorpus creates an empty corpus backed by path. Call Load to populate it.
func NewCorpus(path string) *Corpus {
	c := &Corpus{path: path}
	empty := []Exemplar{}
	c.items.Store(&empty)
	return c
}

// NewStaticCorpus creates a corpus from in-memory exemplars, with IDs filled
// in the same way as file loads.
func NewStaticCorpus(items []Exemplar) *Corpus {
	c := &Corpus{}
	cleaned := normalize(items)
	c.items.Store(&cleaned)
	return c
}

// Path returns the backing file path.
func (c *Corpus) Path() string {
	return c.path
}

// Load reads the backing file and replaces the snapshot.
//
// # Outputs
//
//   - error: Non-nil if the file cannot be read or parsed. The previous
//     snapshot stays in place.
func (c *Corpus) Load() error {
	_, err := c.Reload()
	return err
}

// Reload is Load that also reports the number of exemplars now loaded.
func (c *Corpus) Reload() (int, error) {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	if c.path == "" {
		return c.Len(), fmt.Errorf("exemplar corpus has no backing file")
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return c.Len(), fmt.Errorf("failed to read exemplar corpus %s: %w", c.path, err)
	}

	// JSON is valid YAML, so one decoder serves both formats.
	var raw []Exemplar
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return c.Len(), fmt.Errorf("failed to parse exemplar corpus %s: %w", c.path, err)
	}

	items := normalize(raw)
	c.items.Store(&items)
	slog.Info("Loaded exemplar corpus", "path", c.path, "count", len(items), "skipped", len(raw)-len(items))
	return len(items), nil
}

// All returns the current snapshot in corpus order. Callers must not modify
// it.
func (c *Corpus) All() []Exemplar {
	return *c.items.Load()
}

// Len returns the number of loaded exemplars.
func (c *Corpus) Len() int {
	return len(c.All())
}

// Watch reloads the corpus whenever its file changes, until ctx is done.
func (c *Corpus) Watch(ctx context.Context) error {
	w, err := filewatch.New(c.path, 0, func() {
		if _, err := c.Reload(); err != nil {
			slog.Warn("Exemplar corpus reload failed, keeping previous snapshot", "error", err)
		}
	})
	if err != nil {
		return err
	}
	go w.Run(ctx)
	return nil
}

// normalize drops invalid entries and assigns 1-based positional IDs to
// entries without one.
func normalize(raw []Exemplar) []Exemplar {
	items := make([]Exemplar, 0, len(raw))
	for i, ex := range raw {
		if err := exemplarValidate.Struct(ex); err != nil {
			slog.Warn("Skipping invalid exemplar", "index", i, "error", err)
			continue
		}
		if ex.ID == "" {
			ex.ID = strconv.Itoa(i + 1)
		}
		items = append(items, ex)
	}
	return items
}
