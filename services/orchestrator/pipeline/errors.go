// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline implements the multi-stage answer pipeline.
//
// # Description
//
// One question runs through these stages strictly in order:
//
//	analyze -> build directive -> select exemplars -> retrieve -> generate -> validate/refine
//
// Analysis, retrieval and validation recover locally from upstream failures
// with fallback values. Generation recovers from upstream failures with a
// fixed apology. The only terminal failures are an empty question, a
// generator that returns no text, and the pipeline deadline (or caller
// cancellation).
package pipeline

import "errors"

var (
	// ErrEmptyQuestion is returned when the question is blank after trimming.
	// No external call is made.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrNoAnswer is returned when the generator succeeds but produces no
	// text.
	ErrNoAnswer = errors.New("generator produced no answer")

	// ErrMalformedResponse is returned when a structured model response
	// cannot be parsed.
	ErrMalformedResponse = errors.New("malformed structured response")
)
