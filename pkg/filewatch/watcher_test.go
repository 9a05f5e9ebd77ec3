// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package filewatch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_CallsBackOnRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	var calls int32
	w, err := New(path, 20*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Rename-over, as a refresh job would do it.
	tmp := filepath.Join(dir, "tokens.json.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(`{"access_token":"x"}`), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qa_examples.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o600))

	var calls int32
	w, err := New(path, 20*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`[]`), 0o600))
	time.Sleep(150 * time.Millisecond)

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "f.json"), 0, func() {})
	assert.Error(t, err)
}
