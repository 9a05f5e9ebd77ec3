// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianDocChat/pkg/filewatch"
	"github.com/awnumar/memguard"
)

// TokenSource provides the OA access token for each send.
type TokenSource interface {
	Token() (string, error)
}

type tokenFile struct {
	AccessToken string `json:"access_token"`
}

// FileTokenSource reads the access token from a JSON file written by the
// token refresh job.
//
// # Description
//
// The token is sealed in a memguard enclave between sends and only opened
// long enough to copy it into a request header. A failed reload keeps the
// previous token.
//
// # Thread Safety
//
// Safe for concurrent use.
type FileTokenSource struct {
	path string

	mu      sync.RWMutex
	enclave *memguard.Enclave
}

func NewFileTokenSource(path string) *FileTokenSource {
	return &FileTokenSource{path: path}
}

// Path returns the token file path.
func (s *FileTokenSource) Path() string {
	return s.path
}

// Exists reports whether the token file is present on disk.
func (s *FileTokenSource) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the token file and seals the token.
func (s *FileTokenSource) Load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read token file: %w", err)
	}
	defer memguard.WipeBytes(raw)

	var tf tokenFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return fmt.Errorf("failed to parse token file: %w", err)
	}
	token := strings.TrimSpace(tf.AccessToken)
	if token == "" {
		return fmt.Errorf("token file %s has no access_token", s.path)
	}

	enclave := memguard.NewEnclave([]byte(token))

	s.mu.Lock()
	s.enclave = enclave
	s.mu.Unlock()

	slog.Info("Loaded OA access token", "path", s.path, "token_set", true)
	return nil
}

// Token returns a copy of the current access token.
func (s *FileTokenSource) Token() (string, error) {
	s.mu.RLock()
	enclave := s.enclave
	s.mu.RUnlock()
	if enclave == nil {
		return "", ErrNoToken
	}

	buf, err := enclave.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open token enclave: %w", err)
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}

// Watch reloads the token whenever the file changes, until ctx is done.
func (s *FileTokenSource) Watch(ctx context.Context) error {
	w, err := filewatch.New(s.path, 0, func() {
		if err := s.Load(); err != nil {
			slog.Warn("OA token reload failed, keeping previous token", "error", err)
		}
	})
	if err != nil {
		return err
	}
	go w.Run(ctx)
	return nil
}

var _ TokenSource = (*FileTokenSource)(nil)
