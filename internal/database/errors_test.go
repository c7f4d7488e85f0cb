// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package database

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/tomtom215/personafeed/internal/logging"
)

type mockCloser struct {
	closed bool
	err    error
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.err
}

// Subtests share the global logger, so none of them run in parallel.
func TestCloseWithLog(t *testing.T) {
	var buf bytes.Buffer
	prev := logging.Logger()
	logging.SetLogger(logging.NewTestLogger(&buf))
	t.Cleanup(func() { logging.SetLogger(prev) })

	tests := []struct {
		name    string
		closer  *mockCloser
		wantLog bool
	}{
		{"successful close is silent", &mockCloser{}, false},
		{"close error is logged", &mockCloser{err: errors.New("close failed")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			closeWithLog(tt.closer, "feed item rows")
			if !tt.closer.closed {
				t.Error("closer was not closed")
			}
			logged := strings.Contains(buf.String(), "feed item rows")
			if logged != tt.wantLog {
				t.Errorf("logged = %v, want %v (%s)", logged, tt.wantLog, buf.String())
			}
		})
	}

	t.Run("nil closer", func(t *testing.T) {
		buf.Reset()
		closeWithLog(nil, "nothing")
		if buf.Len() > 0 {
			t.Errorf("unexpected log: %s", buf.String())
		}
	})
}

func TestCloseQuietly(t *testing.T) {
	closeQuietly(nil)

	c := &mockCloser{err: errors.New("close failed")}
	closeQuietly(c)
	if !c.closed {
		t.Error("closer was not closed")
	}
}
