// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package database

import (
	"context"
	"testing"

	"github.com/tomtom215/personafeed/internal/config"
)

// testDBSemaphore serializes DuckDB use across tests. It is held for the
// whole test because concurrent CGO calls from several connections can hang
// under CI resource pressure.
var testDBSemaphore = make(chan struct{}, 1)

// setupTestDB creates a new in-memory database that is closed when the test ends.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	db, err := New(&config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "512MB",
		Threads:   2,
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}

func TestNew_CreatesSchema(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	counts, err := db.RecordCounts(ctx)
	if err != nil {
		t.Fatalf("RecordCounts() error = %v", err)
	}
	for table, n := range counts {
		if n != 0 {
			t.Errorf("%s has %d rows in a fresh database", table, n)
		}
	}
}

func TestSeedMockData_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.SeedMockData(ctx); err != nil {
		t.Fatalf("SeedMockData() error = %v", err)
	}
	first, err := db.RecordCounts(ctx)
	if err != nil {
		t.Fatalf("RecordCounts() error = %v", err)
	}
	if first["personas"] != 40 {
		t.Errorf("seeded %d personas, want 40", first["personas"])
	}

	if err := db.SeedMockData(ctx); err != nil {
		t.Fatalf("second SeedMockData() error = %v", err)
	}
	second, _ := db.RecordCounts(ctx)
	if second["personas"] != first["personas"] {
		t.Errorf("second seed changed persona count from %d to %d", first["personas"], second["personas"])
	}
}

func TestIsTransactionConflict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		msg  string
		want bool
	}{
		{"TransactionContext Error: Transaction conflict: cannot update", true},
		{"Conflict on update", true},
		{"Binder Error: column not found", false},
	}
	for _, tt := range tests {
		if got := isTransactionConflict(errString(tt.msg)); got != tt.want {
			t.Errorf("isTransactionConflict(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
	if isTransactionConflict(nil) {
		t.Error("isTransactionConflict(nil) = true")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
