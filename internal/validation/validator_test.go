// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package validation

import (
	"strings"
	"testing"
)

type interactionRequest struct {
	UserID string `json:"user_id" validate:"omitempty,userid"`
	Type   string `json:"type" validate:"required,interaction"`
}

type generateRequest struct {
	Categories []string `json:"categories" validate:"max=3,dive,category"`
	Limit      int      `json:"limit" validate:"gte=0,lte=100"`
}

func TestGetValidator_Singleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same instance")
	}
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		input     interface{}
		wantField string
		wantTag   string
	}{
		{"valid interaction", &interactionRequest{Type: "liked"}, "", ""},
		{"short interaction name", &interactionRequest{Type: "dismiss"}, "", ""},
		{"missing type", &interactionRequest{}, "type", "required"},
		{"unknown interaction", &interactionRequest{Type: "bookmarked"}, "type", "interaction"},
		{"bad user id", &interactionRequest{UserID: "a b", Type: "viewed"}, "user_id", "userid"},
		{"valid categories", &generateRequest{Categories: []string{"fantasy", "sci-fi"}}, "", ""},
		{"blank category", &generateRequest{Categories: []string{" "}}, "categories[0]", "category"},
		{"too many categories", &generateRequest{Categories: []string{"a", "b", "c", "d"}}, "categories", "max"},
		{"limit too high", &generateRequest{Limit: 101}, "limit", "lte"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(tt.input)
			if tt.wantTag == "" {
				if verr != nil {
					t.Fatalf("unexpected error: %v", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("expected validation error")
			}
			got := verr.Errors()[0]
			if got.Field() != tt.wantField || got.Tag() != tt.wantTag {
				t.Errorf("got field %q tag %q, want %q %q", got.Field(), got.Tag(), tt.wantField, tt.wantTag)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		apiErr := ValidateStruct(&interactionRequest{Type: "nope"}).ToAPIError()
		if apiErr.Code != ErrorCode {
			t.Errorf("code = %q", apiErr.Code)
		}
		if apiErr.Details["field"] != "type" {
			t.Errorf("details = %v", apiErr.Details)
		}
		if !strings.Contains(apiErr.Message, "dismissed") {
			t.Errorf("message = %q", apiErr.Message)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		verr := ValidateStruct(&interactionRequest{UserID: "x/y"})
		if verr == nil || len(verr.Errors()) != 2 {
			t.Fatalf("expected two errors, got %v", verr)
		}
		apiErr := verr.ToAPIError()
		fields, ok := apiErr.Details["fields"].([]map[string]interface{})
		if !ok || len(fields) != 2 {
			t.Fatalf("details = %v", apiErr.Details)
		}
		if !strings.Contains(apiErr.Message, "user_id:") || !strings.Contains(apiErr.Message, "type:") {
			t.Errorf("message = %q", apiErr.Message)
		}
	})

	t.Run("empty", func(t *testing.T) {
		apiErr := (&RequestValidationError{}).ToAPIError()
		if apiErr.Message != "Validation failed" {
			t.Errorf("message = %q", apiErr.Message)
		}
	})
}
