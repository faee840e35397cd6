// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package validation

import (
	"errors"
	"strings"
	"testing"
)

type sample struct {
	Name string `validate:"required"`
	Days int    `validate:"omitempty,min=1,max=90"`
	Mode string `validate:"omitempty,oneof=hour day week"`
}

func TestStructPasses(t *testing.T) {
	if err := Struct(&sample{Name: "weekly", Days: 7, Mode: "week"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStructZeroOptionalFieldsPass(t *testing.T) {
	if err := Struct(&sample{Name: "weekly"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStructCollectsAllViolations(t *testing.T) {
	err := Struct(&sample{Days: 200, Mode: "fortnight"})
	if err == nil {
		t.Fatal("expected error")
	}

	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T", err)
	}
	if len(verr.Fields) != 3 {
		t.Fatalf("violations = %d, want 3", len(verr.Fields))
	}

	msg := err.Error()
	for _, want := range []string{"Name is required", "Days must be at most 90", "Mode must be one of"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}
