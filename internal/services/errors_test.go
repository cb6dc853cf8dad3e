package services

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapIncludesMarkerAndDetail(t *testing.T) {
	base := errors.New("connection refused")
	err := Wrap(ErrTransient, "scan", "detect", "sidecar call failed", base)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped base error, got %v", err)
	}
	for _, fragment := range []string{"scan", "detect", "sidecar call failed"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("error %q missing fragment %q", err.Error(), fragment)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := Wrap(nil, "", "", "", nil)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("nil marker should default to transient: %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		marker error
		want   bool
	}{
		{ErrTransient, true},
		{ErrExternalTool, true},
		{ErrTimeout, true},
		{ErrValidation, false},
		{ErrConfiguration, false},
		{ErrNotFound, false},
	}
	for _, tc := range cases {
		err := Wrap(tc.marker, "scan", "", "", nil)
		if got := Retryable(err); got != tc.want {
			t.Errorf("Retryable(%v) = %v, want %v", tc.marker, got, tc.want)
		}
	}
}
