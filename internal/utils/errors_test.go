package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

// =============================================================================
// Error Taxonomy Tests
// =============================================================================

// TestErrorFormat verifies errors render as "source: message"
func TestErrorFormat(t *testing.T) {
	err := ErrParse("parse_timezone", "Could not get offset")
	if err.Error() != "parse_timezone: Could not get offset" {
		t.Errorf("unexpected error string: %q", err.Error())
	}
}

// TestErrorStatusCode verifies only missing parameters map to a client error
func TestErrorStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing parameter", ErrMissingParameter("token"), http.StatusBadRequest},
		{"parse", ErrParse("time", "bad"), http.StatusInternalServerError},
		{"decode", ErrDecode("todoist", errors.New("eof")), http.StatusInternalServerError},
		{"persistence", ErrPersistence("sqlite", errors.New("locked")), http.StatusInternalServerError},
		{"transport", ErrTransport("todoist", "GET", "/x", "{}", "nope", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e *Error
			if !errors.As(tt.err, &e) {
				t.Fatalf("expected *Error, got %T", tt.err)
			}
			if got := e.StatusCode(); got != tt.want {
				t.Errorf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestIsKindThroughWrapping verifies kind detection survives fmt.Errorf wrapping
func TestIsKindThroughWrapping(t *testing.T) {
	base := ErrPersistence("sqlite", errors.New("disk full"))
	wrapped := fmt.Errorf("saving entry: %w", base)

	if !IsKind(wrapped, KindPersistence) {
		t.Error("IsKind should find persistence error through wrapping")
	}
	if IsKind(wrapped, KindDecode) {
		t.Error("IsKind should not match a different kind")
	}
	if IsKind(errors.New("plain"), KindPersistence) {
		t.Error("IsKind should be false for untagged errors")
	}
}

// TestUnwrap verifies the cause is reachable with errors.Is
func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := ErrTransport("todoist", "POST", "/sync/v9/sync", "{}", "", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the transport cause")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("transport error without response should include cause, got %q", err.Error())
	}
}

// TestTransportErrorIncludesResponse verifies response bodies are kept for diagnostics
func TestTransportErrorIncludesResponse(t *testing.T) {
	err := ErrTransport("todoist", "GET", "/rest/v2/tasks", "{}", `{"error":"Forbidden"}`, nil)
	if !strings.Contains(err.Error(), `{"error":"Forbidden"}`) {
		t.Errorf("expected response body in message, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "method: GET") {
		t.Errorf("expected method in message, got %q", err.Error())
	}
}

// TestMissingParameterMessage verifies the field name is reported
func TestMissingParameterMessage(t *testing.T) {
	err := ErrMissingParameter("filter")
	if !strings.Contains(err.Error(), "Missing query parameter: filter") {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if !IsKind(err, KindMissingParameter) {
		t.Error("expected KindMissingParameter")
	}
}
