package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSON_EncodeFailureKeepsCommittedStatus(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	// A channel value cannot be marshalled, forcing the encode error path.
	writeJSON(rec, http.StatusOK, map[string]any{"bad": make(chan int)})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want the already-committed 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "encoding failure") {
		t.Errorf("no error body may be appended after the status line: %q", rec.Body)
	}
}
