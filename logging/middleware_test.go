package logging

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func captureLogger() (*slog.Logger, *strings.Builder) {
	var out strings.Builder
	logger := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelInfo}))
	return logger, &out
}

func withRequestID(req *http.Request, id any) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, id))
}

func TestLoggingMiddleware(t *testing.T) {
	logger, out := captureLogger()

	status := http.StatusOK
	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ok"))
	}))

	tests := []struct {
		name      string
		target    string
		requestID any
		status    int
		wantLog   bool
		contains  []string
		excludes  []string
	}{
		{"health is quiet", "/health", "r-1", http.StatusOK, false, nil, nil},
		{"metrics is quiet", "/metrics", "r-2", http.StatusOK, false, nil, nil},
		{"regular path", "/admin", "r-3", http.StatusOK, true, []string{"HTTP request", "path=/admin", "request_id=r-3", "status_code=200"}, nil},
		{"non string request id", "/login", 12345, http.StatusOK, true, []string{"request_id=unknown"}, nil},
		{"search fragment not logged", "/admin/search?q=paracetamol", "r-4", http.StatusOK, true, []string{"query_length=11"}, []string{"paracetamol"}},
		{"server errors at error level", "/admin", "r-5", http.StatusInternalServerError, true, []string{"level=ERROR", "status_code=500"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			status = tt.status

			req := withRequestID(httptest.NewRequest(http.MethodGet, tt.target, nil), tt.requestID)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, rr.Code)
			}

			logs := out.String()
			if !tt.wantLog {
				if logs != "" {
					t.Errorf("Expected no log line, got %s", logs)
				}
				return
			}
			for _, want := range tt.contains {
				if !strings.Contains(logs, want) {
					t.Errorf("Expected log to contain %q, got %s", want, logs)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(logs, unwanted) {
					t.Errorf("Expected log not to contain %q, got %s", unwanted, logs)
				}
			}
		})
	}
}

func TestResponseWriterWrapper(t *testing.T) {
	recorder := httptest.NewRecorder()
	wrapper := &responseWriterWrapper{}
	wrapper.reset(recorder)

	wrapper.WriteHeader(http.StatusNotFound)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, recorder.Code)
	}

	data := []byte("test data")
	n, err := wrapper.Write(data)
	if err != nil {
		t.Errorf("Write failed: %v", err)
	}
	if n != len(data) {
		t.Errorf("Expected to write %d bytes, wrote %d", len(data), n)
	}

	wrapper.WriteHeader(http.StatusInternalServerError)
	if wrapper.statusCode != http.StatusNotFound {
		t.Errorf("Status should stay %d after the first write, got %d", http.StatusNotFound, wrapper.statusCode)
	}

	if wrapper.bytesWritten != len(data) {
		t.Errorf("Expected bytesWritten %d, got %d", len(data), wrapper.bytesWritten)
	}

	wrapper.reset(httptest.NewRecorder())
	if wrapper.statusCode != http.StatusOK || wrapper.bytesWritten != 0 || wrapper.wroteHeader {
		t.Error("reset should clear the wrapper state")
	}
}
