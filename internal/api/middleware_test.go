package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alphabot-ai/threadfeed/internal/logging"
	"github.com/sirupsen/logrus"
)

func bufferLogger() (*logrus.Entry, *bytes.Buffer) {
	var buf bytes.Buffer
	return logrus.NewEntry(logging.NewWithOutput(&buf, "info", "text")), &buf
}

func TestLogRequests(t *testing.T) {
	log, buf := bufferLogger()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	logged := LogRequests(log)(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/discussions", nil)
	rec := httptest.NewRecorder()
	logged.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}

	logOutput := buf.String()
	if !strings.Contains(logOutput, "method=GET") {
		t.Error("log should contain HTTP method")
	}
	if !strings.Contains(logOutput, "path=/api/discussions") {
		t.Error("log should contain request path")
	}
	if !strings.Contains(logOutput, "status=418") {
		t.Errorf("log should contain status, got %q", logOutput)
	}
}

func TestLogRequestsDifferentMethods(t *testing.T) {
	methods := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
	}

	for _, method := range methods {
		t.Run(method, func(t *testing.T) {
			log, buf := bufferLogger()

			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			logged := LogRequests(log)(handler)
			req := httptest.NewRequest(method, "/test", nil)
			rec := httptest.NewRecorder()

			logged.ServeHTTP(rec, req)

			if !strings.Contains(buf.String(), "method="+method) {
				t.Errorf("log should contain method %s", method)
			}
		})
	}
}

func TestRecover(t *testing.T) {
	log, buf := bufferLogger()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	rec := httptest.NewRecorder()
	Recover(log)(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/explode", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(buf.String(), "handler panic") {
		t.Error("panic should be logged")
	}
}
