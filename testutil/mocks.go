package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockAttendanceServer creates a test server that mocks attendance API responses
type MockAttendanceServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockAttendanceServer creates a new mock attendance API server
func NewMockAttendanceServer(t *testing.T) *MockAttendanceServer {
	t.Helper()
	m := &MockAttendanceServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockAttendanceResponse adds a handler for the /attendance endpoint
func (m *MockAttendanceServer) MockAttendanceResponse(report map[string]interface{}) {
	m.Handlers["/attendance"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report) //nolint:errcheck // test mock response
	}
}

// MockAttendanceError makes the /attendance endpoint fail with the given status
func (m *MockAttendanceServer) MockAttendanceError(status int) {
	m.Handlers["/attendance"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}
}

// MockSkipResponse adds a handler for the /skip endpoint
func (m *MockAttendanceServer) MockSkipResponse(result map[string]interface{}) {
	m.Handlers["/skip"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result) //nolint:errcheck // test mock response
	}
}

// MockSkipError makes the /skip endpoint fail with the given status
func (m *MockAttendanceServer) MockSkipError(status int) {
	m.Handlers["/skip"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}
}
