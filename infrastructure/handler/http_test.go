package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/felixgeelhaar/toolhost/domain/tool"
)

func TestHTTP_Call(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/add":
			var in struct{ A, B int }
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if r.Header.Get("X-Token") != "abc" {
				http.Error(w, "missing token", http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]int{"sum": in.A + in.B})
		case "/lookup":
			_, _ = w.Write([]byte(r.Method + " " + r.URL.Query().Get("host")))
		case "/empty":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	tests := []struct {
		name    string
		cfg     HTTPConfig
		args    tool.Arguments
		want    any
		wantErr error
	}{
		{
			name: "json post",
			cfg:  HTTPConfig{URL: srv.URL + "/add", Headers: map[string]string{"X-Token": "abc"}},
			args: tool.Arguments{"a": int64(5), "b": int64(7)},
			want: map[string]any{"sum": float64(12)},
		},
		{
			name: "get with query",
			cfg:  HTTPConfig{URL: srv.URL + "/lookup", Method: "get"},
			args: tool.Arguments{"host": "r1"},
			want: "GET r1",
		},
		{
			name: "no content",
			cfg:  HTTPConfig{URL: srv.URL + "/empty"},
			want: nil,
		},
		{
			name:    "client error",
			cfg:     HTTPConfig{URL: srv.URL + "/add"},
			args:    tool.Arguments{"a": int64(1), "b": int64(1)},
			wantErr: ErrRemoteStatus,
		},
		{
			name:    "not found",
			cfg:     HTTPConfig{URL: srv.URL + "/missing"},
			wantErr: ErrRemoteStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, err := NewHTTP(tt.cfg, srv.Client(), nil)
			if err != nil {
				t.Fatalf("NewHTTP() error = %v", err)
			}
			got, err := h.Call(context.Background(), tt.args)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Call() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Call() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Call() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestHTTP_RetriesIdempotentServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`"ok"`))
	}))
	t.Cleanup(srv.Close)

	h, _ := NewHTTP(HTTPConfig{URL: srv.URL, Idempotent: true, Retries: 3}, srv.Client(), nil)
	got, err := h.Call(context.Background(), nil)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != "ok" || calls.Load() != 3 {
		t.Errorf("Call() = %v after %d calls", got, calls.Load())
	}
}

func TestHTTP_NoRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		idempotent bool
	}{
		{"non-idempotent server error", http.StatusInternalServerError, false},
		{"idempotent client error", http.StatusBadRequest, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			t.Cleanup(srv.Close)

			h, _ := NewHTTP(HTTPConfig{URL: srv.URL, Idempotent: tt.idempotent, Retries: 3}, srv.Client(), nil)
			if _, err := h.Call(context.Background(), nil); !errors.Is(err, ErrRemoteStatus) {
				t.Fatalf("Call() error = %v", err)
			}
			if calls.Load() != 1 {
				t.Errorf("endpoint called %d times, want 1", calls.Load())
			}
		})
	}
}

func TestNewHTTP_Validation(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "not a url"} {
		if _, err := NewHTTP(HTTPConfig{URL: raw}, nil, nil); !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("NewHTTP(%q) error = %v, want ErrInvalidSpec", raw, err)
		}
	}
}
