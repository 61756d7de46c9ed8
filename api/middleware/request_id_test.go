package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/brewline/brewline-backend/api/responses"
	pkgerrors "github.com/brewline/brewline-backend/pkg/errors"
	"github.com/brewline/brewline-backend/pkg/logger"
	"github.com/brewline/brewline-backend/pkg/types"
)

func TestRequestIDEchoesValidHeader(t *testing.T) {
	h := RequestID(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders/1", nil)
	req.Header.Set(types.RequestIDHeader, "web-checkout.42")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	if got := resp.Header().Get(types.RequestIDHeader); got != "web-checkout.42" {
		t.Fatalf("expected echoed id, got %q", got)
	}
}

func TestRequestIDReplacesUnsafeHeader(t *testing.T) {
	h := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for _, raw := range []string{"", "has space", "line\nbreak", strings.Repeat("a", maxRequestIDLen+1)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(types.RequestIDHeader, raw)
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, req)
		got := resp.Header().Get(types.RequestIDHeader)
		if _, err := uuid.Parse(got); err != nil {
			t.Fatalf("expected minted uuid for %q, got %q", raw, got)
		}
	}
}

func TestRequestIDReachesErrorBody(t *testing.T) {
	h := RequestID(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "order 9 not found"))
	}))
	req := httptest.NewRequest(http.MethodGet, "/orders/9", nil)
	req.Header.Set(types.RequestIDHeader, "req-9")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	if !strings.Contains(resp.Body.String(), `"requestId":"req-9"`) {
		t.Fatalf("expected request id in body, got %s", resp.Body.String())
	}
}
