package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func TestPeerHost_IgnoresForwardedHeaders(t *testing.T) {
	var peer, remote string
	r := chi.NewRouter()
	r.Use(PeerAddr)
	r.Use(chimw.RealIP)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		peer = PeerHost(r)
		remote = r.RemoteAddr
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.20:51234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if remote != "203.0.113.9" {
		t.Fatalf("RealIP did not rewrite RemoteAddr: %q", remote)
	}
	if peer != "192.168.1.20" {
		t.Errorf("PeerHost = %q, want 192.168.1.20", peer)
	}
}

func TestPeerHost_WithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:4000"
	if got := PeerHost(req); got != "10.0.0.5" {
		t.Errorf("PeerHost = %q", got)
	}

	req.RemoteAddr = "pipe"
	if got := PeerHost(req); got != "pipe" {
		t.Errorf("PeerHost = %q", got)
	}
}
