package middleware

import (
	"context"
	"net"
	"net/http"
)

type peerAddrKey struct{}

// PeerAddr records the connection's RemoteAddr before any proxy-header
// middleware rewrites it. It must be installed ahead of chi's RealIP.
func PeerAddr(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), peerAddrKey{}, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PeerHost returns the host of the TCP peer recorded by PeerAddr, or of
// r.RemoteAddr when PeerAddr did not run. Client-supplied headers such as
// X-Forwarded-For never affect it.
func PeerHost(r *http.Request) string {
	addr, ok := r.Context().Value(peerAddrKey{}).(string)
	if !ok {
		addr = r.RemoteAddr
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
