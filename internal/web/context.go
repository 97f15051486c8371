package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/salesimport/internal/core"
)

// WithRequestMetadata records the submitting client on ctx for the run
// history. RemoteAddr has already been rewritten by TrustedRealIP.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.WithClient(ctx, core.Client{
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
}
