package core

import "context"

// Client identifies who submitted a run. It is recorded in the run history.
type Client struct {
	IPAddress string
	UserAgent string
}

type clientKey struct{}

// WithClient attaches the submitting client to ctx.
func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

// ClientFromContext returns the client stored by WithClient, or the zero
// Client for runs started outside HTTP.
func ClientFromContext(ctx context.Context) Client {
	c, _ := ctx.Value(clientKey{}).(Client)
	return c
}
