// Package requestctx carries per-request identity through context.
package requestctx

import (
	"context"
	"net/http"
	"strings"
)

// AccountHeader carries the tradesperson account identity set by the gateway.
const AccountHeader = "X-Tradebook-Account"

// accountIDContextKey is the context key for the acting account.
type accountIDContextKey struct{}

// WithAccountID stores an account identifier in context.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, accountIDContextKey{}, strings.TrimSpace(accountID))
}

// AccountIDFromContext returns the account identifier stored in context.
func AccountIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(accountIDContextKey{}).(string)
	return value
}

// AccountIDFromRequest reads the account header from r.
func AccountIDFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.Header.Get(AccountHeader))
}
