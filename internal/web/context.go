package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/certgen/internal/core"
	mw "github.com/JonMunkholm/certgen/internal/web/middleware"
)

// requestContext carries the caller's address and user agent into the
// service for audit entries.
func requestContext(r *http.Request) context.Context {
	return core.WithClient(r.Context(), mw.ClientIP(r), r.UserAgent())
}
