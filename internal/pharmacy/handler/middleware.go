package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/agricare/agricare-backend/pkg/errors"
	"github.com/agricare/agricare-backend/pkg/httputil"
	"github.com/agricare/agricare-backend/pkg/permissions"
)

// UserContext lifts the gateway identity headers into the request context.
// The gateway authenticates; this service only consumes the result.
func UserContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := httputil.WithUserContext(r.Context(),
			r.Header.Get("X-User-ID"),
			r.Header.Get("X-User-Email"),
			r.Header.Get("X-User-Role"),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userPermissions parses the comma-separated X-User-Permissions header
func userPermissions(r *http.Request) []string {
	header := r.Header.Get("X-User-Permissions")
	if header == "" {
		return nil
	}

	parts := strings.Split(header, ",")
	perms := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			perms = append(perms, p)
		}
	}
	return perms
}

// requirePermission checks the request's permissions for one permission
func requirePermission(r *http.Request, required string) error {
	if !permissions.HasPermission(userPermissions(r), required) {
		return errors.Forbidden("missing permission: " + required)
	}
	return nil
}

// pagination parses page/per_page query parameters into limit and offset
type pagination struct {
	Page    int
	PerPage int
}

func (p pagination) Limit() int  { return p.PerPage }
func (p pagination) Offset() int { return (p.Page - 1) * p.PerPage }

func (p pagination) Meta(total int64) *httputil.Meta {
	return httputil.NewMeta(p.Page, p.PerPage, total)
}

func parsePagination(r *http.Request, defaultPerPage, maxPerPage int) pagination {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > maxPerPage {
		perPage = defaultPerPage
	}

	return pagination{Page: page, PerPage: perPage}
}
