package i18n

import (
	"net/http"
)

// localeForRequest resolves the request locale. An explicit lang query
// parameter wins over the Accept-Language header.
func localeForRequest(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return ParseAcceptLanguage(lang)
	}
	return ParseAcceptLanguage(r.Header.Get("Accept-Language"))
}

// Middleware resolves the request locale and stores it in the context
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithLocale(r.Context(), localeForRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MiddlewareFunc is the same as Middleware but wraps a HandlerFunc
func MiddlewareFunc(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := WithLocale(r.Context(), localeForRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}
