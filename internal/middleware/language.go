package middleware

import (
	"net/http"
	"strings"

	"github.com/benvon/moviebox/internal/request"
	"github.com/benvon/moviebox/internal/validation"
)

// Language resolves the catalog language of a request: the "language" query
// parameter, then the first usable Accept-Language tag, then fallback.
// A malformed query parameter is rejected with 400; malformed header tags are skipped.
func Language(fallback string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := r.URL.Query().Get("language")
			if lang != "" {
				if err := validation.Validate.Var(lang, "language"); err != nil {
					respondErrorJSON(w, r, http.StatusBadRequest, "Bad Request", "language must be a language tag like en-US", nil)
					return
				}
			}
			if lang == "" {
				lang = acceptLanguage(r.Header.Get("Accept-Language"))
			}
			if lang == "" {
				lang = fallback
			}
			next.ServeHTTP(w, r.WithContext(request.WithLanguage(r.Context(), lang)))
		})
	}
}

// acceptLanguage returns the first tag of an Accept-Language header in "xx" or
// "xx-YY" form, normalizing case. Wildcards and malformed tags are skipped.
func acceptLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		base, region, hasRegion := strings.Cut(strings.TrimSpace(tag), "-")
		tag = strings.ToLower(base)
		if hasRegion {
			tag += "-" + strings.ToUpper(region)
		}
		if validation.IsLanguageTag(tag) {
			return tag
		}
	}
	return ""
}
