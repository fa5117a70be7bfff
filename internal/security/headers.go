package security

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Headers configures security headers for HTTP responses.
type Headers struct {
	// FormActions lists the origins a rendered page may post forms to, in
	// addition to the page's own origin.
	FormActions           []string
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
}

// Origin reduces rawURL to scheme://host for use in a policy.
func Origin(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func (h Headers) contentSecurityPolicy() string {
	actions := []string{"'self'"}
	for _, a := range h.FormActions {
		if origin := Origin(a); origin != "" {
			actions = append(actions, origin)
		}
	}
	return "frame-ancestors 'none'; form-action " + strings.Join(actions, " ")
}

// Middleware attaches standard security headers to each response.
func (h Headers) Middleware(next http.Handler) http.Handler {
	csp := h.contentSecurityPolicy()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "no-referrer")
		headers.Set("Content-Security-Policy", csp)
		if h.EnableHSTS && r.TLS != nil {
			maxAge := h.HSTSMaxAge
			if maxAge <= 0 {
				maxAge = 31536000
			}
			value := "max-age=" + strconv.Itoa(maxAge)
			if h.HSTSIncludeSubdomains {
				value += "; includeSubDomains"
			}
			headers.Set("Strict-Transport-Security", value)
		}
		next.ServeHTTP(w, r)
	})
}
