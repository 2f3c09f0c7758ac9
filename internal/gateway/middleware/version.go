package middleware

import (
	"net/http"
	"time"
)

// VersionConfig configures API version headers.
type VersionConfig struct {
	// CurrentVersion is the current API version.
	CurrentVersion string
	// DeprecatedVersions maps deprecated versions to their sunset dates.
	DeprecatedVersions map[string]time.Time
	// DefaultVersion is assumed when the client sends none.
	DefaultVersion string
}

// DefaultVersionConfig returns the default version configuration.
func DefaultVersionConfig() VersionConfig {
	return VersionConfig{
		CurrentVersion:     "1",
		DeprecatedVersions: make(map[string]time.Time),
		DefaultVersion:     "1",
	}
}

// Version returns middleware that reads the Accept-Version header and
// answers with API-Version plus RFC 8594 deprecation headers.
func Version(config VersionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			version := r.Header.Get("Accept-Version")
			if version == "" {
				version = config.DefaultVersion
			}

			w.Header().Set("API-Version", version)

			if sunsetDate, deprecated := config.DeprecatedVersions[version]; deprecated {
				w.Header().Set("Deprecation", "true")
				w.Header().Set("Sunset", sunsetDate.Format(http.TimeFormat))
			}

			next.ServeHTTP(w, r)
		})
	}
}
