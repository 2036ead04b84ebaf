package ciutil

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/phrazzld/emoscope/internal/redact"
)

// Connection defaults of the CI Postgres service.
const (
	StandardCIUser     = "postgres"
	StandardCIPassword = "postgres"
	StandardCIPort     = "5432"
	StandardCIDatabase = "emoscope_test"
	StandardCIOptions  = "sslmode=disable"
)

// GetTestDatabaseURL returns the database URL for integration tests, read
// from EMOSCOPE_TEST_DATABASE_URL with DATABASE_URL as fallback. It returns
// "" when neither is set. In CI the URL is rewritten to the standard
// service credentials.
func GetTestDatabaseURL(logger *slog.Logger) string {
	dbURL := GetEnvWithFallbacks([]string{EnvTestDatabaseURL, EnvDatabaseURL}, "", logger)
	if dbURL == "" || !IsCI() {
		return dbURL
	}

	standardized, err := StandardizeDatabaseURL(dbURL)
	if err != nil {
		if logger != nil {
			logger.Error("Failed to standardize database URL",
				"error", err,
				"original_url", redact.URL(dbURL))
		}
		return dbURL
	}
	return standardized
}

// StandardizeDatabaseURL rewrites a postgres URL to the CI service
// credentials, filling in the port, database name and options when the URL
// leaves them out. Other schemes are returned unchanged.
func StandardizeDatabaseURL(dbURL string) (string, error) {
	parsed, err := url.Parse(dbURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse database URL: %w", err)
	}
	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return dbURL, nil
	}

	std := *parsed
	std.User = url.UserPassword(StandardCIUser, StandardCIPassword)

	host := parsed.Hostname()
	if parsed.Port() == "" && (host == "" || host == "localhost" || host == "127.0.0.1") {
		if host == "" {
			host = "localhost"
		}
		std.Host = host + ":" + StandardCIPort
	}
	if strings.TrimPrefix(parsed.Path, "/") == "" {
		std.Path = "/" + StandardCIDatabase
	}
	if parsed.RawQuery == "" {
		std.RawQuery = StandardCIOptions
	}

	return std.String(), nil
}
