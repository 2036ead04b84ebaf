// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, files). It provides type-safe
// access to the settings of the HTTP server, the task runner, the registry
// backend, content retrieval, media fetching and the classifiers.
package config
