// Package ciutil detects CI environments and resolves the connection
// settings that database-backed tests use.
package ciutil
