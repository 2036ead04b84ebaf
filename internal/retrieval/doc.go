// Package retrieval extracts caption text and media references from social
// media post URLs. It is the content-retrieval boundary of the analysis
// pipeline; the OpenGraph implementation reads public page metadata.
package retrieval
