// Package media downloads post media, decodes it into an image, and renders
// it as an inline data URL for the analysis result.
package media
