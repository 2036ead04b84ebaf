// Package domain contains the core entities of emotion analysis: ranked
// predictions, assembled results and the error taxonomy shared by the
// task pipeline, the service layer and the HTTP API. It has no dependencies
// on infrastructure or delivery mechanisms.
package domain
