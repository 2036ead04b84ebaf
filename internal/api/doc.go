// Package api handles incoming HTTP requests, request validation and
// response formatting. It adapts the analysis service to the JSON API used
// by the browser front-end and the CLI client:
//
//	POST /api/predict_url       submit a post URL, returns a task ID (202)
//	GET  /api/result/{task_id}  poll a task
//	POST /api/predict_text      classify text synchronously
//	GET  /api/health            liveness
//
// Errors are translated to status codes by MapErrorToStatusCode and to
// client-safe messages by GetSafeErrorMessage; raw errors are only logged,
// after redaction.
package api
