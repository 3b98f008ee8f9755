// Package services defines shared utilities consumed by the classifier, the
// batch runner and the external LLM integration.
//
// Key responsibilities:
//   - Context helpers that stamp post IDs, run IDs, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that let callers decide
//     whether a failure is retryable (transport, malformed response) or a
//     setup defect (configuration).
//
// Use these helpers when wiring new integrations so operational behaviour
// (error handling, observability, retries) stays uniform across the tool.
package services
