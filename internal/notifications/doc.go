// Package notifications delivers batch run alerts through ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers can notify unconditionally. Delivery failures are returned to the
// caller, who decides whether they matter; the batch command only logs them.
package notifications
