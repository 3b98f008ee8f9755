// Package llm provides a blocking Anthropic Messages client used by the
// misleading-tag classifier and for best-effort image description.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send a role-tagged conversation, receive the first text block.
// Client.Prompt: single user turn convenience around Complete.
// Client.DescribeImage: vision request; returns "" on any failure.
// Client.HealthCheck: verify API key and model availability.
//
// # Errors
//
// Network failures, timeouts (default 60s), API error envelopes and non-2xx
// statuses wrap services.ErrTransport; a non-success status also carries a
// *StatusError. Responses that cannot be decoded or carry no text block wrap
// services.ErrMalformedResponse. A missing API key wraps
// services.ErrConfiguration.
//
// # Retry Behaviour
//
// The client never retries. Each call is exactly one outbound request; the
// classifier owns the retry budget.
//
// DecodeLLMJSON tolerates code fences and prose around a JSON object, which
// models emit even when asked for JSON only.
package llm
