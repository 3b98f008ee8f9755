// Package config loads, normalizes, and validates notewriter configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ANTHROPIC_API_KEY, CLAUDE_MODEL_ID, CLAUDE_VISION_ID and
// DISABLE_MISLEADING_TAGS. The Config type is built once at start-up and
// passed by pointer into the LLM client and the classifier so neither reads
// the environment on its own.
//
// Always obtain settings through this package so downstream code receives
// sanitized values, canonical log formats, and clear validation errors.
package config
