// Package main hosts the notewriter CLI entrypoint and command graph.
//
// The Cobra-based command tree exposes misleading-tag classification for a
// single post, JSONL batch runs backed by the results store, image
// description, stored result inspection, and configuration scaffolding. It
// centralizes configuration resolution and logging setup so subcommands can
// focus on presentation.
//
// Keep this package lean: new behaviour belongs in the internal packages
// first and is surfaced here through commands or flags.
package main
