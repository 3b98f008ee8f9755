// Package misleading classifies a post and its proposed note into a fixed
// vocabulary of misleading-content tags.
//
// The Classifier delegates judgement to a language model and treats its
// reply as untrusted input: the reply must decode as JSON, only tags from
// the allowed vocabulary survive, and duplicates collapse to their first
// occurrence. Transport and parse failures are retried up to the configured
// budget, after which classification degrades to an empty result rather than
// an error. Callers never need to handle model misbehaviour.
package misleading
