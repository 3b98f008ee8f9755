// Package posts models the social-media items under review and the inputs
// that travel with them into classification.
//
// ReadJSONL parses batch input files (one post per line with its proposed
// note). SummarizeImages turns attached image URLs into the plain-text
// images summary the classifier embeds in its prompt.
package posts
