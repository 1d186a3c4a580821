// Package moderation masks censored words in outbound messages before they
// are persisted or pushed. Word lists are embedded per language.
package moderation

import "embed"

//go:embed censored/*
var censoredFolder embed.FS

// DefaultWordLists exposes the embedded per-language dictionaries.
func DefaultWordLists() embed.FS {
	return censoredFolder
}
