// Package id generates short random identifiers.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// tempAlphabet avoids '-' and '_' so temp names never look like sequenced media names.
const tempAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Generate creates a prefixed unique ID using NanoID
// Format: prefix-nanoid (e.g., "scan-V1StGXR8_Z5jdHi6B-myT")
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// TempName returns a hidden file name for staging writes, e.g. ".tmp.k3j9x0q1m2n4b5v6".
func TempName() (string, error) {
	s, err := gonanoid.Generate(tempAlphabet, 16)
	if err != nil {
		return "", fmt.Errorf("generate temp name: %w", err)
	}
	return ".tmp." + s, nil
}
