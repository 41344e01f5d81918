package main

import (
	"path/filepath"
	"strings"
)

// documentID derives a library id from a file name: "library/support.yaml" -> "support".
func documentID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
