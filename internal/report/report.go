// Package report builds public links to generated suite reports.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Linker derives a stable report URL for a suite from the public report root.
type Linker struct {
	PublicURL string
}

// LinkFor returns PublicURL/<sha256(suite)>.html, or "" when no public URL is configured.
func (l Linker) LinkFor(suite string) string {
	if l.PublicURL == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(suite))
	return strings.TrimRight(l.PublicURL, "/") + "/" + hex.EncodeToString(sum[:]) + ".html"
}
