// Package env reads the few settings needed before config.Load runs, such as
// the log format used while configuration errors are reported.
package env

import (
	"os"
	"strings"
)

// Prefix namespaces Brewline settings, matching config.EnvPrefix.
const Prefix = "BREWLINE_"

// Get returns BREWLINE_<key>, then the bare key, then fallback. Blank values
// count as unset.
func Get(key, fallback string) string {
	for _, name := range []string{Prefix + key, key} {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val
		}
	}
	return fallback
}
