// Package instance names the running process for logs and lock ownership.
package instance

import (
	"os"
	"strings"
)

// ID returns the first non-empty of CURATEDLY_INSTANCE_ID, DYNO and the
// hostname, falling back to "<service>-0".
func ID(service string) string {
	for _, key := range []string{"CURATEDLY_INSTANCE_ID", "DYNO"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return service + "-0"
}
