// Package instance names the running process for logs and lock ownership.
package instance

import (
	"os"

	"github.com/angelmondragon/storefront-backend/pkg/env"
)

const fallbackID = "storefront-0"

// ID returns STOREFRONT_INSTANCE_ID or HOSTNAME, then os.Hostname, then a fixed fallback.
func ID() string {
	if id := env.First("", "STOREFRONT_INSTANCE_ID", "HOSTNAME"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
