package util

import (
	"fmt"
	"net"
)

// ValidateListenAddress checks that addr is a host:port pair with a usable
// port.
func ValidateListenAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return fmt.Errorf("invalid listen address %s: %w", addr, err)
	}

	return nil
}

// HasDuplicateKeys reports the first string that appears twice in keys.
func HasDuplicateKeys(keys []string) (bool, string) {
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, exists := seen[k]; exists {
			return true, k
		}
		seen[k] = struct{}{}
	}

	return false, ""
}
