package cli

import "github.com/dustin/go-humanize"

// formatBytes renders a byte count in SI units ("1.2 GB"), matching the
// units the Docker CLI reports for reclaimed space.
func formatBytes(n uint64) string {
	return humanize.Bytes(n)
}
