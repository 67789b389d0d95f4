// Package docker provides Docker Engine API wrappers used by node-janitor
// to reclaim disk space on a CI build node.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Prune filter construction, including retention windows for images
//     and an optional protective label honoured by every prune call
//   - The cleanup sequence: stopped containers, then unused volumes, then
//     unused images older than the retention window
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
