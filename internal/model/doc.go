// Package model defines the domain types and value objects for the
// node-janitor daemon.
//
// This package contains pure data structures with no external dependencies.
// UsageReport, PruneReport and CycleResult describe what a single monitoring
// cycle observed and did; they flow from the disk, docker and workspace
// packages into the monitor loop, and from there into metrics and history.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
// Because the daemon runs as PID 1 of its container, the exit code is the
// container's exit code.
package model
