package model

import (
	"fmt"
	"strings"
	"time"
)

// Resource identifies a class of Docker objects reclaimed by a prune call.
type Resource string

const (
	// ResourceContainers covers stopped containers.
	ResourceContainers Resource = "containers"

	// ResourceVolumes covers volumes not referenced by any container.
	ResourceVolumes Resource = "volumes"

	// ResourceImages covers dangling and unused images older than the
	// configured retention window.
	ResourceImages Resource = "images"
)

// String returns the string representation of Resource.
func (r Resource) String() string {
	return string(r)
}

// CycleAction records what a monitoring cycle decided to do.
//
//	none    → no filesystem reached the threshold
//	cleaned → the node was taken offline and cleanup ran
//	skipped → a filesystem was critical but the node could not be drained
type CycleAction string

const (
	// ActionNone indicates every checked path was below its threshold.
	ActionNone CycleAction = "none"

	// ActionCleaned indicates cleanup operations were executed.
	ActionCleaned CycleAction = "cleaned"

	// ActionSkipped indicates cleanup was required but not performed,
	// typically because the CI node was busy running a build.
	ActionSkipped CycleAction = "skipped"
)

// String returns the string representation of CycleAction.
func (a CycleAction) String() string {
	return string(a)
}

// IsValid checks whether the CycleAction value is one of the
// predefined valid actions.
func (a CycleAction) IsValid() bool {
	switch a {
	case ActionNone, ActionCleaned, ActionSkipped:
		return true
	default:
		return false
	}
}

// ParseCycleAction converts a string to a CycleAction.
// Returns an error if the string does not match any valid action.
func ParseCycleAction(s string) (CycleAction, error) {
	action := CycleAction(strings.ToLower(s))
	if !action.IsValid() {
		return "", fmt.Errorf("invalid cycle action: %q (valid: none, cleaned, skipped)", s)
	}
	return action, nil
}

// UsageReport is a point-in-time measurement of a single filesystem.
type UsageReport struct {
	// Path is the directory whose filesystem was measured. It is usually
	// a mount point (the Docker data root or the CI workspace root).
	Path string `json:"path" yaml:"path"`

	// TotalBytes is the filesystem size.
	TotalBytes uint64 `json:"totalBytes" yaml:"totalBytes"`

	// UsedBytes counts every block not free, including blocks reserved
	// for root.
	UsedBytes uint64 `json:"usedBytes" yaml:"usedBytes"`

	// FreeBytes is the space available to unprivileged writers.
	FreeBytes uint64 `json:"freeBytes" yaml:"freeBytes"`

	// UsedPercent is UsedBytes/TotalBytes*100 rounded up to the next
	// whole percent.
	UsedPercent int `json:"usedPercent" yaml:"usedPercent"`

	// Threshold is the percentage at or above which the path is critical.
	Threshold int `json:"threshold" yaml:"threshold"`

	// Critical is UsedPercent >= Threshold.
	Critical bool `json:"critical" yaml:"critical"`

	// CheckedAt is when the measurement was taken.
	CheckedAt time.Time `json:"checkedAt" yaml:"checkedAt"`
}

// String returns the log form of the report, e.g.
// "disk usage of /docker: ~71% [threshold: 70%]".
func (u UsageReport) String() string {
	return fmt.Sprintf("disk usage of %s: ~%d%% [threshold: %d%%]", u.Path, u.UsedPercent, u.Threshold)
}

// PruneReport summarizes one Docker prune call.
type PruneReport struct {
	Resource       Resource `json:"resource"`
	ItemsDeleted   int      `json:"itemsDeleted"`
	SpaceReclaimed uint64   `json:"spaceReclaimed"`
}

// CycleResult is the outcome of one pass of the monitor loop.
type CycleResult struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	// Before holds the usage measured at the start of the cycle, one entry
	// per monitored path, in configuration order.
	Before []UsageReport `json:"before"`

	// After holds the usage measured after cleanup. It is empty unless
	// Action is ActionCleaned.
	After []UsageReport `json:"after,omitempty"`

	Action CycleAction `json:"action"`

	// Prunes holds the Docker prune results, in execution order.
	Prunes []PruneReport `json:"prunes,omitempty"`

	// WorkspaceCleaned is true when the workspace root was wiped.
	WorkspaceCleaned bool `json:"workspaceCleaned"`

	// Err is the first error encountered during the cycle, if any.
	Err error `json:"-"`
}

// Duration returns how long the cycle took.
func (r *CycleResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SpaceReclaimed returns the sum of bytes reclaimed by all prune calls.
func (r *CycleResult) SpaceReclaimed() uint64 {
	var total uint64
	for _, p := range r.Prunes {
		total += p.SpaceReclaimed
	}
	return total
}

// AnyCritical reports whether any of the given reports is critical.
func AnyCritical(reports []UsageReport) bool {
	for _, r := range reports {
		if r.Critical {
			return true
		}
	}
	return false
}

// ExitCode defines standard CLI exit codes.
// Because the daemon is the container's entrypoint, these are also the
// exit codes observed by the container runtime.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigInvalid indicates the configuration failed validation.
	ExitConfigInvalid ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 3

	// ExitDiskCritical is returned by the one-shot check command when at
	// least one monitored path is at or above its threshold.
	ExitDiskCritical ExitCode = 4

	// ExitControllerError indicates the CI controller rejected or failed
	// a node state change.
	ExitControllerError ExitCode = 5
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
