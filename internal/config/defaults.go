// Package config loads and validates node-janitor configuration.
//
// Values are resolved by viper in the usual precedence order: command-line
// flags, environment variables, an optional YAML config file, and finally
// the defaults returned by DefaultConfig. The environment variable names
// match the ones the janitor has always been deployed with (JENKINS_URL,
// DISK_THRESHOLD, CHECK_INTERVAL, ...), so existing container definitions
// keep working unchanged.
package config

import "time"

// Config holds all application configuration values.
type Config struct {
	Jenkins   JenkinsConfig   `yaml:"jenkins"`
	Docker    DockerConfig    `yaml:"docker"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Disk      DiskConfig      `yaml:"disk"`
	Check     CheckConfig     `yaml:"check"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	History   HistoryConfig   `yaml:"history"`
	Log       LogConfig       `yaml:"log"`
}

// JenkinsConfig identifies the CI controller and the node this janitor runs on.
// An empty URL disables node control entirely.
type JenkinsConfig struct {
	URL  string `yaml:"url"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
	Node string `yaml:"node"`
}

// Enabled reports whether a CI controller is configured.
func (j JenkinsConfig) Enabled() bool {
	return j.URL != ""
}

// DockerConfig locates the Docker Engine and its data root, and controls
// what a prune may remove.
type DockerConfig struct {
	// Host is the Engine endpoint. Empty means DOCKER_HOST, then the
	// platform's default socket.
	Host    string `yaml:"host"`
	RootDir string `yaml:"root_dir"`

	// KeepImagesUntil is the image retention window in hours. Unused
	// images created more recently than this are not pruned.
	KeepImagesUntil int `yaml:"keep_images_until"`

	// KeepLabel, when set, protects every container, volume and image
	// carrying this label key from being pruned.
	KeepLabel string `yaml:"keep_label"`
}

// WorkspaceConfig points at the CI workspace root that cleanup empties.
type WorkspaceConfig struct {
	RootDir string `yaml:"root_dir"`
}

// DiskConfig holds the usage threshold that triggers a cleanup.
type DiskConfig struct {
	Threshold int `yaml:"threshold"` // percent, 1..100
}

// CheckConfig controls how often disk usage is measured.
type CheckConfig struct {
	Interval int `yaml:"interval"` // minutes
}

// IntervalDuration returns the check interval as a time.Duration.
func (c CheckConfig) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Minute
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the metrics server
}

// HistoryConfig locates the SQLite cycle history.
type HistoryConfig struct {
	Path string `yaml:"path"` // empty disables cycle history
}

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Docker: DockerConfig{
			RootDir:         "/docker",
			KeepImagesUntil: 72,
		},
		Workspace: WorkspaceConfig{
			RootDir: "/workspace",
		},
		Disk: DiskConfig{
			Threshold: 70,
		},
		Check: CheckConfig{
			Interval: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
