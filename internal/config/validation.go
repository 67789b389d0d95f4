package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Validate checks that the configuration is internally consistent.
// All problems are reported at once, joined with errors.Join.
func (c *Config) Validate() error {
	var errs []error

	if c.Disk.Threshold < 1 || c.Disk.Threshold > 100 {
		errs = append(errs, fmt.Errorf("disk.threshold must be between 1 and 100, got %d", c.Disk.Threshold))
	}
	if c.Check.Interval < 1 {
		errs = append(errs, fmt.Errorf("check.interval must be at least 1 minute, got %d", c.Check.Interval))
	}
	if c.Docker.KeepImagesUntil < 1 {
		errs = append(errs, fmt.Errorf("docker.keep_images_until must be at least 1 hour, got %d", c.Docker.KeepImagesUntil))
	}

	if err := validateRoot("docker.root_dir", c.Docker.RootDir); err != nil {
		errs = append(errs, err)
	}
	if err := validateRoot("workspace.root_dir", c.Workspace.RootDir); err != nil {
		errs = append(errs, err)
	}

	if c.Jenkins.Enabled() {
		if !strings.HasPrefix(c.Jenkins.URL, "http://") && !strings.HasPrefix(c.Jenkins.URL, "https://") {
			errs = append(errs, fmt.Errorf("jenkins.url must start with http:// or https://, got %q", c.Jenkins.URL))
		}
		if c.Jenkins.Node == "" {
			errs = append(errs, errors.New("jenkins.node is required when jenkins.url is set"))
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// validateRoot requires an absolute path other than the filesystem root.
// The workspace root is wiped during cleanup, so "/" would be catastrophic.
func validateRoot(key, path string) error {
	if path == "" {
		return fmt.Errorf("%s must not be empty", key)
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%s must be an absolute path, got %q", key, path)
	}
	if filepath.Clean(path) == "/" {
		return fmt.Errorf("%s must not be the filesystem root", key)
	}
	return nil
}

// parseInt accepts the value shapes viper hands back: ints from defaults
// and YAML, strings from the environment and flags.
func parseInt(raw interface{}) (int, error) {
	switch val := raw.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		if val != float64(int(val)) {
			return 0, fmt.Errorf("expected a whole number, got %v", val)
		}
		return int(val), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("expected an integer, got %q", val)
		}
		return n, nil
	case nil:
		return 0, errors.New("value is not set")
	default:
		return 0, fmt.Errorf("unsupported value type %T", raw)
	}
}

// Masked returns a copy of c with secrets replaced, suitable for printing.
func (c *Config) Masked() *Config {
	out := *c
	if out.Jenkins.Pass != "" {
		out.Jenkins.Pass = "********"
	}
	return &out
}
