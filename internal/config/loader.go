package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// envBindings maps viper keys to the environment variables they are read
// from. Keys are listed explicitly rather than derived with a key replacer
// because the variable names predate the nested key layout.
var envBindings = map[string]string{
	"jenkins.url":              "JENKINS_URL",
	"jenkins.user":             "JENKINS_USER",
	"jenkins.pass":             "JENKINS_PASS",
	"jenkins.node":             "JENKINS_NODE",
	"docker.host":              "DOCKER_HOST",
	"docker.root_dir":          "DOCKER_ROOT_DIR",
	"docker.keep_images_until": "KEEP_IMAGES_UNTIL",
	"docker.keep_label":        "KEEP_LABEL",
	"workspace.root_dir":       "WORKSPACE_ROOT_DIR",
	"disk.threshold":           "DISK_THRESHOLD",
	"check.interval":           "CHECK_INTERVAL",
	"metrics.addr":             "METRICS_ADDR",
	"history.path":             "HISTORY_DB",
	"log.level":                "LOG_LEVEL",
	"log.format":               "LOG_FORMAT",
}

// NewViper returns a viper instance with defaults and environment bindings
// installed. Callers bind their own flags on top before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	for key, env := range envBindings {
		// BindEnv only fails when given no key, which cannot happen here.
		_ = v.BindEnv(key, env)
	}
	return v
}

// SetDefaults registers DefaultConfig values on v.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("jenkins.url", d.Jenkins.URL)
	v.SetDefault("jenkins.user", d.Jenkins.User)
	v.SetDefault("jenkins.pass", d.Jenkins.Pass)
	v.SetDefault("jenkins.node", d.Jenkins.Node)
	v.SetDefault("docker.host", d.Docker.Host)
	v.SetDefault("docker.root_dir", d.Docker.RootDir)
	v.SetDefault("docker.keep_images_until", d.Docker.KeepImagesUntil)
	v.SetDefault("docker.keep_label", d.Docker.KeepLabel)
	v.SetDefault("workspace.root_dir", d.Workspace.RootDir)
	v.SetDefault("disk.threshold", d.Disk.Threshold)
	v.SetDefault("check.interval", d.Check.Interval)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// ReadFile merges the YAML file at path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

// Load resolves every key from v into a Config and validates it.
//
// Integer keys are parsed strictly: DISK_THRESHOLD=abc is an error rather
// than silently becoming 0.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Jenkins: JenkinsConfig{
			URL:  v.GetString("jenkins.url"),
			User: v.GetString("jenkins.user"),
			Pass: v.GetString("jenkins.pass"),
			Node: v.GetString("jenkins.node"),
		},
		Docker: DockerConfig{
			Host:      v.GetString("docker.host"),
			RootDir:   v.GetString("docker.root_dir"),
			KeepLabel: v.GetString("docker.keep_label"),
		},
		Workspace: WorkspaceConfig{
			RootDir: v.GetString("workspace.root_dir"),
		},
		Metrics: MetricsConfig{
			Addr: v.GetString("metrics.addr"),
		},
		History: HistoryConfig{
			Path: v.GetString("history.path"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	var errs []error
	cfg.Docker.KeepImagesUntil = getInt(v, "docker.keep_images_until", &errs)
	cfg.Disk.Threshold = getInt(v, "disk.threshold", &errs)
	cfg.Check.Interval = getInt(v, "check.interval", &errs)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// getInt reads key as an integer, appending a descriptive error to errs
// when the raw value cannot be parsed.
func getInt(v *viper.Viper, key string, errs *[]error) int {
	n, err := parseInt(v.Get(key))
	if err != nil {
		name := key
		if env, ok := envBindings[key]; ok {
			name = fmt.Sprintf("%s (%s)", key, env)
		}
		*errs = append(*errs, fmt.Errorf("%s: %w", name, err))
	}
	return n
}
