// Package config holds the operator's runtime configuration, read from
// command-line flags and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables of settings without a
// dedicated variable, e.g. ECHO_WORKERS.
const EnvPrefix = "ECHO"

// DefaultNamespace is watched when no namespace is configured.
const DefaultNamespace = "default"

// Flag names.
const (
	FlagNamespace        = "namespace"
	FlagAllNamespaces    = "all-namespaces"
	FlagWorkers          = "workers"
	FlagKubeconfig       = "kubeconfig"
	FlagResyncPeriod     = "resync-period"
	FlagErrorBackoff     = "error-backoff"
	FlagReconcileTimeout = "reconcile-timeout"
	FlagMetricsAddr      = "metrics-bind-address"
	FlagLogLevel         = "log-level"
	FlagLogFormat        = "log-format"
)

// envOverrides are settings with a fixed environment variable name.
var envOverrides = map[string]string{
	FlagNamespace:     "WATCH_NAMESPACE",
	FlagAllNamespaces: "ALL_NAMESPACES",
	FlagKubeconfig:    "KUBECONFIG",
	FlagLogLevel:      "LOG_LEVEL",
}

// Config is the operator configuration.
type Config struct {
	// Namespace is the namespace to watch. Ignored with AllNamespaces.
	Namespace string
	// AllNamespaces watches every namespace.
	AllNamespaces bool
	// Workers is the number of concurrent reconciliations.
	Workers int
	// Kubeconfig is the path to a kubeconfig file. Empty uses in-cluster
	// config or the default loading rules.
	Kubeconfig string
	// ResyncPeriod is how often every Echo is reconciled without changes.
	ResyncPeriod time.Duration
	// ErrorBackoff is the retry delay after a failed reconciliation.
	ErrorBackoff time.Duration
	// ReconcileTimeout bounds a single reconciliation.
	ReconcileTimeout time.Duration
	// MetricsAddr is where /metrics and /healthz are served; "0" disables.
	MetricsAddr string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogFormat is text or json.
	LogFormat string
}

// AddFlags registers the configuration flags on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.StringP(FlagNamespace, "n", DefaultNamespace, "The namespace to watch for Echo resources (env WATCH_NAMESPACE)")
	fs.Bool(FlagAllNamespaces, false, "Watch Echo resources in all namespaces (env ALL_NAMESPACES)")
	fs.Int(FlagWorkers, 1, "Number of Echo resources reconciled concurrently")
	fs.String(FlagKubeconfig, "", "Path to a kubeconfig file; defaults to in-cluster config (env KUBECONFIG)")
	fs.Duration(FlagResyncPeriod, time.Hour, "How often every Echo is reconciled even without changes")
	fs.Duration(FlagErrorBackoff, 5*time.Second, "Delay before retrying a failed reconciliation")
	fs.Duration(FlagReconcileTimeout, 30*time.Second, "Upper bound for a single reconciliation")
	fs.String(FlagMetricsAddr, ":8080", `Address to serve metrics and health checks on; "0" disables`)
	fs.String(FlagLogLevel, "info", "Log level: debug, info, warn or error (env LOG_LEVEL)")
	fs.String(FlagLogFormat, "text", "Log format: text or json")
}

// NewViper returns a viper instance bound to the flags in fs and to the
// environment.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, env := range envOverrides {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s to %s: %w", key, env, err)
		}
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}
	return v, nil
}

// Load reads and validates the configuration.
func Load(v *viper.Viper) (*Config, error) {
	if v.IsSet(FlagNamespace) && v.IsSet(FlagAllNamespaces) && v.GetBool(FlagAllNamespaces) {
		return nil, fmt.Errorf("--%s and --%s are mutually exclusive", FlagNamespace, FlagAllNamespaces)
	}

	c := &Config{
		Namespace:        v.GetString(FlagNamespace),
		AllNamespaces:    v.GetBool(FlagAllNamespaces),
		Workers:          v.GetInt(FlagWorkers),
		Kubeconfig:       v.GetString(FlagKubeconfig),
		ResyncPeriod:     v.GetDuration(FlagResyncPeriod),
		ErrorBackoff:     v.GetDuration(FlagErrorBackoff),
		ReconcileTimeout: v.GetDuration(FlagReconcileTimeout),
		MetricsAddr:      v.GetString(FlagMetricsAddr),
		LogLevel:         v.GetString(FlagLogLevel),
		LogFormat:        v.GetString(FlagLogFormat),
	}
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the configuration for values the operator cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("--%s must be at least 1, got %d", FlagWorkers, c.Workers))
	}
	for flag, d := range map[string]time.Duration{
		FlagResyncPeriod:     c.ResyncPeriod,
		FlagErrorBackoff:     c.ErrorBackoff,
		FlagReconcileTimeout: c.ReconcileTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("--%s must be positive, got %v", flag, d))
		}
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("--%s must be text or json, got %q", FlagLogFormat, c.LogFormat))
	}
	return errors.Join(errs...)
}

// WatchNamespace returns the namespace to watch, or "" for all namespaces.
func (c *Config) WatchNamespace() string {
	if c.AllNamespaces {
		return ""
	}
	return c.Namespace
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("--%s: %w", FlagLogLevel, err)
	}
	return l, nil
}
