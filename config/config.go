// Package config handles pricewatch configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level pricewatch configuration.
type Config struct {
	Page      PageConfig       `yaml:"page"`
	Browser   BrowserConfig    `yaml:"browser"`
	Platforms []PlatformConfig `yaml:"platforms"`
	Panel     PanelConfig      `yaml:"panel"`
	Audit     AuditConfig      `yaml:"audit"`
}

// PageConfig identifies the page to watch.
type PageConfig struct {
	URL string `yaml:"url"`
}

// BrowserConfig controls the Chrome connection.
type BrowserConfig struct {
	// Remote is a DevTools websocket URL; empty launches a local browser.
	Remote  string `yaml:"remote"`
	Stealth bool   `yaml:"stealth"`
	Headful bool   `yaml:"headful"`
}

// PlatformConfig tunes scanning for a class of sites. Some platforms render
// their forms inside iframes or populate price fields from script long
// after load; both compensations hang off the domain match here instead of
// being hard-coded per host.
type PlatformConfig struct {
	// Domain matches the page host by suffix ("mturk.com" covers
	// "worker.mturk.com").
	Domain string `yaml:"domain"`
	// ScanFrames enables the same-origin iframe fallback search.
	ScanFrames bool `yaml:"scan_frames"`
	// ReinitDelays schedules bounded deferred re-initializations after
	// startup. Each entry fires once.
	ReinitDelays []Duration `yaml:"reinit_delays"`
}

// PanelConfig controls the verification panel surfaces.
type PanelConfig struct {
	// Addr is the HTTP listen address for the panel API.
	Addr string `yaml:"addr"`
	// Webhook, when set, additionally pushes every update to this URL.
	Webhook string `yaml:"webhook"`
}

// AuditConfig controls the optional SQLite session event log.
type AuditConfig struct {
	// Path to the audit database. Empty disables auditing entirely.
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Duration wraps time.Duration with YAML support for "250ms"-style values.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: parse duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Durations converts a delay schedule to time.Durations.
func Durations(ds []Duration) []time.Duration {
	out := make([]time.Duration, len(ds))
	for i, d := range ds {
		out[i] = time.Duration(d)
	}
	return out
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset fields. The crowd-work marketplace ships as a
// default platform entry: its task forms live in iframes and are populated
// from script after load.
func (c *Config) ApplyDefaults() {
	if c.Panel.Addr == "" {
		c.Panel.Addr = "127.0.0.1:8390"
	}
	if c.Audit.RetentionDays <= 0 {
		c.Audit.RetentionDays = 30
	}
	if len(c.Platforms) == 0 {
		c.Platforms = []PlatformConfig{{
			Domain:     "mturk.com",
			ScanFrames: true,
			ReinitDelays: []Duration{
				Duration(3 * time.Second),
				Duration(8 * time.Second),
				Duration(15 * time.Second),
			},
		}}
	}
}

// PlatformFor returns the platform settings matching a page host, if any.
func (c *Config) PlatformFor(host string) (PlatformConfig, bool) {
	host = strings.ToLower(host)
	for _, p := range c.Platforms {
		d := strings.ToLower(p.Domain)
		if host == d || strings.HasSuffix(host, "."+d) {
			return p, true
		}
	}
	return PlatformConfig{}, false
}
