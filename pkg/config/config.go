// Package config loads the gateway configuration.
//
// Configuration is read once at startup and treated as immutable afterwards.
// Config file locations (priority order):
//  1. $OMNIGATE_CONFIG
//  2. ./omnigate.yaml
//  3. $XDG_CONFIG_HOME/omnigate/config.yaml
//  4. ~/.omnigate/config.yaml
//  5. /etc/omnigate/config.yaml
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/omnigate/pkg/util"
)

// Config is the root configuration document
type Config struct {
	SSH        SSHConfig        `yaml:"ssh"`
	Policy     PolicyConfig     `yaml:"policy"`
	Auth       AuthConfig       `yaml:"auth"`
	Templates  TemplatesConfig  `yaml:"templates"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Audit      AuditConfig      `yaml:"audit"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

// SSHConfig controls the transport
type SSHConfig struct {
	Port                  int         `yaml:"port"`
	StrictHostKeyChecking *bool       `yaml:"strict_host_key_checking"`
	KnownHostsFile        string      `yaml:"known_hosts_file"`
	ConnectTimeoutS       int         `yaml:"connect_timeout_s"`
	CommandTimeoutS       int         `yaml:"command_timeout_s"`
	MaxOutputBytes        int         `yaml:"max_output_bytes"`
	KeepaliveS            int         `yaml:"keepalive_s"`
	PreCommands           []string    `yaml:"pre_commands"`
	Jump                  *JumpConfig `yaml:"jump,omitempty"`
}

// JumpConfig describes an optional bastion the gateway tunnels through
type JumpConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	Credential CredentialConfig `yaml:"credential"`
}

// PolicyConfig is the command policy
type PolicyConfig struct {
	Allow            []string          `yaml:"allow"`
	Deny             []string          `yaml:"deny"`
	MaxCommandLength int               `yaml:"max_command_length"`
	DenyMultiline    *bool             `yaml:"deny_multiline"`
	StripANSI        *bool             `yaml:"strip_ansi"`
	Redactions       []RedactionConfig `yaml:"redactions"`
}

// RedactionConfig replaces matches of Pattern with Replacement
type RedactionConfig struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// AuthConfig holds the global credential and the per-zone fallbacks
type AuthConfig struct {
	// ZoneOctet selects which IPv4 octet (1-4) identifies the zone.
	ZoneOctet int                      `yaml:"zone_octet"`
	Global    *CredentialConfig        `yaml:"global,omitempty"`
	Zones     map[int]CredentialConfig `yaml:"zones,omitempty"`
}

// CredentialConfig names where a username/password pair comes from.
// An environment variable takes precedence over the inline value.
type CredentialConfig struct {
	UsernameEnv string `yaml:"username_env,omitempty"`
	Username    string `yaml:"username,omitempty"`
	PasswordEnv string `yaml:"password_env,omitempty"`
	Password    string `yaml:"password,omitempty"`
}

// TemplatesConfig holds command templates with {placeholder} fields
type TemplatesConfig struct {
	Ping       string `yaml:"ping"`
	Traceroute string `yaml:"traceroute"`
}

// ThresholdsConfig drives health classification and result limits
type ThresholdsConfig struct {
	CPUWarning     int `yaml:"cpu_warning"`
	CPUCritical    int `yaml:"cpu_critical"`
	MemoryWarning  int `yaml:"memory_warning"`
	MemoryCritical int `yaml:"memory_critical"`
	FanMinRPM      int `yaml:"fan_min_rpm"`
	RouteLimit     int `yaml:"route_limit"`
	MACLimit       int `yaml:"mac_limit"`
}

// AuditConfig enables the JSON-lines invocation log when Path is set
type AuditConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// ServerConfig configures the MCP HTTP endpoint
type ServerConfig struct {
	Listen         string `yaml:"listen"`
	Path           string `yaml:"path"`
	BearerTokenEnv string `yaml:"bearer_token_env"`
}

// LogConfig configures logrus
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load finds and loads the config file, or returns defaults if none is found.
// The returned path is empty when defaults are used.
func Load() (*Config, string, error) {
	path := FindPath()
	if path == "" {
		return Default(), "", nil
	}
	cfg, err := LoadFromPath(path)
	return cfg, path, err
}

// LoadFromPath loads and validates config from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document, fills defaults and validates the result
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func boolPtr(b bool) *bool { return &b }

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	s := &c.SSH
	if s.Port == 0 {
		s.Port = 22
	}
	if s.StrictHostKeyChecking == nil {
		s.StrictHostKeyChecking = boolPtr(true)
	}
	if s.KnownHostsFile == "" {
		s.KnownHostsFile = defaultKnownHostsPath()
	}
	s.KnownHostsFile = expandHome(s.KnownHostsFile)
	if s.ConnectTimeoutS == 0 {
		s.ConnectTimeoutS = 10
	}
	if s.CommandTimeoutS == 0 {
		s.CommandTimeoutS = 30
	}
	if s.MaxOutputBytes == 0 {
		s.MaxOutputBytes = 200000
	}
	if s.KeepaliveS == 0 {
		s.KeepaliveS = 30
	}
	if s.Jump != nil && s.Jump.Port == 0 {
		s.Jump.Port = 22
	}

	p := &c.Policy
	if len(p.Allow) == 0 {
		p.Allow = DefaultAllow()
	}
	if p.MaxCommandLength == 0 {
		p.MaxCommandLength = 512
	}
	if p.DenyMultiline == nil {
		p.DenyMultiline = boolPtr(true)
	}
	if p.StripANSI == nil {
		p.StripANSI = boolPtr(true)
	}
	if p.Redactions == nil {
		p.Redactions = DefaultRedactions()
	}

	if c.Auth.ZoneOctet == 0 {
		c.Auth.ZoneOctet = 2
	}

	if c.Templates.Ping == "" {
		c.Templates.Ping = "ping {destination}"
	}
	if c.Templates.Traceroute == "" {
		c.Templates.Traceroute = "traceroute {destination}"
	}

	t := &c.Thresholds
	if t.CPUWarning == 0 {
		t.CPUWarning = 80
	}
	if t.CPUCritical == 0 {
		t.CPUCritical = 95
	}
	if t.MemoryWarning == 0 {
		t.MemoryWarning = 85
	}
	if t.MemoryCritical == 0 {
		t.MemoryCritical = 95
	}
	if t.FanMinRPM == 0 {
		t.FanMinRPM = 1000
	}
	if t.RouteLimit == 0 {
		t.RouteLimit = 100
	}
	if t.MACLimit == 0 {
		t.MACLimit = 100
	}

	c.Audit.Path = expandHome(c.Audit.Path)
	if c.Audit.MaxSizeMB == 0 {
		c.Audit.MaxSizeMB = 50
	}

	if c.Server.Listen == "" {
		c.Server.Listen = "127.0.0.1:8080"
	}
	if c.Server.Path == "" {
		c.Server.Path = "/mcp"
	}
	if c.Server.BearerTokenEnv == "" {
		c.Server.BearerTokenEnv = "OMNIGATE_TOKEN"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks ranges and required fields
func (c *Config) Validate() error {
	var v util.ValidationBuilder

	v.Add(c.SSH.Port > 0 && c.SSH.Port <= 65535, "ssh.port must be between 1 and 65535")
	v.Add(c.SSH.ConnectTimeoutS > 0, "ssh.connect_timeout_s must be positive")
	v.Add(c.SSH.CommandTimeoutS > 0, "ssh.command_timeout_s must be positive")
	v.Add(c.SSH.MaxOutputBytes > 0, "ssh.max_output_bytes must be positive")
	v.Add(c.SSH.KeepaliveS >= 0, "ssh.keepalive_s must not be negative")
	if j := c.SSH.Jump; j != nil {
		v.Add(j.Host != "", "ssh.jump.host is required when ssh.jump is set")
		v.Add(j.Port > 0 && j.Port <= 65535, "ssh.jump.port must be between 1 and 65535")
	}

	v.Add(c.Policy.MaxCommandLength > 0, "policy.max_command_length must be positive")
	for i, r := range c.Policy.Redactions {
		v.Add(r.Pattern != "", fmt.Sprintf("policy.redactions[%d].pattern is required", i))
	}

	v.Add(c.Auth.ZoneOctet >= 1 && c.Auth.ZoneOctet <= 4, "auth.zone_octet must be between 1 and 4")
	for zone := range c.Auth.Zones {
		v.Add(zone >= 0 && zone <= 255, fmt.Sprintf("auth.zones key %d is not a valid octet", zone))
	}

	v.Add(strings.Contains(c.Templates.Ping, "{destination}"), "templates.ping must contain {destination}")
	v.Add(strings.Contains(c.Templates.Traceroute, "{destination}"), "templates.traceroute must contain {destination}")

	t := c.Thresholds
	v.Add(t.CPUWarning > 0 && t.CPUWarning <= t.CPUCritical && t.CPUCritical <= 100,
		"thresholds: cpu_warning <= cpu_critical <= 100 required")
	v.Add(t.MemoryWarning > 0 && t.MemoryWarning <= t.MemoryCritical && t.MemoryCritical <= 100,
		"thresholds: memory_warning <= memory_critical <= 100 required")
	v.Add(t.RouteLimit > 0 && t.MACLimit > 0, "thresholds: route_limit and mac_limit must be positive")

	switch c.Log.Format {
	case "text", "json":
	default:
		v.AddErrorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return v.Build()
}

// ConnectTimeout returns the SSH connect timeout
func (s SSHConfig) ConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeoutS) * time.Second
}

// CommandTimeout returns the default per-command timeout
func (s SSHConfig) CommandTimeout() time.Duration {
	return time.Duration(s.CommandTimeoutS) * time.Second
}

// Keepalive returns the keepalive interval, zero when disabled
func (s SSHConfig) Keepalive() time.Duration {
	return time.Duration(s.KeepaliveS) * time.Second
}

// Strict reports whether unknown or changed host keys are rejected
func (s SSHConfig) Strict() bool {
	return s.StrictHostKeyChecking == nil || *s.StrictHostKeyChecking
}

// DefaultAllow returns the default command allow list
func DefaultAllow() []string {
	return []string{
		`^show\s+.*$`,
		`^ping\s+.*$`,
		`^traceroute\s+.*$`,
		`^vrf\s+\S+\s+show\s+.*$`,
		`^write\s+terminal$`,
		`^lanpower\s+port\s+\d+/\d+(/\d+)?\s+admin-state\s+(enable|disable)$`,
	}
}

// DefaultRedactions masks passwords and SNMP communities in output
func DefaultRedactions() []RedactionConfig {
	return []RedactionConfig{
		{Pattern: `(?i)(password\s+)(\S+)`, Replacement: `${1}***`},
		{Pattern: `(?i)(community\s+)(\S+)`, Replacement: `${1}***`},
	}
}

func defaultKnownHostsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "known_hosts"
	}
	return filepath.Join(home, ".omnigate", "known_hosts")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
