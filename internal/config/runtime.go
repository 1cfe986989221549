package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultConfigPath is where xrstated looks for its configuration when no
// path is given.
const DefaultConfigPath = "config/xrstate.json"

// RuntimeConfig configures an xrstate runtime. Every field is optional;
// the Get* accessors supply the default for anything left unset, so a
// partial file is always safe.
type RuntimeConfig struct {
	// System description
	SystemName        *string   `json:"system_name,omitempty"`
	ViewConfiguration *string   `json:"view_configuration,omitempty"` // "stereo" or "mono"
	Headless          *bool     `json:"headless,omitempty"`
	RefreshRates      []float64 `json:"refresh_rates,omitempty"`
	FramePeriod       *string   `json:"frame_period,omitempty"` // duration string like "11ms"
	Capabilities      []string  `json:"capabilities,omitempty"`

	// Instance
	Extensions         []string `json:"extensions,omitempty"`
	TimeOffset         *string  `json:"time_offset,omitempty"`
	EventQueueCapacity *int     `json:"event_queue_capacity,omitempty"`
	LogErrors          *bool    `json:"log_errors,omitempty"`

	// Serial tracking feed (disabled when no port is set)
	SerialPort     *string `json:"serial_port,omitempty"`
	SerialBaudRate *int    `json:"serial_baud_rate,omitempty"`
	SerialDataBits *int    `json:"serial_data_bits,omitempty"`
	SerialStopBits *int    `json:"serial_stop_bits,omitempty"`
	SerialParity   *string `json:"serial_parity,omitempty"`

	// Surfaces
	JournalPath  *string `json:"journal_path,omitempty"`
	AdminListen  *string `json:"admin_listen,omitempty"`
	HealthListen *string `json:"health_listen,omitempty"`
	OTLPEndpoint *string `json:"otlp_endpoint,omitempty"`
}

func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyRuntimeConfig returns a RuntimeConfig with every field unset.
func EmptyRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{}
}

// LoadRuntimeConfig loads a RuntimeConfig from a JSON file. The file must
// have a .json extension and be at most 1MB.
func LoadRuntimeConfig(path string) (*RuntimeConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRuntimeConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// envOverrides lists the settings that can be overridden from the
// environment.
type envOverrides struct {
	SystemName   string    `env:"XRSTATE_SYSTEM_NAME"`
	Headless     bool      `env:"XRSTATE_HEADLESS"`
	RefreshRates []float64 `env:"XRSTATE_REFRESH_RATES"`
	Extensions   []string  `env:"XRSTATE_EXTENSIONS"`
	Capabilities []string  `env:"XRSTATE_CAPABILITIES"`
	LogErrors    bool      `env:"XRSTATE_LOG_ERRORS"`
	SerialPort   string    `env:"XRSTATE_SERIAL_PORT"`
	JournalPath  string    `env:"XRSTATE_JOURNAL_PATH"`
	AdminListen  string    `env:"XRSTATE_ADMIN_LISTEN"`
	HealthListen string    `env:"XRSTATE_HEALTH_LISTEN"`
	OTLPEndpoint string    `env:"XRSTATE_OTLP_ENDPOINT"`
}

// ApplyEnv overrides c with any XRSTATE_* variables present in the
// environment, then revalidates.
func (c *RuntimeConfig) ApplyEnv() error {
	var ov envOverrides
	set := make(map[string]bool)
	opts := env.Options{
		OnSet: func(tag string, value interface{}, isDefault bool) {
			if !isDefault && fmt.Sprint(value) != "" {
				set[tag] = true
			}
		},
	}
	if err := env.ParseWithOptions(&ov, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if set["XRSTATE_SYSTEM_NAME"] {
		c.SystemName = ptrString(ov.SystemName)
	}
	if set["XRSTATE_HEADLESS"] {
		c.Headless = ptrBool(ov.Headless)
	}
	if set["XRSTATE_REFRESH_RATES"] {
		c.RefreshRates = ov.RefreshRates
	}
	if set["XRSTATE_EXTENSIONS"] {
		c.Extensions = ov.Extensions
	}
	if set["XRSTATE_CAPABILITIES"] {
		c.Capabilities = ov.Capabilities
	}
	if set["XRSTATE_LOG_ERRORS"] {
		c.LogErrors = ptrBool(ov.LogErrors)
	}
	if set["XRSTATE_SERIAL_PORT"] {
		c.SerialPort = ptrString(ov.SerialPort)
	}
	if set["XRSTATE_JOURNAL_PATH"] {
		c.JournalPath = ptrString(ov.JournalPath)
	}
	if set["XRSTATE_ADMIN_LISTEN"] {
		c.AdminListen = ptrString(ov.AdminListen)
	}
	if set["XRSTATE_HEALTH_LISTEN"] {
		c.HealthListen = ptrString(ov.HealthListen)
	}
	if set["XRSTATE_OTLP_ENDPOINT"] {
		c.OTLPEndpoint = ptrString(ov.OTLPEndpoint)
	}
	return c.Validate()
}

// Validate checks the values that are set.
func (c *RuntimeConfig) Validate() error {
	if c.ViewConfiguration != nil {
		switch *c.ViewConfiguration {
		case "stereo", "mono":
		default:
			return fmt.Errorf("view_configuration must be \"stereo\" or \"mono\", got %q", *c.ViewConfiguration)
		}
	}
	for _, r := range c.RefreshRates {
		if r <= 0 {
			return fmt.Errorf("refresh_rates must be positive, got %f", r)
		}
	}
	if c.FramePeriod != nil && *c.FramePeriod != "" {
		d, err := time.ParseDuration(*c.FramePeriod)
		if err != nil {
			return fmt.Errorf("invalid frame_period '%s': %w", *c.FramePeriod, err)
		}
		if d <= 0 {
			return fmt.Errorf("frame_period must be positive, got %s", d)
		}
	}
	if c.TimeOffset != nil && *c.TimeOffset != "" {
		if _, err := time.ParseDuration(*c.TimeOffset); err != nil {
			return fmt.Errorf("invalid time_offset '%s': %w", *c.TimeOffset, err)
		}
	}
	if c.EventQueueCapacity != nil && *c.EventQueueCapacity <= 0 {
		return fmt.Errorf("event_queue_capacity must be positive, got %d", *c.EventQueueCapacity)
	}
	if c.SerialBaudRate != nil && *c.SerialBaudRate < 0 {
		return fmt.Errorf("serial_baud_rate must be non-negative, got %d", *c.SerialBaudRate)
	}
	return nil
}

// GetSystemName returns the system name or the default.
func (c *RuntimeConfig) GetSystemName() string {
	if c.SystemName == nil || *c.SystemName == "" {
		return "xrstate"
	}
	return *c.SystemName
}

// GetViewConfiguration returns "stereo" or "mono".
func (c *RuntimeConfig) GetViewConfiguration() string {
	if c.ViewConfiguration == nil {
		return "stereo"
	}
	return *c.ViewConfiguration
}

func (c *RuntimeConfig) GetHeadless() bool {
	return c.Headless != nil && *c.Headless
}

// GetRefreshRates returns the advertised refresh rates in Hz.
func (c *RuntimeConfig) GetRefreshRates() []float32 {
	if len(c.RefreshRates) == 0 {
		return []float32{90}
	}
	rates := make([]float32, len(c.RefreshRates))
	for i, r := range c.RefreshRates {
		rates[i] = float32(r)
	}
	return rates
}

// GetFramePeriod returns the frame period override, or zero to derive the
// period from the first refresh rate.
func (c *RuntimeConfig) GetFramePeriod() time.Duration {
	if c.FramePeriod == nil || *c.FramePeriod == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.FramePeriod)
	if err != nil {
		return 0
	}
	return d
}

func (c *RuntimeConfig) GetCapabilities() []string {
	return c.Capabilities
}

// GetExtensions returns the extensions to enable.
func (c *RuntimeConfig) GetExtensions() []string {
	return c.Extensions
}

// GetTimeOffset returns the external time offset.
func (c *RuntimeConfig) GetTimeOffset() time.Duration {
	if c.TimeOffset == nil || *c.TimeOffset == "" {
		return time.Second
	}
	d, err := time.ParseDuration(*c.TimeOffset)
	if err != nil {
		return time.Second
	}
	return d
}

func (c *RuntimeConfig) GetEventQueueCapacity() int {
	if c.EventQueueCapacity == nil {
		return 256
	}
	return *c.EventQueueCapacity
}

// GetLogErrors reports whether failed calls are logged. Defaults to true.
func (c *RuntimeConfig) GetLogErrors() bool {
	if c.LogErrors == nil {
		return true
	}
	return *c.LogErrors
}

// GetSerialPort returns the serial device path, or "" when the feed is
// disabled.
func (c *RuntimeConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return ""
	}
	return *c.SerialPort
}

func (c *RuntimeConfig) GetSerialBaudRate() int {
	if c.SerialBaudRate == nil {
		return 115200
	}
	return *c.SerialBaudRate
}

func (c *RuntimeConfig) GetSerialDataBits() int {
	if c.SerialDataBits == nil {
		return 8
	}
	return *c.SerialDataBits
}

func (c *RuntimeConfig) GetSerialStopBits() int {
	if c.SerialStopBits == nil {
		return 1
	}
	return *c.SerialStopBits
}

func (c *RuntimeConfig) GetSerialParity() string {
	if c.SerialParity == nil {
		return "N"
	}
	return *c.SerialParity
}

// GetJournalPath returns the sqlite journal path, or "" when journaling
// is off.
func (c *RuntimeConfig) GetJournalPath() string {
	if c.JournalPath == nil {
		return ""
	}
	return *c.JournalPath
}

// GetAdminListen returns the debug HTTP listen address.
func (c *RuntimeConfig) GetAdminListen() string {
	if c.AdminListen == nil {
		return "localhost:8787"
	}
	return *c.AdminListen
}

// GetHealthListen returns the gRPC health listen address, or "" to
// disable it.
func (c *RuntimeConfig) GetHealthListen() string {
	if c.HealthListen == nil {
		return ""
	}
	return *c.HealthListen
}

func (c *RuntimeConfig) GetOTLPEndpoint() string {
	if c.OTLPEndpoint == nil {
		return ""
	}
	return *c.OTLPEndpoint
}
