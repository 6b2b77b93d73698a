// Package config loads the JSON configuration for the actroid command.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/actroid/internal/actroid"
	"github.com/banshee-data/actroid/internal/calibration"
	"github.com/banshee-data/actroid/internal/protocol"
	"github.com/banshee-data/actroid/internal/serialport"
	"github.com/banshee-data/actroid/internal/units"
)

// Defaults used when a field is omitted from the config file.
const (
	DefaultPort                 = "/dev/ttyUSB0"
	DefaultUnits                = units.Degrees
	DefaultListen               = ":8090"
	DefaultAckPollInterval      = "1ms"
	DefaultSnapshotPollInterval = "10ms"
)

// DriverConfig is the root configuration. Every field is optional; the Get*
// methods fall back to defaults so partial files are safe. Command-line flags
// override whatever the file sets.
type DriverConfig struct {
	Port   *string                 `json:"port,omitempty"`
	Serial *serialport.PortOptions `json:"serial,omitempty"`

	// Calibration names a built-in revision; CalibrationFile, when set,
	// replaces it with a table loaded from disk.
	Calibration     *string `json:"calibration,omitempty"`
	CalibrationFile *string `json:"calibration_file,omitempty"`

	Units       *string `json:"units,omitempty"`
	OfflineMode *string `json:"offline_mode,omitempty"` // "legacy" or "distinct"

	AckPollInterval      *string `json:"ack_poll_interval,omitempty"` // duration string like "1ms"
	SnapshotPollInterval *string `json:"snapshot_poll_interval,omitempty"`

	Listen *string `json:"listen,omitempty"`
	DBPath *string `json:"db_path,omitempty"` // empty disables recording
}

// EmptyDriverConfig returns a DriverConfig with all fields unset.
func EmptyDriverConfig() *DriverConfig {
	return &DriverConfig{}
}

// LoadDriverConfig loads a DriverConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadDriverConfig(path string) (*DriverConfig, error) {
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

	cfg := EmptyDriverConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *DriverConfig) Validate() error {
	if c.Port != nil && *c.Port == "" {
		return fmt.Errorf("port must not be empty")
	}

	if c.Serial != nil {
		if _, err := c.Serial.Normalize(); err != nil {
			return fmt.Errorf("invalid serial settings: %w", err)
		}
	}

	if c.Calibration != nil && *c.Calibration != "" {
		if _, err := calibration.Lookup(*c.Calibration); err != nil {
			return err
		}
	}

	if c.Units != nil && !units.IsValid(*c.Units) {
		return fmt.Errorf("invalid units %q: must be one of %s", *c.Units, units.GetValidUnitsString())
	}

	if c.OfflineMode != nil {
		if _, err := protocol.ParseOfflineMode(*c.OfflineMode); err != nil {
			return err
		}
	}

	for name, v := range map[string]*string{
		"ack_poll_interval":      c.AckPollInterval,
		"snapshot_poll_interval": c.SnapshotPollInterval,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	return nil
}

// GetPort returns the serial device path or the default.
func (c *DriverConfig) GetPort() string {
	if c.Port == nil || *c.Port == "" {
		return DefaultPort
	}
	return *c.Port
}

// GetSerial returns the line settings or the controller's defaults.
func (c *DriverConfig) GetSerial() serialport.PortOptions {
	if c.Serial == nil {
		return serialport.DefaultPortOptions()
	}
	return *c.Serial
}

// GetCalibration returns the calibration revision name or the default.
func (c *DriverConfig) GetCalibration() string {
	if c.Calibration == nil || *c.Calibration == "" {
		return calibration.DefaultRevision
	}
	return *c.Calibration
}

// GetCalibrationFile returns the calibration table path, empty if unset.
func (c *DriverConfig) GetCalibrationFile() string {
	if c.CalibrationFile == nil {
		return ""
	}
	return *c.CalibrationFile
}

// GetUnits returns the angle unit for user-facing input and output.
func (c *DriverConfig) GetUnits() string {
	if c.Units == nil || *c.Units == "" {
		return DefaultUnits
	}
	return *c.Units
}

// GetOfflineMode returns the teardown frame selection.
func (c *DriverConfig) GetOfflineMode() protocol.OfflineMode {
	if c.OfflineMode == nil {
		return protocol.OfflineLegacy
	}
	mode, err := protocol.ParseOfflineMode(*c.OfflineMode)
	if err != nil {
		return protocol.OfflineLegacy // default on parse error
	}
	return mode
}

// GetAckPollInterval parses and returns AckPollInterval.
func (c *DriverConfig) GetAckPollInterval() time.Duration {
	return parseDurationOr(c.AckPollInterval, DefaultAckPollInterval)
}

// GetSnapshotPollInterval parses and returns SnapshotPollInterval.
func (c *DriverConfig) GetSnapshotPollInterval() time.Duration {
	return parseDurationOr(c.SnapshotPollInterval, DefaultSnapshotPollInterval)
}

// GetListen returns the HTTP listen address or the default.
func (c *DriverConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return DefaultListen
	}
	return *c.Listen
}

// GetDBPath returns the pose database path, empty if recording is off.
func (c *DriverConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// DriverOptions builds the driver options the configuration describes.
// Clock and Factory are left for the caller.
func (c *DriverConfig) DriverOptions() (actroid.Options, error) {
	table, err := calibration.Resolve(c.GetCalibration(), c.GetCalibrationFile())
	if err != nil {
		return actroid.Options{}, err
	}
	return actroid.Options{
		Calibration:          table,
		OfflineMode:          c.GetOfflineMode(),
		AckPollInterval:      c.GetAckPollInterval(),
		SnapshotPollInterval: c.GetSnapshotPollInterval(),
		Port:                 c.GetSerial(),
	}, nil
}

func parseDurationOr(v *string, fallback string) time.Duration {
	def, _ := time.ParseDuration(fallback)
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
