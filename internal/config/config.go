package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/beekhof/class-sync/internal/schedule"
)

const (
	DefaultTimeZone      = "America/Denver"
	DefaultCalendarColor = "16"
	DefaultCalendarID    = "primary"
	DefaultStatePath     = "classsync.json"
	DefaultTokenDir      = "."
	DefaultRecheckDelay  = 5 * time.Second
)

// Config holds the configuration for class-sync.
type Config struct {
	CredentialsPath string `json:"credentials_path,omitempty" yaml:"credentials_path,omitempty"`
	TokenDir        string `json:"token_dir,omitempty" yaml:"token_dir,omitempty"`
	Account         string `json:"account,omitempty" yaml:"account,omitempty"`

	// DatabaseURL selects the Postgres store. Without it events are kept in
	// the JSON file at StatePath.
	DatabaseURL string `json:"database_url,omitempty" yaml:"database_url,omitempty"`
	StatePath   string `json:"state_path,omitempty" yaml:"state_path,omitempty"`

	TimeZone             string `json:"time_zone,omitempty" yaml:"time_zone,omitempty"`
	DefaultCalendarColor string `json:"default_calendar_color,omitempty" yaml:"default_calendar_color,omitempty"`
	CalendarID           string `json:"calendar_id,omitempty" yaml:"calendar_id,omitempty"`

	ValidateLocations bool              `json:"validate_locations,omitempty" yaml:"validate_locations,omitempty"`
	BuildingCodes     map[string]string `json:"building_codes,omitempty" yaml:"building_codes,omitempty"`

	// RecheckDelay is a duration such as "5s".
	RecheckDelay string `json:"recheck_delay,omitempty" yaml:"recheck_delay,omitempty"`

	// Endpoint overrides the Calendar API base URL.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	recheck  time.Duration
	location *time.Location
}

// Flags are the command-line overrides. Empty values are ignored.
type Flags struct {
	CredentialsPath   string
	TokenDir          string
	Account           string
	DatabaseURL       string
	StatePath         string
	TimeZone          string
	CalendarColor     string
	ValidateLocations bool
}

// Recheck is the parsed RecheckDelay.
func (c *Config) Recheck() time.Duration {
	return c.recheck
}

// Location is the parsed TimeZone.
func (c *Config) Location() *time.Location {
	return c.location
}

// Buildings returns the building codes used for location validation, or nil
// when validation is off.
func (c *Config) Buildings() map[string]string {
	if !c.ValidateLocations {
		return nil
	}
	if len(c.BuildingCodes) > 0 {
		return c.BuildingCodes
	}
	return schedule.DefaultBuildingCodes
}

// LoadConfigFromFile loads configuration from a JSON or YAML file, chosen by
// the file extension.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// LoadConfig loads configuration with the following precedence (highest to lowest):
// 1. Command-line flags
// 2. Environment variables
// 3. Config file
// 4. Defaults
func LoadConfig(configFile string, flags Flags) (*Config, error) {
	var config Config

	// Step 1: Load from config file if provided
	if configFile != "" {
		fileConfig, err := LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
		config = *fileConfig
	}

	// Step 2: Override with environment variables
	envStrings := []struct {
		name   string
		target *string
	}{
		{"GOOGLE_CREDENTIALS_PATH", &config.CredentialsPath},
		{"CLASSSYNC_TOKEN_DIR", &config.TokenDir},
		{"CLASSSYNC_ACCOUNT", &config.Account},
		{"DATABASE_URL", &config.DatabaseURL},
		{"CLASSSYNC_STATE_PATH", &config.StatePath},
		{"CLASSSYNC_TIME_ZONE", &config.TimeZone},
		{"CLASSSYNC_CALENDAR_COLOR", &config.DefaultCalendarColor},
		{"CLASSSYNC_CALENDAR_ID", &config.CalendarID},
		{"CLASSSYNC_RECHECK_DELAY", &config.RecheckDelay},
	}
	for _, env := range envStrings {
		if v := os.Getenv(env.name); v != "" {
			*env.target = v
		}
	}
	if validate := os.Getenv("CLASSSYNC_VALIDATE_LOCATIONS"); validate != "" {
		v, err := strconv.ParseBool(validate)
		if err != nil {
			return nil, fmt.Errorf("invalid CLASSSYNC_VALIDATE_LOCATIONS value: %w", err)
		}
		config.ValidateLocations = v
	}

	// Step 3: Override with command-line flags (highest priority)
	if flags.CredentialsPath != "" {
		config.CredentialsPath = flags.CredentialsPath
	}
	if flags.TokenDir != "" {
		config.TokenDir = flags.TokenDir
	}
	if flags.Account != "" {
		config.Account = flags.Account
	}
	if flags.DatabaseURL != "" {
		config.DatabaseURL = flags.DatabaseURL
	}
	if flags.StatePath != "" {
		config.StatePath = flags.StatePath
	}
	if flags.TimeZone != "" {
		config.TimeZone = flags.TimeZone
	}
	if flags.CalendarColor != "" {
		config.DefaultCalendarColor = flags.CalendarColor
	}
	if flags.ValidateLocations {
		config.ValidateLocations = true
	}

	// Step 4: Apply defaults and validate
	if config.TokenDir == "" {
		config.TokenDir = DefaultTokenDir
	}
	if config.StatePath == "" {
		config.StatePath = DefaultStatePath
	}
	if config.TimeZone == "" {
		config.TimeZone = DefaultTimeZone
	}
	if config.DefaultCalendarColor == "" {
		config.DefaultCalendarColor = DefaultCalendarColor
	}
	if config.CalendarID == "" {
		config.CalendarID = DefaultCalendarID
	}

	if config.Account == "" {
		return nil, fmt.Errorf("account must be provided via --account flag, CLASSSYNC_ACCOUNT environment variable, or config file")
	}

	loc, err := schedule.LoadZone(config.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time_zone: %w", err)
	}
	config.location = loc

	config.recheck = DefaultRecheckDelay
	if config.RecheckDelay != "" {
		if config.recheck, err = time.ParseDuration(config.RecheckDelay); err != nil {
			return nil, fmt.Errorf("invalid recheck_delay value: %w", err)
		}
		if config.recheck < 0 {
			return nil, fmt.Errorf("recheck_delay must not be negative, got %s", config.RecheckDelay)
		}
	}

	if _, err := strconv.Atoi(config.DefaultCalendarColor); err != nil {
		return nil, fmt.Errorf("default_calendar_color must be a calendar colour id, got '%s'", config.DefaultCalendarColor)
	}

	return &config, nil
}
