package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hostpulse/hostpulse/pkg/models"
	"github.com/hostpulse/hostpulse/pkg/notify"
)

type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

var (
	errNonPositiveInterval  = errors.New("sample_interval must be positive")
	errNonPositiveRetention = errors.New("retention_period must be positive")
)

// Default cadence and retention. Every field is overridable via the config
// file or HOSTPULSE_* environment variables.
const (
	DefaultListenAddr  = ":8090"
	DefaultDBPath      = "/var/lib/hostpulse/hostpulse.db"
	DefaultStateDir    = "/var/lib/hostpulse"
	defaultSampleEvery = 5 * time.Second
	defaultFlushEvery  = 30 * time.Second
	defaultRetention   = 7 * 24 * time.Hour
	defaultNameRefresh = time.Hour
	defaultCPUPercent  = 90
	defaultRAMPercent  = 90
	defaultGPUPercent  = 95
	defaultTempCelsius = 85
)

// Config is the full hostpulse configuration.
type Config struct {
	ListenAddr          string                 `json:"listen_addr"`
	DBPath              string                 `json:"db_path"`
	StateDir            string                 `json:"state_dir"` // holds the persistent host id
	SampleInterval      Duration               `json:"sample_interval"`
	FlushInterval       Duration               `json:"flush_interval"`
	RetentionPeriod     Duration               `json:"retention_period"`
	NameRefreshInterval Duration               `json:"name_refresh_interval"`
	Thresholds          models.Thresholds      `json:"thresholds"`
	Webhooks            []notify.WebhookConfig `json:"webhooks,omitempty"`
	SMTP                notify.SMTPConfig      `json:"smtp,omitempty"`
}

// New returns a Config populated with defaults and environment overrides.
func New() *Config {
	return &Config{
		ListenAddr:          getenv("HOSTPULSE_LISTEN_ADDR", DefaultListenAddr),
		DBPath:              getenv("HOSTPULSE_DB_PATH", DefaultDBPath),
		StateDir:            getenv("HOSTPULSE_STATE_DIR", DefaultStateDir),
		SampleInterval:      getenvDuration("HOSTPULSE_SAMPLE_INTERVAL", Duration(defaultSampleEvery)),
		FlushInterval:       getenvDuration("HOSTPULSE_FLUSH_INTERVAL", Duration(defaultFlushEvery)),
		RetentionPeriod:     getenvDuration("HOSTPULSE_RETENTION_PERIOD", Duration(defaultRetention)),
		NameRefreshInterval: getenvDuration("HOSTPULSE_NAME_REFRESH_INTERVAL", Duration(defaultNameRefresh)),
		Thresholds: models.Thresholds{
			CPUPercent:  getenvFloat("HOSTPULSE_CPU_THRESHOLD", defaultCPUPercent),
			RAMPercent:  getenvFloat("HOSTPULSE_RAM_THRESHOLD", defaultRAMPercent),
			GPUPercent:  getenvFloat("HOSTPULSE_GPU_THRESHOLD", defaultGPUPercent),
			TempCelsius: getenvFloat("HOSTPULSE_TEMP_THRESHOLD", defaultTempCelsius),
		},
	}
}

// Load returns the effective configuration: defaults, then the JSON file at
// path (if it exists), then environment overrides already baked into New.
func Load(path string) (*Config, error) {
	cfg := New()

	if path != "" {
		if err := LoadAndValidate(path, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, ValidateConfig(cfg)
}

func (c *Config) Validate() error {
	if c.SampleInterval <= 0 {
		return errNonPositiveInterval
	}

	if c.RetentionPeriod <= 0 {
		return errNonPositiveRetention
	}

	if c.FlushInterval <= 0 {
		c.FlushInterval = Duration(defaultFlushEvery)
	}

	if c.NameRefreshInterval <= 0 {
		c.NameRefreshInterval = Duration(defaultNameRefresh)
	}

	return nil
}
