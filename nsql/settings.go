package nsql

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Settings holds database connection configuration
type Settings struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	// Ping makes OpenDB check the connection before returning
	Ping bool `yaml:"ping"`
}

// DefaultSettings is an in-memory SQLite database
func DefaultSettings() Settings {
	return Settings{
		Driver: "sqlite3",
		DSN:    ":memory:",
	}.WithDefaults()
}

// WithDefaults fills in pool settings that are zero with values
// that suit the driver.
func (s Settings) WithDefaults() Settings {
	var d Settings
	switch s.Driver {
	case "sqlite3":
		// SQLite works best with a single connection
		d = Settings{MaxOpenConns: 1, MaxIdleConns: 1, ConnMaxLifetime: 24 * time.Hour, ConnMaxIdleTime: 2 * time.Hour}
	case "mysql":
		d = Settings{MaxOpenConns: 50, MaxIdleConns: 20, ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 30 * time.Minute}
	case "postgres":
		d = Settings{MaxOpenConns: 40, MaxIdleConns: 15, ConnMaxLifetime: 45 * time.Minute, ConnMaxIdleTime: 20 * time.Minute}
	default:
		d = Settings{MaxOpenConns: 25, MaxIdleConns: 10, ConnMaxLifetime: 30 * time.Minute, ConnMaxIdleTime: 15 * time.Minute}
	}
	if s.MaxOpenConns == 0 {
		s.MaxOpenConns = d.MaxOpenConns
	}
	if s.MaxIdleConns == 0 {
		s.MaxIdleConns = d.MaxIdleConns
	}
	if s.ConnMaxLifetime == 0 {
		s.ConnMaxLifetime = d.ConnMaxLifetime
	}
	if s.ConnMaxIdleTime == 0 {
		s.ConnMaxIdleTime = d.ConnMaxIdleTime
	}
	return s
}

// Validate checks that the settings can be used to open a database
func (s Settings) Validate() error {
	if s.Driver == "" {
		return errors.New("database driver is required")
	}
	if s.DSN == "" {
		return errors.Errorf("database dsn is required for driver %s", s.Driver)
	}
	if s.MaxIdleConns > s.MaxOpenConns && s.MaxOpenConns > 0 {
		return errors.Errorf("max_idle_conns (%d) is larger than max_open_conns (%d)", s.MaxIdleConns, s.MaxOpenConns)
	}
	return nil
}

// LoadSettings reads YAML settings.  Unknown fields are an error.
// Pool settings that are not given get driver defaults.
func LoadSettings(r io.Reader) (Settings, error) {
	var s Settings
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Settings{}, errors.Wrap(err, "decode database settings")
	}
	s = s.WithDefaults()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// ParseSettings is LoadSettings for a byte slice
func ParseSettings(b []byte) (Settings, error) {
	return LoadSettings(bytes.NewReader(b))
}

// LoadSettingsFile is LoadSettings for a file
func LoadSettingsFile(path string) (Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return Settings{}, errors.Wrap(err, "open database settings")
	}
	defer f.Close()
	s, err := LoadSettings(f)
	return s, errors.Wrap(err, path)
}
