package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	User          UserConfig     `toml:"user"`
	AI            AIConfig       `toml:"ai"`
	Calendar      CalendarConfig `toml:"calendar"`
	Notifications NotifyConfig   `toml:"notifications"`
}

type UserConfig struct {
	Name string `toml:"name"`
}

type AIConfig struct {
	Provider      string `toml:"provider"` // "gemini", "openai" or "claude-cli"
	Model         string `toml:"model"`
	APIKey        string `toml:"api_key"`
	ReferenceYear int    `toml:"reference_year"`
}

type NotifyConfig struct {
	Enabled bool `toml:"enabled"`
}

type CalendarConfig struct {
	Provider             string       `toml:"provider"` // "google", "graph" or "ics"
	CalendarID           string       `toml:"calendar_id"`
	TimeZone             string       `toml:"time_zone"`
	MaxConcurrentInserts int          `toml:"max_concurrent_inserts"`
	EventTitle           string       `toml:"event_title"`
	Google               GoogleConfig `toml:"google"`
	Graph                GraphConfig  `toml:"graph"`
	ICS                  ICSConfig    `toml:"ics"`
}

type GoogleConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

type GraphConfig struct {
	ClientID string `toml:"client_id"`
	TenantID string `toml:"tenant_id"`
}

type ICSConfig struct {
	Path string `toml:"path"`
}

func DefaultConfig() Config {
	return Config{
		AI: AIConfig{
			Provider: "gemini",
		},
		Calendar: CalendarConfig{
			Provider:   "google",
			EventTitle: "Shift: ",
		},
		Notifications: NotifyConfig{
			Enabled: true,
		},
	}
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "shiftcal"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config from the default path.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. A missing file yields the defaults.
// Environment overrides are applied in both cases.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SHIFTCAL_AI_PROVIDER"); v != "" {
		cfg.AI.Provider = v
	}
	if cfg.AI.APIKey == "" {
		switch cfg.AI.Provider {
		case "gemini", "":
			cfg.AI.APIKey = os.Getenv("GEMINI_API_KEY")
		case "openai":
			cfg.AI.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if v := os.Getenv("SHIFTCAL_USER_NAME"); v != "" {
		cfg.User.Name = v
	}
	if v := os.Getenv("SHIFTCAL_CALENDAR_ID"); v != "" {
		cfg.Calendar.CalendarID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.Calendar.Google.ClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.Calendar.Google.ClientSecret = v
	}
	if v := os.Getenv("MSGRAPH_CLIENT_ID"); v != "" {
		cfg.Calendar.Graph.ClientID = v
	}
	if v := os.Getenv("MSGRAPH_TENANT_ID"); v != "" {
		cfg.Calendar.Graph.TenantID = v
	}
}

func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// WriteDefault writes the default config to path unless a file exists.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	out, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}

// Set persists one dotted key such as "calendar.google.client_id" to the
// file at path, preserving other settings. The key must name a setting and
// value must parse as that setting's type.
func Set(path, key, value string) error {
	kind, err := keyKind(key)
	if err != nil {
		return err
	}
	v, err := coerce(kind, value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	cfg := make(map[string]any)

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	parts := strings.Split(key, ".")
	table := cfg
	for _, p := range parts[:len(parts)-1] {
		next, ok := table[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			table[p] = next
		}
		table = next
	}
	table[parts[len(parts)-1]] = v

	// The rest of the file must still decode.
	check := DefaultConfig()
	out, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := toml.Unmarshal(out, &check); err != nil {
		return fmt.Errorf("invalid config after setting %s: %w", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}

// keyKind walks the toml tags of Config and returns the kind of the setting
// key names.
func keyKind(key string) (reflect.Kind, error) {
	t := reflect.TypeOf(Config{})
	parts := strings.Split(key, ".")
	for i, p := range parts {
		field, ok := tomlField(t, p)
		if !ok {
			return reflect.Invalid, fmt.Errorf("unknown config key %q", key)
		}
		t = field.Type
		last := i == len(parts)-1
		if last != (t.Kind() != reflect.Struct) {
			return reflect.Invalid, fmt.Errorf("unknown config key %q", key)
		}
	}
	return t.Kind(), nil
}

func tomlField(t reflect.Type, name string) (reflect.StructField, bool) {
	if name == "" || t.Kind() != reflect.Struct {
		return reflect.StructField{}, false
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		if tag == name {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

func coerce(kind reflect.Kind, v string) (any, error) {
	switch kind {
	case reflect.Int, reflect.Int64:
		return strconv.ParseInt(v, 10, 64)
	case reflect.Bool:
		return strconv.ParseBool(v)
	}
	return v, nil
}
