package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"SHIFTCAL_AI_PROVIDER", "GEMINI_API_KEY", "OPENAI_API_KEY", "SHIFTCAL_USER_NAME",
		"SHIFTCAL_CALENDAR_ID", "GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "MSGRAPH_CLIENT_ID", "MSGRAPH_TENANT_ID",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFile_MissingGivesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadFile_ParsesSections(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[user]
name = "Ana"

[ai]
provider = "openai"
model = "gpt-4o"
reference_year = 2025

[calendar]
provider = "ics"
time_zone = "Europe/Stockholm"
max_concurrent_inserts = 4

[calendar.ics]
path = "/tmp/shifts.ics"

[notifications]
enabled = false
`), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Ana", cfg.User.Name)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, 2025, cfg.AI.ReferenceYear)
	assert.Equal(t, "ics", cfg.Calendar.Provider)
	assert.Equal(t, 4, cfg.Calendar.MaxConcurrentInserts)
	assert.Equal(t, "/tmp/shifts.ics", cfg.Calendar.ICS.Path)
	assert.Equal(t, "Shift: ", cfg.Calendar.EventTitle, "default kept")
	assert.False(t, cfg.Notifications.Enabled)
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SHIFTCAL_AI_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "gm-test")
	t.Setenv("SHIFTCAL_USER_NAME", "Bo")
	t.Setenv("MSGRAPH_TENANT_ID", "tenant")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.Equal(t, "Bo", cfg.User.Name)
	assert.Equal(t, "tenant", cfg.Calendar.Graph.TenantID)
}

func TestLoadFile_BadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ai\n"), 0644))
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestSet_PreservesOtherKeys(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, WriteDefault(path))

	require.NoError(t, Set(path, "calendar.google.client_id", "abc.apps.googleusercontent.com"))
	require.NoError(t, Set(path, "calendar.max_concurrent_inserts", "3"))
	require.NoError(t, Set(path, "notifications.enabled", "false"))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc.apps.googleusercontent.com", cfg.Calendar.Google.ClientID)
	assert.Equal(t, 3, cfg.Calendar.MaxConcurrentInserts)
	assert.False(t, cfg.Notifications.Enabled)
	assert.Equal(t, "gemini", cfg.AI.Provider)
}

func TestSet_RejectsBadValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	assert.Error(t, Set(path, "calendar.max_concurrent_inserts", "many"))
	assert.Error(t, Set(path, "ai..model", "x"))
	assert.Error(t, Set(path, "ai.modle", "gpt-4.1"))
	assert.Error(t, Set(path, "calendar.google", "x"))
	assert.Error(t, Set(path, "notifications.enabled", "sometimes"))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSet_StringSettingsKeepLiterals(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	require.NoError(t, Set(path, "user.name", "T"))
	require.NoError(t, Set(path, "calendar.calendar_id", "12345"))
	require.NoError(t, Set(path, "ai.model", "true"))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "T", cfg.User.Name)
	assert.Equal(t, "12345", cfg.Calendar.CalendarID)
	assert.Equal(t, "true", cfg.AI.Model)
}
