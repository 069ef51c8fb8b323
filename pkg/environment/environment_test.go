package environment

import (
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetenv removes a variable after t.Setenv has registered its restore.
func unsetenv(key string) error {
	return os.Unsetenv(key)
}

func TestNewEnvironmentDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()

	environ, err := NewEnvironment(fs)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", environ.Host)
	assert.Equal(t, 8080, environ.Port)
	assert.Equal(t, "uploads", environ.UploadDir)
	assert.Equal(t, 24, environ.SessionTTLHours)
	assert.Equal(t, 60, environ.SweepIntervalMinutes)
	assert.Equal(t, "llava", environ.Model)
	assert.Equal(t, "*", environ.CORSOrigins)
}

func TestNewEnvironmentOverrides(t *testing.T) {
	t.Setenv("IMGSMITH_HOST", "0.0.0.0")
	t.Setenv("IMGSMITH_PORT", "3001")
	t.Setenv("IMGSMITH_UPLOAD_DIR", "/var/lib/imgsmith/uploads")
	t.Setenv("IMGSMITH_SESSION_TTL_HOURS", "48")

	environ, err := NewEnvironment(afero.NewMemMapFs())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", environ.Host)
	assert.Equal(t, 3001, environ.Port)
	assert.Equal(t, "/var/lib/imgsmith/uploads", environ.UploadDir)
	assert.Equal(t, 48, environ.SessionTTLHours)
}

func TestLoadDotEnv(t *testing.T) {
	// Make sure the variable is unset so the .env value wins.
	t.Setenv("IMGSMITH_MODEL", "")
	require.NoError(t, unsetenv("IMGSMITH_MODEL"))

	fs := afero.NewMemMapFs()
	err := afero.WriteFile(fs, DotEnvFileName, []byte("IMGSMITH_MODEL=bakllava\n"), 0o644)
	require.NoError(t, err)

	environ, err := NewEnvironment(fs)
	require.NoError(t, err)
	assert.Equal(t, "bakllava", environ.Model)
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	t.Setenv("IMGSMITH_MODEL", "llava")

	fs := afero.NewMemMapFs()
	err := afero.WriteFile(fs, DotEnvFileName, []byte("IMGSMITH_MODEL=bakllava\n"), 0o644)
	require.NoError(t, err)

	environ, err := NewEnvironment(fs)
	require.NoError(t, err)
	assert.Equal(t, "llava", environ.Model)
}
