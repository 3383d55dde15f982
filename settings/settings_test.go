package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvTransform(t *testing.T) {
	assert.Equal(t, "server.port", envTransform("RIOOL_SERVER__PORT"))
	assert.Equal(t, "database.connection_string", envTransform("RIOOL_DATABASE__CONNECTION_STRING"))
	assert.Equal(t, "log.level", envTransform("RIOOL_LOG__LEVEL"))
}

func TestValidate_Defaults(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestValidate_Invalid(t *testing.T) {
	c := Default()
	c.Server.Port = 0
	assert.Error(t, Validate(c))

	c = Default()
	c.Log.Level = "loud"
	assert.Error(t, Validate(c))

	c = Default()
	c.Database.ConnectionString = ""
	assert.Error(t, Validate(c))
}

func TestInitializeConfig_EnvOverride(t *testing.T) {
	t.Setenv("RIOOL_SERVER__PORT", "9090")
	t.Setenv("RIOOL_UPLOAD__DIR", "/tmp/riool-uploads")
	t.Setenv("RIOOL_LOG__LEVEL", "debug")

	require.NoError(t, InitializeConfig())

	c := GetConfig()
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, "/tmp/riool-uploads", c.Upload.Dir)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, Default().Database.ConnectionString, c.Database.ConnectionString)
}
