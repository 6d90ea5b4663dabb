package conf

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindEnvVarsReportsInvalidValues(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("NASKBAN_MYSQL_PORT", "not-a-port")
	t.Setenv("NASKBAN_READONLY", "maybe")

	err := bindEnvVars()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NASKBAN_MYSQL_PORT")
	assert.Contains(t, err.Error(), "NASKBAN_READONLY")
}

func TestBindEnvVarsAcceptsValidValues(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("NASKBAN_SITE_URL", "https://staging.naskban.ir")
	t.Setenv("NASKBAN_DATABASE_TYPE", "MySQL")

	require.NoError(t, bindEnvVars())
	assert.Equal(t, "https://staging.naskban.ir", viper.GetString("main.siteurl"))
}

func TestEnvValidators(t *testing.T) {
	assert.NoError(t, validateEnvPort("3306"))
	assert.Error(t, validateEnvPort("0"))
	assert.NoError(t, validateEnvURL("tcp://broker:1883"))
	assert.Error(t, validateEnvURL("broker"))
	assert.NoError(t, validateEnvDatabaseType("sqlite"))
	assert.Error(t, validateEnvDatabaseType("postgres"))
	assert.NoError(t, validateEnvBool("1"))
}
