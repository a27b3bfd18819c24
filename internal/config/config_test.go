package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnvOverrides(t *testing.T) {
	t.Setenv("HOSPITAL_AUTH_JWT_SECRET", "test-secret")
	t.Setenv("HOSPITAL_SERVER_PORT", "9090")
	t.Setenv("HOSPITAL_NOTIFICATION_DRIVER", "relay")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "relay", cfg.Notification.Driver)
	assert.Equal(t, "disk", cfg.Charts.Driver)
	assert.Equal(t, time.Hour, cfg.Auth.TokenExpiry)
	assert.Equal(t, "hospital", cfg.Auth.Realm)
	assert.Equal(t, int64(10<<20), cfg.Documents.MaxUploadSize)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("HOSPITAL_AUTH_JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := &Config{}
		c.Server.Port = 8080
		c.Auth.JWTSecret = "s"
		c.Notification.Driver = "log"
		c.Notification.ReminderTime = "08:00"
		c.Charts.Driver = "disk"
		return c
	}

	require.NoError(t, valid().Validate())

	c := valid()
	c.Notification.Driver = "pigeon"
	assert.Error(t, c.Validate())

	c = valid()
	c.Charts.Driver = "s3"
	assert.Error(t, c.Validate())

	c = valid()
	c.Notification.ReminderTime = "8am"
	assert.Error(t, c.Validate())

	c = valid()
	c.Server.Port = 0
	assert.Error(t, c.Validate())
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=n sslmode=disable", d.DSN())
}
