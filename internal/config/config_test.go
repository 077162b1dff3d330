package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_DSN", "host=localhost user=fs dbname=fs sslmode=disable")
	t.Setenv("JWT_SECRET", "secret")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "./reports", cfg.ReportsDir)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 60*time.Second, cfg.RenderTimeout)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, "admin@example.com", cfg.AdminEmail)
	assert.Empty(t, cfg.RedisAddr)
	assert.False(t, cfg.MinIOUseSSL)
}

func TestFromEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("RENDER_TIMEOUT", "15s")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SMTP_USER", "mailer@example.com")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.RenderTimeout)
	assert.Equal(t, 2525, cfg.SMTPPort)
	assert.Equal(t, "mailer@example.com", cfg.MailFrom)
	assert.True(t, cfg.MinIOUseSSL)
}

func TestFromEnvRequired(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("JWT_SECRET", "secret")
	_, err := FromEnv()
	assert.EqualError(t, err, "DB_DSN is not set")

	t.Setenv("DB_DSN", "dsn")
	t.Setenv("JWT_SECRET", "")
	_, err = FromEnv()
	assert.EqualError(t, err, "JWT_SECRET is not set")
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_TTL", "forever")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvRejectsNonPositiveDurations(t *testing.T) {
	for _, key := range []string{"RENDER_TIMEOUT", "JWT_TTL"} {
		for _, v := range []string{"0", "0s", "-5s"} {
			t.Run(key+"="+v, func(t *testing.T) {
				setRequired(t)
				t.Setenv(key, v)

				_, err := FromEnv()
				assert.EqualError(t, err, key+" must be a positive duration like 30s or 1h")
			})
		}
	}
}
