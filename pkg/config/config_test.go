package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "storefront", cfg.DBName)
	assert.Equal(t, "admin", cfg.AdminUsername)
	assert.Equal(t, "storefront", cfg.OTELServiceName)
	assert.True(t, cfg.OTELExporterOTLPInsecure)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("ADMIN_USERNAME", "root-admin")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "no")

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.AppPort)
	assert.Equal(t, "db.internal", cfg.DBHost)
	assert.Equal(t, "root-admin", cfg.AdminUsername)
	assert.False(t, cfg.OTELExporterOTLPInsecure)
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "localhost",
		DBPort:     "3306",
		DBUser:     "shop",
		DBPassword: "pw",
		DBName:     "storefront",
	}
	assert.Equal(t, "shop:pw@tcp(localhost:3306)/storefront?parseTime=true&charset=utf8mb4", cfg.GetDSN())
}
