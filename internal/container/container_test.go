package container

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/expense-approvals/internal/application/service"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "expenses.db")
	cfg.Storage.LocalDir = filepath.Join(dir, "objects")
	cfg.Auth.JWTSecret = strings.Repeat("s", 32)
	cfg.Auth.BcryptCost = 4
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "jwt_secret"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "ftp" }, "storage.driver"},
		{"minio without endpoint", func(c *Config) { c.Storage.Driver = StorageDriverMinio }, "endpoint"},
		{"minio without credentials", func(c *Config) {
			c.Storage.Driver = StorageDriverMinio
			c.Storage.Endpoint = "localhost:9000"
		}, "credentials"},
		{"no bucket", func(c *Config) { c.Storage.Bucket = "" }, "bucket"},
		{"zero orphan age", func(c *Config) { c.Worker.OrphanAge = 0 }, "worker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewContainer_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = ""
	_, err := NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(nil, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx), "second start must fail")

	health := c.Health(ctx)
	assert.True(t, health.Overall, "%+v", health.Components)
	assert.Equal(t, 2, c.Workers().GetWorkerCount())

	// the wired services work end to end against the real store
	session, err := c.Services().Auth.SignUp(ctx, service.SignUpRequest{
		Email:       "owner@example.com",
		Password:    "correct-horse-battery",
		FullName:    "Olive Owner",
		CompanyName: "Acme",
		Currency:    "USD",
	})
	require.NoError(t, err)
	assert.True(t, session.Profile.HasRole(entity.RoleAdmin))

	actor, _, err := c.Services().Auth.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.Profile.CompanyID, actor.CompanyID)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(ctx))
}
