package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost:8080", cfg.Server.Addr())
	assert.Equal(t, []string{"http://localhost:5000"}, cfg.Backend.Endpoints)
	assert.Equal(t, "/api/subcategories", cfg.Backend.SubcategoriesPath)
	assert.Equal(t, 4, cfg.Menu.ChunkSize)
	assert.Equal(t, 3, cfg.Menu.MaxCols)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTLDuration())
	assert.Equal(t, 250*time.Millisecond, cfg.Search.Debounce())
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 9000
backend:
  endpoints:
    - http://api-a.internal
    - http://api-b.internal
menu:
  chunk_size: 6
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Chdir(dir)
	t.Setenv("MENU_MAX_COLS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"http://api-a.internal", "http://api-b.internal"}, cfg.Backend.Endpoints)
	assert.Equal(t, 6, cfg.Menu.ChunkSize)
	assert.Equal(t, 5, cfg.Menu.MaxCols)
}

func TestLoad_BrokenFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0o644))
	t.Chdir(dir)

	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "shop", User: "u", Password: "p"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=shop sslmode=disable", d.DSN())
}
