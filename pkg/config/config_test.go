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
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultDataRoot, cfg.Run.DataRoot)
	assert.Equal(t, DefaultCatalog, cfg.Run.Catalog)
	assert.Equal(t, DefaultHistory, cfg.Run.History)
	assert.Equal(t, DefaultAsOf, cfg.Run.AsOf)
	assert.Equal(t, DefaultAddr, cfg.Run.Addr)
	assert.Equal(t, 30*time.Second, cfg.Run.LoadTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  root: /srv/public
  catalog: table:offer_lookup
  history: s3://reports/offer_history.csv
  dsn: sqlite:///var/lib/offers.db
  timeout: 5s
s3:
  region: eu-west-3
report:
  as_of: "2021-05-31"
server:
  addr: ":9000"
log:
  level: debug
`), 0o644))

	t.Setenv("OFFER_CLV_ADDR", ":9100")
	t.Setenv("OFFER_CLV_VERBOSE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/public", cfg.Run.DataRoot)
	assert.Equal(t, "table:offer_lookup", cfg.Run.Catalog)
	assert.Equal(t, "s3://reports/offer_history.csv", cfg.Run.History)
	assert.Equal(t, "sqlite:///var/lib/offers.db", cfg.Run.DSN)
	assert.Equal(t, 5*time.Second, cfg.Run.LoadTimeout)
	assert.Equal(t, "eu-west-3", cfg.S3Region)
	assert.Equal(t, "2021-05-31", cfg.Run.AsOf)
	assert.Equal(t, ":9100", cfg.Run.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Run.Verbose)
}

func TestLoad_BadInputs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	t.Setenv("OFFER_CLV_TIMEOUT", "soon")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	bad := cfg
	bad.Run.AsOf = "30/04/2021"
	assert.EqualError(t, bad.Validate(), `as-of date "30/04/2021": expected YYYY-MM-DD`)

	bad = cfg
	bad.Run.Format = "xml"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Run.History = ""
	assert.Error(t, bad.Validate())
}
