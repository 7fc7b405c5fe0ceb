package config

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/koustreak/dbpool/internal/database"
	"github.com/koustreak/dbpool/internal/errs"
	"github.com/koustreak/dbpool/internal/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullDocument = `
logger:
  level: debug
  format: console
server:
  addr: 127.0.0.1:9090
  readTimeout: 2s
database:
  driver: postgres
  url: postgres://db:5432/cloudbeaver
  user: cb
  password: ${CB_DB_PASSWORD}
  createDatabase: true
  pool:
    maxConnections: 50
`

func TestParse_FullDocument(t *testing.T) {
	t.Setenv("CB_DB_PASSWORD", "from-env")

	cfg, err := Parse([]byte(fullDocument))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "rfc3339", cfg.Logger.TimeFormat, "unset logger keys keep defaults")
	assert.NotNil(t, cfg.Logger.Output)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.WriteTimeout)

	db := cfg.Database
	assert.Equal(t, database.DriverPostgres, db.Driver())
	assert.Equal(t, "postgres://db:5432/cloudbeaver", db.URL())
	assert.Equal(t, "cb", db.User())
	assert.Equal(t, "from-env", db.Password())
	assert.True(t, db.CreateDatabase())
	assert.Equal(t, 50, db.Pool().MaxConnections())
	assert.Equal(t, 2, db.Pool().MinIdleConnections())
	assert.Equal(t, 10, db.Pool().MaxIdleConnections())
	assert.Equal(t, "SELECT 1", db.Pool().ValidationQuery())
}

func TestParse_EmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, DefaultServerConfig(), cfg.Server)
	require.NotNil(t, cfg.Database)
	assert.Equal(t, database.Driver(""), cfg.Database.Driver())
	assert.False(t, cfg.Database.CreateDatabase())
	assert.Equal(t, database.DefaultPoolSettings(), cfg.Database.Pool())
}

func TestParse_UnsetEnvExpandsEmpty(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  password: ${DBPOOL_TEST_SURELY_UNSET}\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Database.Password())
}

func TestParse_EmptyDatabaseSection(t *testing.T) {
	for _, doc := range []string{"database:\n", "database: ~\n", "database: null\n"} {
		t.Run(doc, func(t *testing.T) {
			cfg, err := Parse([]byte(doc))
			require.NoError(t, err)
			require.NotNil(t, cfg.Database)

			assert.Equal(t, database.DefaultPoolSettings(), cfg.Database.Pool())
			assert.False(t, cfg.Database.CreateDatabase())

			cfg.Database.SetDriver(database.DriverMySQL)
			assert.Equal(t, database.DriverMySQL, cfg.Database.Driver())
		})
	}
}

func TestParse_LiteralDollarKept(t *testing.T) {
	t.Setenv("x", "injected")

	cfg, err := Parse([]byte("database:\n  password: 'pa$$w0rd$x'\n  url: postgres://db/$app\n"))
	require.NoError(t, err)

	assert.Equal(t, "pa$$w0rd$x", cfg.Database.Password())
	assert.Equal(t, "postgres://db/$app", cfg.Database.URL())
}

func TestParse_BracedReferences(t *testing.T) {
	t.Setenv("CB_DB_USER", "cb")
	t.Setenv("CB_DB_HOST", "db.internal")
	t.Setenv("CB_MAX_CONNS", "64")

	doc := `
database:
  user: ${CB_DB_USER}
  url: "postgres://${CB_DB_HOST}:5432/cloudbeaver"
  password: "$${CB_DB_USER}"
  pool:
    maxConnections: ${CB_MAX_CONNS}
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "cb", cfg.Database.User())
	assert.Equal(t, "postgres://db.internal:5432/cloudbeaver", cfg.Database.URL())
	assert.Equal(t, "${CB_DB_USER}", cfg.Database.Password(), "$${ escapes a reference")
	assert.Equal(t, 64, cfg.Database.Pool().MaxConnections())
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown section", "datasource:\n  url: x\n"},
		{"unknown server key", "server:\n  port: 8080\n"},
		{"bad duration", "server:\n  readTimeout: soon\n"},
		{"malformed yaml", "database: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.True(t, errs.IsInvalidInput(err), "got %v", err)
		})
	}
}

func TestParse_InvalidPoolIsAccepted(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  pool:\n    minIdleConnections: 20\n    maxIdleConnections: 10\n"))
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Database.Pool().MinIdleConnections())
	assert.Error(t, database.ValidatePool(cfg.Database.Pool()))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dbpool.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: mysql\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, database.DriverMySQL, cfg.Database.Driver())
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.True(t, errs.IsNotFound(err))
}

type fakeObject struct {
	io.Reader
	info *filestore.ObjectInfo
}

func (o *fakeObject) Close() error                { return nil }
func (o *fakeObject) Info() *filestore.ObjectInfo { return o.info }

type fakeStore struct {
	objects map[string]string
	sizes   map[string]int64
}

func (s *fakeStore) Ping(context.Context) error { return nil }
func (s *fakeStore) Close() error               { return nil }

func (s *fakeStore) StatObject(_ context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	body, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "no such key")
	}
	size := int64(len(body))
	if override, ok := s.sizes[bucket+"/"+key]; ok {
		size = override
	}
	return &filestore.ObjectInfo{Key: key, Size: size}, nil
}

func (s *fakeStore) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	info, err := s.StatObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	return &fakeObject{Reader: strings.NewReader(s.objects[bucket+"/"+key]), info: info}, nil
}

func TestLoadFromStore(t *testing.T) {
	store := &fakeStore{objects: map[string]string{
		"settings/dbpool.yaml": "database:\n  driver: postgres\n  pool:\n    validationQuery: SELECT now()\n",
	}}

	cfg, err := LoadFromStore(context.Background(), store, "settings", "dbpool.yaml")
	require.NoError(t, err)

	assert.Equal(t, database.DriverPostgres, cfg.Database.Driver())
	assert.Equal(t, "SELECT now()", cfg.Database.Pool().ValidationQuery())
	assert.Equal(t, 1000, cfg.Database.Pool().MaxConnections())
}

func TestLoadFromStore_Errors(t *testing.T) {
	store := &fakeStore{
		objects: map[string]string{"settings/huge.yaml": "database: {}\n"},
		sizes:   map[string]int64{"settings/huge.yaml": maxDocumentSize + 1},
	}

	_, err := LoadFromStore(context.Background(), store, "settings", "missing.yaml")
	assert.True(t, errs.IsNotFound(err))

	_, err = LoadFromStore(context.Background(), store, "settings", "huge.yaml")
	assert.True(t, errs.IsInvalidInput(err))
}
