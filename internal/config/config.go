// Package config loads the dbpool application document.
//
// The document is YAML with three sections:
//
//	logger:
//	  level: info
//	  format: json
//	server:
//	  addr: ":8080"
//	database:
//	  driver: postgres
//	  url: postgres://db:5432/cloudbeaver
//	  user: cb
//	  password: ${CB_DB_PASSWORD}
//	  createDatabase: true
//	  pool:
//	    maxConnections: 50
//
// ${VAR} references inside scalar values are expanded from the environment
// after parsing; any other "$" is kept as written and "$${" yields a literal
// "${". Missing database pool keys keep their defaults (see
// database.PoolSettings).
package config

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/koustreak/dbpool/internal/database"
	"github.com/koustreak/dbpool/internal/errs"
	"github.com/koustreak/dbpool/internal/filestore"
	"github.com/koustreak/dbpool/internal/logger"
	"go.yaml.in/yaml/v3"
)

// maxDocumentSize bounds how much LoadFromStore reads from one object.
const maxDocumentSize = 1 << 20

// Config is the decoded application document.
type Config struct {
	Logger   logger.Config    `yaml:"logger"`
	Server   ServerConfig     `yaml:"server"`
	Database *database.Config `yaml:"database"`
}

// ServerConfig configures the health surface.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// DefaultServerConfig returns the server defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Parse decodes an application document. Unknown top-level sections are
// rejected; an empty document, or an empty database section, yields
// defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		Logger:   *logger.DefaultConfig(),
		Server:   DefaultServerConfig(),
		Database: database.NewConfig("", "", ""),
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid configuration document", err)
	}
	if root.Kind == 0 || (root.Kind == yaml.DocumentNode && len(root.Content) == 0) {
		return cfg, nil
	}
	expandEnv(&root)

	expanded, err := yaml.Marshal(&root)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid configuration document", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid configuration document", err)
	}

	// "database:" with no value decodes to nil without reaching
	// database.Config's UnmarshalYAML.
	if cfg.Database == nil {
		cfg.Database = database.NewConfig("", "", "")
	}

	return cfg, nil
}

var envRef = regexp.MustCompile(`\$\$\{|\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv rewrites ${NAME} references in the scalar values under n.
// A plain scalar that changed loses its tag so that, for example,
// "maxConnections: ${DB_MAX_CONNS}" still decodes as a number.
func expandEnv(n *yaml.Node) {
	switch n.Kind {
	case yaml.ScalarNode:
		out := envRef.ReplaceAllStringFunc(n.Value, func(ref string) string {
			if ref == "$${" {
				return "${"
			}
			return os.Getenv(ref[2 : len(ref)-1])
		})
		if out == n.Value {
			return
		}
		n.Value = out
		if n.Style == 0 {
			n.Tag = ""
		}
	case yaml.MappingNode:
		for i := 1; i < len(n.Content); i += 2 {
			expandEnv(n.Content[i])
		}
	default:
		for _, c := range n.Content {
			expandEnv(c)
		}
	}
}

// LoadFile reads and parses the document at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.Wrap(errs.ErrKindNotFound, "configuration file not found", err)
		}
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to read configuration file", err)
	}
	return Parse(data)
}

// LoadFromStore fetches the document stored at bucket/key and parses it.
func LoadFromStore(ctx context.Context, store filestore.Store, bucket, key string) (*Config, error) {
	obj, err := store.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	if info := obj.Info(); info != nil && info.Size > maxDocumentSize {
		return nil, errs.Newf(errs.ErrKindInvalidInput,
			"configuration object %s/%s is %d bytes, limit is %d", bucket, key, info.Size, maxDocumentSize)
	}

	data, err := io.ReadAll(io.LimitReader(obj, maxDocumentSize+1))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to read configuration object", err)
	}
	if len(data) > maxDocumentSize {
		return nil, errs.Newf(errs.ErrKindInvalidInput,
			"configuration object %s/%s exceeds %d bytes", bucket, key, maxDocumentSize)
	}
	return Parse(data)
}
