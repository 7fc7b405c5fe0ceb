package database

import (
	"net/url"
	"strings"
	"sync"

	"github.com/koustreak/dbpool/internal/errs"
	"github.com/rs/zerolog"
	"go.yaml.in/yaml/v3"
)

// Driver identifies the database engine.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// ParseDriver normalises a driver identifier. "postgresql" is accepted as an
// alias of DriverPostgres. An empty or unknown name is an invalid_input error.
func ParseDriver(name string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pgx":
		return DriverPostgres, nil
	case "mysql":
		return DriverMySQL, nil
	case "":
		return "", errs.New(errs.ErrKindInvalidInput, "database driver is not set")
	default:
		return "", errs.Newf(errs.ErrKindInvalidInput, "unsupported database driver %q", name)
	}
}

const (
	DefaultMinIdleConnections = 2
	DefaultMaxIdleConnections = 10
	DefaultMaxConnections     = 1000
	DefaultValidationQuery    = "SELECT 1"
)

// PoolSettings carries connection-pool tuning. The zero value is not
// meaningful; use DefaultPoolSettings or NewPoolSettings.
//
// PoolSettings does not check its values. Pool constructors call ValidatePool.
type PoolSettings struct {
	minIdleConnections int
	maxIdleConnections int
	maxConnections     int
	validationQuery    string
}

// DefaultPoolSettings returns the settings used when nothing overrides them:
// 2 idle minimum, 10 idle maximum, 1000 connections, "SELECT 1".
func DefaultPoolSettings() PoolSettings {
	return PoolSettings{
		minIdleConnections: DefaultMinIdleConnections,
		maxIdleConnections: DefaultMaxIdleConnections,
		maxConnections:     DefaultMaxConnections,
		validationQuery:    DefaultValidationQuery,
	}
}

// PoolOption overrides a single PoolSettings field.
type PoolOption func(*PoolSettings)

func WithMinIdleConnections(n int) PoolOption {
	return func(p *PoolSettings) { p.minIdleConnections = n }
}

func WithMaxIdleConnections(n int) PoolOption {
	return func(p *PoolSettings) { p.maxIdleConnections = n }
}

func WithMaxConnections(n int) PoolOption {
	return func(p *PoolSettings) { p.maxConnections = n }
}

func WithValidationQuery(q string) PoolOption {
	return func(p *PoolSettings) { p.validationQuery = q }
}

// NewPoolSettings applies opts on top of DefaultPoolSettings.
func NewPoolSettings(opts ...PoolOption) PoolSettings {
	p := DefaultPoolSettings()
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p PoolSettings) MinIdleConnections() int { return p.minIdleConnections }
func (p PoolSettings) MaxIdleConnections() int { return p.maxIdleConnections }
func (p PoolSettings) MaxConnections() int     { return p.maxConnections }
func (p PoolSettings) ValidationQuery() string { return p.validationQuery }

// poolDocument is the serialized shape of PoolSettings.
type poolDocument struct {
	MinIdleConnections int    `yaml:"minIdleConnections" json:"minIdleConnections"`
	MaxIdleConnections int    `yaml:"maxIdleConnections" json:"maxIdleConnections"`
	MaxConnections     int    `yaml:"maxConnections"     json:"maxConnections"`
	ValidationQuery    string `yaml:"validationQuery"    json:"validationQuery"`
}

func (p PoolSettings) document() poolDocument {
	return poolDocument{
		MinIdleConnections: p.minIdleConnections,
		MaxIdleConnections: p.maxIdleConnections,
		MaxConnections:     p.maxConnections,
		ValidationQuery:    p.validationQuery,
	}
}

func (d poolDocument) settings() PoolSettings {
	return PoolSettings{
		minIdleConnections: d.MinIdleConnections,
		maxIdleConnections: d.MaxIdleConnections,
		maxConnections:     d.MaxConnections,
		validationQuery:    d.ValidationQuery,
	}
}

// UnmarshalYAML decodes a pool block. Keys absent from the block keep their
// default value.
func (p *PoolSettings) UnmarshalYAML(value *yaml.Node) error {
	doc := DefaultPoolSettings().document()
	if err := value.Decode(&doc); err != nil {
		return err
	}
	*p = doc.settings()
	return nil
}

// MarshalYAML renders the pool block with every field present.
func (p PoolSettings) MarshalYAML() (interface{}, error) {
	return p.document(), nil
}

func (p PoolSettings) MarshalZerologObject(e *zerolog.Event) {
	e.Int("min_idle_connections", p.minIdleConnections).
		Int("max_idle_connections", p.maxIdleConnections).
		Int("max_connections", p.maxConnections).
		Str("validation_query", p.validationQuery)
}

// Config holds the settings for establishing and pooling connections to one
// database.
//
// Config is built once at startup and read afterwards. Driver is the only
// field that can change after construction; it is safe to call SetDriver
// while other goroutines read the config.
//
// The zero value has an all-zero Pool; use NewConfig or decode from YAML.
type Config struct {
	mu     sync.RWMutex
	driver Driver

	url            string
	user           string
	password       string
	createDatabase bool
	pool           PoolSettings
}

// ConfigOption sets a Config field at construction time.
type ConfigOption func(*Config)

func WithDriver(d Driver) ConfigOption {
	return func(c *Config) { c.driver = d }
}

// WithCreateDatabase asks the bootstrapper to create the target database
// when it does not exist.
func WithCreateDatabase(create bool) ConfigOption {
	return func(c *Config) { c.createDatabase = create }
}

func WithPool(p PoolSettings) ConfigOption {
	return func(c *Config) { c.pool = p }
}

// NewConfig returns a Config for url with the given credentials. The pool
// uses DefaultPoolSettings unless WithPool is passed; CreateDatabase is false
// unless WithCreateDatabase is passed.
func NewConfig(url, user, password string, opts ...ConfigOption) *Config {
	c := &Config{
		url:      url,
		user:     user,
		password: password,
		pool:     DefaultPoolSettings(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Driver returns the configured driver, or "" if none was set.
func (c *Config) Driver() Driver {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.driver
}

// SetDriver replaces the driver identifier. The value is not checked.
func (c *Config) SetDriver(d Driver) {
	c.mu.Lock()
	c.driver = d
	c.mu.Unlock()
}

func (c *Config) URL() string          { return c.url }
func (c *Config) User() string         { return c.user }
func (c *Config) Password() string     { return c.password }
func (c *Config) CreateDatabase() bool { return c.createDatabase }

// Pool returns the pool settings. It is never empty: a config that was not
// given pool settings carries DefaultPoolSettings.
func (c *Config) Pool() PoolSettings { return c.pool }

// configDocument is the serialized shape of Config.
type configDocument struct {
	Driver         string       `yaml:"driver"         json:"driver"`
	URL            string       `yaml:"url"            json:"url"`
	User           string       `yaml:"user"           json:"user"`
	Password       string       `yaml:"password"       json:"password"`
	CreateDatabase bool         `yaml:"createDatabase" json:"createDatabase"`
	Pool           poolDocument `yaml:"pool"           json:"pool"`
}

// UnmarshalYAML decodes a database block. Missing top-level keys stay empty
// (createDatabase stays false); missing pool keys keep their defaults.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	doc := configDocument{Pool: DefaultPoolSettings().document()}
	if err := value.Decode(&doc); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.driver = Driver(doc.Driver)
	c.url = doc.URL
	c.user = doc.User
	c.password = doc.Password
	c.createDatabase = doc.CreateDatabase
	c.pool = doc.Pool.settings()
	return nil
}

// Redacted returns the serialized shape of c with the password masked.
// It is what the health surface reports.
func (c *Config) Redacted() any {
	return configDocument{
		Driver:         string(c.Driver()),
		URL:            redactURL(c.url),
		User:           c.user,
		Password:       mask(c.password),
		CreateDatabase: c.createDatabase,
		Pool:           c.pool.document(),
	}
}

// MarshalZerologObject renders c for structured logs. The password is
// never written.
func (c *Config) MarshalZerologObject(e *zerolog.Event) {
	e.Str("driver", string(c.Driver())).
		Str("url", redactURL(c.url)).
		Str("user", c.user).
		Str("password", mask(c.password)).
		Bool("create_database", c.createDatabase).
		Object("pool", c.pool)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}

// redactURL masks a password embedded in a URL-form connection string.
// Strings that are not URLs are returned unchanged.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); !ok {
		return raw
	}
	return u.Redacted()
}
