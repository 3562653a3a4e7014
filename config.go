package dbscript

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"

	"github.com/lucasefe/dbscript/schema"
	"github.com/lucasefe/dbscript/scripter"
)

var (
	// ErrNoOutputMode is returned when neither full nor separate output is enabled.
	ErrNoOutputMode = scripter.ErrNoOutputMode
	// ErrNoDatabase is returned when no connection information is supplied.
	ErrNoDatabase = errors.New("invalid connection information supplied, specify server and database or a connection url")
)

// Config controls one scripting run.
type Config struct {
	// URL is a driver connection string. When set, Server, Database, User
	// and Password are not used to connect.
	URL string `yaml:"url"`
	// Dialect is mssql (default), postgres or mysql.
	Dialect  string `yaml:"dialect"`
	Server   string `yaml:"server"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// Trusted uses integrated security. A config without user and password
	// is trusted as well.
	Trusted bool `yaml:"trusted"`

	// Output is the root output directory.
	Output string `yaml:"output"`
	// Full writes one script for the whole database.
	Full bool `yaml:"full"`
	// Separate writes one file per object.
	Separate bool `yaml:"separate"`
	// Types is a comma separated list of kind codes or names. Empty means all.
	Types string `yaml:"types"`
	// Filter is a case-insensitive regular expression matched against object names.
	Filter  string `yaml:"filter"`
	Verbose bool   `yaml:"verbose"`

	// CrossKind lets the full script follow dependencies across kinds.
	CrossKind      bool              `yaml:"cross_kind"`
	ExcludeSchemas []string          `yaml:"exclude_schemas"`
	TypeMappings   map[string]string `yaml:"type_mappings"`

	// DOT is an optional path for a Graphviz rendering of the dependency graph.
	DOT   string       `yaml:"dot"`
	Neo4j *Neo4jConfig `yaml:"neo4j"`
}

// Neo4jConfig selects a Neo4j database to load the dependency graph into.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// Clean removes the previously loaded graph of the database first.
	Clean bool `yaml:"clean"`
}

// DefaultConfig returns a config writing to the system temp directory.
func DefaultConfig() *Config {
	return &Config{
		Dialect: string(schema.MSSQL),
		Output:  os.TempDir(),
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// IsTrusted reports whether the connection uses integrated security.
func (c *Config) IsTrusted() bool {
	return c.Trusted || (c.User == "" && c.Password == "")
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.URL == "" && (c.Server == "" || c.Database == "") {
		errs = append(errs, ErrNoDatabase)
	}
	if !c.Full && !c.Separate {
		errs = append(errs, ErrNoOutputMode)
	}
	if c.URL == "" && !c.IsTrusted() && c.User == "" {
		errs = append(errs, errors.New("no user id specified for sql user connection"))
	}
	if _, err := schema.ParseDialect(c.Dialect); err != nil {
		errs = append(errs, err)
	}
	if _, err := schema.ParseKinds(c.Types); err != nil {
		errs = append(errs, fmt.Errorf("invalid types parameter: %w", err))
	}
	if _, err := c.filter(); err != nil {
		errs = append(errs, err)
	}
	if c.Neo4j != nil && c.Neo4j.URI == "" {
		errs = append(errs, errors.New("neo4j uri is required"))
	}

	return errors.Join(errs...)
}

func (c *Config) filter() (*schema.Filter, error) {
	if c.Filter == "" {
		return nil, nil
	}
	return schema.NewFilter(c.Filter)
}

// DSN returns the connection string for the configured dialect.
func (c *Config) DSN() (string, error) {
	if c.URL != "" {
		return c.URL, nil
	}
	dialect, err := schema.ParseDialect(c.Dialect)
	if err != nil {
		return "", err
	}
	if c.Server == "" || c.Database == "" {
		return "", ErrNoDatabase
	}

	switch dialect {
	case schema.Postgres:
		u := &url.URL{Scheme: "postgres", Host: c.Server, Path: "/" + c.Database}
		if !c.IsTrusted() {
			u.User = url.UserPassword(c.User, c.Password)
		}
		return u.String(), nil
	case schema.MySQL:
		cfg := mysql.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = c.Server
		cfg.DBName = c.Database
		if !c.IsTrusted() {
			cfg.User = c.User
			cfg.Passwd = c.Password
		}
		return cfg.FormatDSN(), nil
	default:
		host, instance, _ := strings.Cut(c.Server, `\`)
		u := &url.URL{Scheme: "sqlserver", Host: host}
		if instance != "" {
			u.Path = "/" + instance
		}
		if !c.IsTrusted() {
			u.User = url.UserPassword(c.User, c.Password)
		}
		u.RawQuery = url.Values{"database": {c.Database}}.Encode()
		return u.String(), nil
	}
}
