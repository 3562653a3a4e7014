package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/jessevdk/go-flags"

	"github.com/lucasefe/dbscript"
)

const version = "1.0.0"

// Options are the command line flags. Flags override environment values,
// which override the config file.
type Options struct {
	Config  string `long:"config" description:"YAML config file"`
	URL     string `long:"url" env:"DATABASE_URL" description:"connection URL, replaces server, database, user and password"`
	Dialect string `long:"dialect" env:"DBSCRIPT_DIALECT" description:"database dialect" choice:"mssql" choice:"postgres" choice:"mysql"`

	Server   string `short:"s" long:"server" env:"DBSCRIPT_SERVER" description:"server to connect to"`
	Database string `short:"d" long:"database" env:"DBSCRIPT_DATABASE" description:"database to script"`
	Trusted  bool   `short:"e" long:"trusted" description:"use trusted connection"`
	User     string `short:"u" long:"user" env:"DBSCRIPT_USER" description:"sql login user id"`
	Password string `short:"p" long:"password" env:"DBSCRIPT_PASSWORD" description:"sql login password"`

	Output   string `short:"o" long:"output" env:"DBSCRIPT_OUTPUT" description:"output directory (default: system temp dir)"`
	Full     bool   `long:"full" description:"output one file for all objects"`
	Separate bool   `long:"sep" description:"output a separate file per object"`
	Types    string `long:"types" env:"DBSCRIPT_TYPES" description:"comma separated kinds to script: 1 tables, 2 views, 3 stored procedures, 4 user defined functions, 5 schemas"`
	Filter   string `long:"filter" env:"DBSCRIPT_FILTER" description:"regular expression selecting object names"`
	Verbose  bool   `short:"v" long:"verbose" description:"verbose logging"`

	CrossKind      bool     `long:"cross-kind" description:"follow dependencies across kinds in the full script"`
	ExcludeSchemas []string `short:"x" long:"exclude-schema" description:"schema to leave out, repeatable"`
	DOT            string   `long:"dot" description:"write the dependency graph in Graphviz format to this file"`

	Neo4jURI      string `long:"neo4j-uri" env:"NEO4J_URI" description:"load the dependency graph into this Neo4j database"`
	Neo4jUser     string `long:"neo4j-user" env:"NEO4J_USER" description:"Neo4j user (default: neo4j)"`
	Neo4jPassword string `long:"neo4j-password" env:"NEO4J_PASSWORD" description:"Neo4j password"`
	Neo4jClean    bool   `long:"neo4j-clean" description:"remove the previously loaded graph first"`

	Version bool `long:"version" description:"show version"`
}

func main() {
	opts := &Options{}
	if _, err := flags.Parse(opts); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("dbscript version %s\n", version)
		return
	}

	cfg, err := buildConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := dbscript.Run(ctx, cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// buildConfig loads the config file, if any, and applies the flags on top.
func buildConfig(opts *Options) (*dbscript.Config, error) {
	cfg := dbscript.DefaultConfig()
	if opts.Config != "" {
		var err error
		if cfg, err = dbscript.LoadConfig(opts.Config); err != nil {
			return nil, err
		}
	}

	setString(&cfg.URL, opts.URL)
	setString(&cfg.Dialect, opts.Dialect)
	setString(&cfg.Server, opts.Server)
	setString(&cfg.Database, opts.Database)
	setString(&cfg.User, opts.User)
	setString(&cfg.Password, opts.Password)
	setString(&cfg.Output, opts.Output)
	setString(&cfg.Types, opts.Types)
	setString(&cfg.Filter, opts.Filter)
	setString(&cfg.DOT, opts.DOT)

	cfg.Trusted = cfg.Trusted || opts.Trusted
	cfg.Full = cfg.Full || opts.Full
	cfg.Separate = cfg.Separate || opts.Separate
	cfg.Verbose = cfg.Verbose || opts.Verbose
	cfg.CrossKind = cfg.CrossKind || opts.CrossKind
	cfg.ExcludeSchemas = append(cfg.ExcludeSchemas, opts.ExcludeSchemas...)

	if opts.Neo4jURI != "" {
		if cfg.Neo4j == nil {
			cfg.Neo4j = &dbscript.Neo4jConfig{}
		}
		cfg.Neo4j.URI = opts.Neo4jURI
		setString(&cfg.Neo4j.User, opts.Neo4jUser)
		setString(&cfg.Neo4j.Password, opts.Neo4jPassword)
	}
	if cfg.Neo4j != nil {
		cfg.Neo4j.Clean = cfg.Neo4j.Clean || opts.Neo4jClean
		if cfg.Neo4j.User == "" {
			cfg.Neo4j.User = "neo4j"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
