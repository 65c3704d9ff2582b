package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/polystore/polystore/pkg/config"
	"github.com/polystore/polystore/pkg/connector/core"
	"github.com/polystore/polystore/pkg/logger"
	"github.com/polystore/polystore/pkg/pool"
	"github.com/polystore/polystore/pkg/session"

	// Import all backends to register them
	_ "github.com/polystore/polystore/pkg/connector/document"
	_ "github.com/polystore/polystore/pkg/connector/relational"
	_ "github.com/polystore/polystore/pkg/connector/table"
)

var version = "0.1.0"

func main() {
	var (
		configFile string
		credFile   string
		override   bool
		logLevel   string
		timeout    time.Duration
	)

	root := &cobra.Command{
		Use:   "polystore",
		Short: "Polystore - unified access to relational, document and table storage",
		Long: `Polystore provides a single access layer over MySQL/MariaDB, MongoDB and
Azure Table Storage. Logical database names resolve to a backend and its
credentials; every command opens a scoped session against one of them.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnv(); err != nil {
				return err
			}

			cfg := config.Default()
			if configFile != "" {
				var err error
				cfg, err = config.LoadFile(configFile)
				if err != nil {
					return err
				}
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			pool.SetDefaultConfig(cfg.Pool)
			return logger.Init(cfg.Logging)
		},
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file")
	root.PersistentFlags().StringVar(&credFile, "credentials", "", "Path to a local credentials file, bypassing the vault")
	root.PersistentFlags().BoolVar(&override, "override", false, "Resolve credentials from database_<name> environment files")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Command timeout")

	sessionOpts := func() []session.Option {
		var opts []session.Option
		if credFile != "" {
			opts = append(opts, session.WithCredentialFile(credFile))
		}
		if override {
			opts = append(opts, session.WithOverride())
		}
		return opts
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Polystore v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	// query runs a SELECT against a relational logical database
	var queryDatabase string
	queryCmd := &cobra.Command{
		Use:   "query <name> <statement>",
		Short: "Run a SELECT statement against a relational database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			return session.With(ctx, args[0], func(s *session.Session) error {
				rows, err := s.Select(ctx, session.Args{
					Query:    args[1],
					Database: queryDatabase,
				})
				if err != nil {
					return err
				}
				return printRows(rows)
			}, sessionOpts()...)
		},
	}
	queryCmd.Flags().StringVarP(&queryDatabase, "database", "d", "", "Database to switch to before the query")
	root.AddCommand(queryCmd)

	// find runs a filtered query against a document logical database
	var findDatabase string
	findCmd := &cobra.Command{
		Use:   "find <name> <collection> <filter-json>",
		Short: "Find documents matching a JSON filter",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter core.Filter
			if err := json.Unmarshal([]byte(args[2]), &filter); err != nil {
				return fmt.Errorf("failed to parse filter: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			return session.With(ctx, args[0], func(s *session.Session) error {
				rows, err := s.Select(ctx, session.Args{
					Filter:     filter,
					Collection: args[1],
					Database:   findDatabase,
				})
				if err != nil {
					return err
				}
				return printRows(rows)
			}, sessionOpts()...)
		},
	}
	findCmd.Flags().StringVarP(&findDatabase, "database", "d", "", "Database holding the collection")
	root.AddCommand(findCmd)

	// entities queries a wide-column table with an OData filter
	var entityFields []string
	var entityParams string
	entitiesCmd := &cobra.Command{
		Use:   "entities <name> <table> <filter>",
		Short: "Query table entities with a parameterized OData filter",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]interface{}{}
			if entityParams != "" {
				if err := json.Unmarshal([]byte(entityParams), &params); err != nil {
					return fmt.Errorf("failed to parse parameters: %w", err)
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			return session.With(ctx, args[0], func(s *session.Session) error {
				rows, err := s.Select(ctx, session.Args{
					Features:   entityFields,
					Parameters: params,
					NameFilter: args[2],
					Table:      args[1],
				})
				if err != nil {
					return err
				}
				return printRows(rows)
			}, sessionOpts()...)
		},
	}
	entitiesCmd.Flags().StringSliceVar(&entityFields, "select", []string{"PartitionKey", "RowKey"}, "Entity fields to return")
	entitiesCmd.Flags().StringVar(&entityParams, "parameters", "", "JSON object of filter parameter values")
	root.AddCommand(entitiesCmd)

	if err := root.Execute(); err != nil {
		logger.Get().Error("command failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func printRows(rows []core.Row) error {
	out, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
