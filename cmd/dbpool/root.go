package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/koustreak/dbpool/internal/bootstrap"
	"github.com/koustreak/dbpool/internal/config"
	"github.com/koustreak/dbpool/internal/database"
	"github.com/koustreak/dbpool/internal/errs"
	"github.com/koustreak/dbpool/internal/filestore"
	"github.com/koustreak/dbpool/internal/filestore/minio"
	"github.com/koustreak/dbpool/internal/logger"
	"github.com/koustreak/dbpool/internal/server"
	"github.com/spf13/cobra"
)

// options are the flags shared by every subcommand.
type options struct {
	configPath string
	driver     string

	minioEndpoint  string
	minioAccessKey string
	minioSecretKey string
	minioUseSSL    bool
	bucket         string
	key            string
}

func rootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "dbpool",
		Short:         "Database connection pool bootstrap",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "dbpool.yaml", "Path to the configuration document")
	flags.StringVar(&opts.driver, "driver", "", "Override the configured database driver (postgres, mysql)")
	flags.StringVar(&opts.minioEndpoint, "minio-endpoint", "", "Load the configuration from this MinIO endpoint instead of --config")
	flags.StringVar(&opts.minioAccessKey, "minio-access-key", os.Getenv("MINIO_ACCESS_KEY"), "MinIO access key")
	flags.StringVar(&opts.minioSecretKey, "minio-secret-key", os.Getenv("MINIO_SECRET_KEY"), "MinIO secret key")
	flags.BoolVar(&opts.minioUseSSL, "minio-ssl", false, "Use TLS for MinIO")
	flags.StringVar(&opts.bucket, "bucket", "", "Bucket holding the configuration document")
	flags.StringVar(&opts.key, "key", "dbpool.yaml", "Object key of the configuration document")

	root.AddCommand(checkCmd(opts), serveCmd(opts))
	return root
}

func checkCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Open the pool, run the validation query and print pool stats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := open(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer db.Close()

			return printStats(cmd.OutOrStdout(), db.Stats())
		},
	}
}

func serveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Open the pool and serve /healthz and /config/database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, db, err := open(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer db.Close()

			router := server.NewRouter(db, env.cfg.Database, env.log)
			return server.Serve(cmd.Context(), env.cfg.Server, router, env.log)
		},
	}
}

type environment struct {
	cfg *config.Config
	log *logger.Logger
}

// open loads the configuration, applies --driver and bootstraps the pool.
func open(ctx context.Context, opts *options) (*environment, database.DB, error) {
	cfg, err := loadConfig(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	if opts.driver != "" {
		driver, err := database.ParseDriver(opts.driver)
		if err != nil {
			return nil, nil, err
		}
		cfg.Database.SetDriver(driver)
	}

	log := logger.New(&cfg.Logger)

	db, err := bootstrap.Default(log).Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return &environment{cfg: cfg, log: log}, db, nil
}

func loadConfig(ctx context.Context, opts *options) (*config.Config, error) {
	if opts.minioEndpoint == "" {
		return config.LoadFile(opts.configPath)
	}
	if opts.bucket == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "--bucket is required with --minio-endpoint")
	}

	fsCfg := filestore.DefaultConfig(opts.minioEndpoint, opts.minioAccessKey, opts.minioSecretKey)
	fsCfg.UseSSL = opts.minioUseSSL

	store, err := minio.New(ctx, fsCfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return config.LoadFromStore(ctx, store, opts.bucket, opts.key)
}

func printStats(w io.Writer, stats database.PoolStats) error {
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding pool stats: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
