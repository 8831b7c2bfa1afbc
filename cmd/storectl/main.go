// Command storectl runs storefront maintenance tasks: schema migrations,
// catalogue seeding and ledger reconciliation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/metrics"
	"storefront/internal/outbox"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "storectl",
		Usage: "storefront maintenance commands",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "console",
				EnvVars: []string{"LOG_FORMAT"},
			},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			seedCommand(),
			reconcileCommand(),
		},
	}
}

func loggerFrom(c *cli.Context) zerolog.Logger {
	return config.NewLogger(config.LoggerConfig{
		Level:  c.String("log-level"),
		Format: c.String("log-format"),
	})
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply or roll back schema migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply every pending migration",
				Action: func(c *cli.Context) error {
					dbCfg, err := config.LoadDatabase()
					if err != nil {
						return err
					}
					return database.Migrate(dbCfg.ConnectionString(), loggerFrom(c))
				},
			},
			{
				Name:  "down",
				Usage: "roll back the most recent migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Value: 1, Usage: "number of migrations to revert"},
				},
				Action: func(c *cli.Context) error {
					dbCfg, err := config.LoadDatabase()
					if err != nil {
						return err
					}
					return database.Rollback(dbCfg.ConnectionString(), c.Int("steps"), loggerFrom(c))
				},
			},
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "create products from a gzipped JSON-lines seed file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Required: true, Usage: "seed file path (relative to the S3 prefix when S3 is enabled)"},
			&cli.BoolFlag{Name: "s3", EnvVars: []string{"S3_ENABLED"}, Usage: "try S3 before the local file"},
			&cli.StringFlag{Name: "bucket", EnvVars: []string{"S3_BUCKET"}},
			&cli.StringFlag{Name: "region", Value: "us-east-1", EnvVars: []string{"S3_REGION"}},
			&cli.StringFlag{Name: "prefix", Value: "catalog/", EnvVars: []string{"S3_PREFIX"}},
		},
		Action: func(c *cli.Context) error {
			logger := loggerFrom(c)

			loader, err := seedLoader(c, logger)
			if err != nil {
				return err
			}

			return withAdmin(c, logger, func(admin service.AdminService) error {
				result, err := catalog.NewSeeder(loader, admin, logger).Seed(c.Context, c.String("file"))
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "created %d, skipped %d, rejected %d\n",
					result.Created, result.Skipped, result.Rejected)
				return nil
			})
		},
	}
}

func seedLoader(c *cli.Context, logger zerolog.Logger) (catalog.Loader, error) {
	fileLoader := catalog.NewFileLoader(logger)
	if !c.Bool("s3") {
		return fileLoader, nil
	}
	if c.String("bucket") == "" {
		return nil, fmt.Errorf("S3 bucket is required when S3 is enabled")
	}

	s3Loader, err := catalog.NewS3Loader(c.Context, c.String("bucket"), c.String("region"), logger)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to initialise S3 loader, falling back to local file system only")
		return fileLoader, nil
	}
	return catalog.NewFallbackLoader(s3Loader, fileLoader, c.String("prefix"), logger), nil
}

func reconcileCommand() *cli.Command {
	return &cli.Command{
		Name:  "reconcile",
		Usage: "compare every product's stock with its inventory ledger",
		Action: func(c *cli.Context) error {
			logger := loggerFrom(c)
			return withAdmin(c, logger, func(admin service.AdminService) error {
				discrepancies, err := admin.Reconcile(c.Context)
				if err != nil {
					return err
				}
				if len(discrepancies) == 0 {
					fmt.Fprintln(c.App.Writer, "ledger consistent")
					return nil
				}
				for _, d := range discrepancies {
					fmt.Fprintf(c.App.Writer, "%s (%s): stock %d, ledger %d, chain breaks %d, entries %d\n",
						d.ProductID, d.ProductName, d.Stock, d.LedgerSum, d.ChainBreaks, d.EntriesCount)
				}
				return cli.Exit(fmt.Sprintf("%d products disagree with their ledger", len(discrepancies)), 2)
			})
		},
	}
}

// withAdmin opens a pool and builds the admin service around it.
func withAdmin(c *cli.Context, logger zerolog.Logger, fn func(service.AdminService) error) error {
	dbCfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}

	pool, err := database.NewPool(c.Context, dbCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	return fn(newAdminService(pool, logger))
}

func newAdminService(pool *pgxpool.Pool, logger zerolog.Logger) service.AdminService {
	return service.NewAdminService(service.AdminDeps{
		Transactor: repository.NewTransactor(pool, logger),
		Products:   repository.NewProductRepository(pool, logger),
		Orders:     repository.NewOrderRepository(pool, logger),
		Inventory:  repository.NewInventoryRepository(pool, logger),
		Outbox:     outbox.NewStore(pool, logger),
		Metrics:    metrics.New(),
	}, 0, logger)
}
