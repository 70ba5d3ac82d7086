package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"exprview/adapters/excel"
	"exprview/adapters/postgres"
	"exprview/internal"
	"exprview/internal/config"
	"exprview/internal/testkit"
	"exprview/ports"

	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v2"
)

var databaseFlag = &cli.StringFlag{
	Name:    "database-url",
	Usage:   "PostgreSQL connection URL",
	EnvVars: []string{"DATABASE_URL"},
}

func connect(c *cli.Context) (*sqlx.DB, error) {
	url := c.String("database-url")
	if url == "" {
		return nil, fmt.Errorf("a database URL is required (--database-url or DATABASE_URL)")
	}
	return postgres.Open(c.Context, url)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the PostgreSQL schema",
		Flags: []cli.Flag{databaseFlag},
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply pending migrations",
				Action: func(c *cli.Context) error {
					db, err := connect(c)
					if err != nil {
						return err
					}
					defer db.Close()
					n, err := postgres.NewMigrator(db).Up(c.Context)
					if err != nil {
						return err
					}
					fmt.Printf("Applied %d migrations\n", n)
					return nil
				},
			},
			{
				Name:  "down",
				Usage: "Roll back the latest migration",
				Action: func(c *cli.Context) error {
					db, err := connect(c)
					if err != nil {
						return err
					}
					defer db.Close()
					version, err := postgres.NewMigrator(db).Down(c.Context)
					if err != nil {
						return err
					}
					if version == "" {
						fmt.Println("Nothing to roll back")
						return nil
					}
					fmt.Printf("Rolled back %s\n", version)
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "List migrations and whether they are applied",
				Action: func(c *cli.Context) error {
					db, err := connect(c)
					if err != nil {
						return err
					}
					defer db.Close()
					statuses, err := postgres.NewMigrator(db).Status(c.Context)
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED\tMODIFIED")
					for _, s := range statuses {
						fmt.Fprintf(w, "%s\t%s\t%t\t%t\n", s.Version, s.Name, s.Applied, s.Modified)
					}
					return w.Flush()
				},
			},
		},
	}
}

func generateCommand() *cli.Command {
	defaults := testkit.DefaultExpressionConfig()
	return &cli.Command{
		Name:      "generate",
		Usage:     "Write a synthetic expression dataset as a workbook",
		ArgsUsage: "<output.xlsx>",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "seed", Value: defaults.Seed, Usage: "Random seed"},
			&cli.IntFlag{Name: "probes", Value: defaults.ProbeCount, Usage: "Number of probes"},
			&cli.IntFlag{Name: "replicates", Value: defaults.Replicates, Usage: "Samples per condition"},
			&cli.Float64Flag{Name: "missing-rate", Value: defaults.MissingRate, Usage: "Fraction of absent values"},
		},
		Action: func(c *cli.Context) error {
			out := c.Args().First()
			if out == "" {
				return fmt.Errorf("an output path is required")
			}
			gen := testkit.DefaultExpressionConfig()
			gen.Seed = c.Int64("seed")
			gen.ProbeCount = c.Int("probes")
			gen.Replicates = c.Int("replicates")
			gen.MissingRate = c.Float64("missing-rate")
			ds := testkit.NewExpressionDataGenerator(gen).Generate()

			if err := excel.WriteDatasetWorkbook(c.Context, ds, excel.DefaultWorkbookConfig(out)); err != nil {
				return err
			}
			internal.DefaultLogger.WithComponent("generate").Info("Wrote %d probes to %s", gen.ProbeCount, out)
			return nil
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Copy a dataset into PostgreSQL",
		Flags: append([]cli.Flag{
			databaseFlag,
			&cli.BoolFlag{Name: "migrate", Usage: "Apply pending migrations first"},
		}, dataFlags...),
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			var source ports.Dataset
			switch cfg.Data.Driver {
			case config.DataExcel:
				ds, err := excel.LoadWorkbook(excel.DefaultWorkbookConfig(cfg.Data.WorkbookPath))
				if err != nil {
					return err
				}
				source = ds
			case config.DataTestkit:
				gen := testkit.DefaultExpressionConfig()
				gen.Seed = cfg.Data.Seed
				source = testkit.NewExpressionDataGenerator(gen).Generate()
			default:
				return fmt.Errorf("cannot import from data driver %q", cfg.Data.Driver)
			}

			db, err := connect(c)
			if err != nil {
				return err
			}
			defer db.Close()
			if c.Bool("migrate") {
				if _, err := postgres.NewMigrator(db).Up(c.Context); err != nil {
					return err
				}
			}
			stats, err := postgres.NewExpressionRepository(db).ImportDataset(c.Context, source)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d samples, %d probes, %d values\n", stats.Samples, stats.Probes, stats.Values)
			return nil
		},
	}
}
