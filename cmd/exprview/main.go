// Command exprview serves and inspects managed expression matrices
package main

import (
	"fmt"
	"os"

	"exprview/internal"
	"exprview/internal/config"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "exprview",
		Usage:   "Gene expression matrices over grouped samples",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "error, warn, info, debug or trace",
				EnvVars: []string{"EXPRVIEW_LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			if err := godotenv.Load(c.String("env-file")); err != nil && c.IsSet("env-file") {
				return fmt.Errorf("failed to load %s: %w", c.String("env-file"), err)
			}
			if lvl := c.String("log-level"); lvl != "" {
				internal.DefaultLogger = internal.NewLogger(internal.ParseLogLevel(lvl))
			}
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			inspectCommand(),
			migrateCommand(),
			generateCommand(),
			importCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment configuration and applies the flags a
// command shares
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if c.IsSet("data") {
		cfg.Data.Driver = c.String("data")
	}
	if c.IsSet("workbook") {
		cfg.Data.Driver = config.DataExcel
		cfg.Data.WorkbookPath = c.String("workbook")
	}
	return cfg, nil
}

var dataFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "data",
		Usage: "Data driver: testkit, excel or postgres (overrides DATA_DRIVER)",
	},
	&cli.StringFlag{
		Name:  "workbook",
		Usage: "Read samples and values from this workbook or CSV directory",
	},
}
