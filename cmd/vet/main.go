// Command vet records vacation expenses on this device and syncs them to
// the vet-server backend.
package main

import (
	"context"
	"os"

	"github.com/alecthomas/kong"

	"vet/internal/cli"
	applog "vet/internal/log"
)

var cliArgs struct {
	LogLevel string `help:"Log level (debug, info, warn, error). Overrides LOG_LEVEL." placeholder:"LEVEL"`

	Add        addCmd        `cmd:"" help:"Record a new expense."`
	Edit       editCmd       `cmd:"" help:"Change fields of an existing expense."`
	List       listCmd       `cmd:"" help:"List expenses, newest first."`
	Summary    summaryCmd    `cmd:"" help:"Show totals by category and by date."`
	Categories categoriesCmd `cmd:"" help:"Show the category filter options."`
	Sync       syncCmd       `cmd:"" help:"Push unsynced expenses to the backend once."`
	Watch      watchCmd      `cmd:"" help:"Sync periodically and on change events until interrupted."`
	Export     exportCmd     `cmd:"" help:"Export every expense as CSV or XLSX."`
}

func main() {
	cli.LoadEnvFile()

	kctx := kong.Parse(&cliArgs,
		kong.Name("vet"),
		kong.Description("Vacation expense tracker."),
		kong.UsageOnError(),
	)

	boot := cli.SetupLogger(os.Getenv("LOG_LEVEL"), nil)
	cfg := cli.LoadAndValidateConfig(boot)
	if cliArgs.LogLevel != "" {
		cfg.LogLevel = cliArgs.LogLevel
	}
	logger := cli.SetupLogger(cfg.LogLevel, nil).WithComponent(applog.ComponentCLI)

	ctx := context.Background()
	res := cli.InitStore(ctx, logger, cfg)

	a := newApp(ctx, cfg, logger, res.Store, os.Stdout)
	a.connectBroker()

	err := kctx.Run(a)
	a.close()
	if res.Cleanup != nil {
		if cerr := res.Cleanup(); cerr != nil {
			logger.Warn("Failed to close record store", applog.FieldError, cerr)
		}
	}
	kctx.FatalIfErrorf(err)
}
