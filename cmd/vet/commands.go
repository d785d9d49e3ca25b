package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"vet/internal/cli"
	"vet/internal/core"
	"vet/internal/export"
	applog "vet/internal/log"
	"vet/internal/services"
	"vet/internal/view"
	"vet/internal/worker"
)

type addCmd struct {
	Date        string `help:"Expense date (YYYY-MM-DD). Defaults to today."`
	Amount      string `help:"Amount spent. Unparseable input is stored as 0."`
	Category    string `help:"Category name."`
	Traveler    string `help:"Who paid."`
	Description string `help:"Free text description."`
	Receipt     string `help:"Path to a receipt image to attach." type:"existingfile"`
}

func (c *addCmd) Run(a *app) error {
	in := services.ExpenseInput{
		Date:        c.Date,
		Amount:      c.Amount,
		Category:    c.Category,
		Traveler:    c.Traveler,
		Description: c.Description,
	}
	if c.Receipt != "" {
		file, err := services.LoadReceiptFile(c.Receipt)
		if err != nil {
			return err
		}
		in.Receipt = file
	}

	e, err := a.expenses.Create(a.ctx, in)
	if err != nil {
		return fmt.Errorf("save expense: %w", err)
	}
	fmt.Fprintf(a.out, "Saved %s (%s %s)\n", e.ID, core.FormatAmount(e.Amount), e.NormalizedCategory())
	return nil
}

type editCmd struct {
	ID  string            `arg:"" help:"Expense id."`
	Set map[string]string `short:"s" help:"Field to change as field=value (date, amount, category, traveler, description)." placeholder:"FIELD=VALUE"`
}

// patchFromSet maps --set pairs onto an ExpensePatch.
func patchFromSet(set map[string]string) (services.ExpensePatch, error) {
	var patch services.ExpensePatch
	var unknown []string
	for k, v := range set {
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "date":
			patch.Date = &v
		case "amount":
			patch.Amount = &v
		case "category":
			patch.Category = &v
		case "traveler":
			patch.Traveler = &v
		case "description":
			patch.Description = &v
		default:
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return patch, fmt.Errorf("cannot edit field(s) %s", strings.Join(unknown, ", "))
	}
	return patch, nil
}

func (c *editCmd) Run(a *app) error {
	patch, err := patchFromSet(c.Set)
	if err != nil {
		return err
	}
	e, err := a.expenses.EditByID(a.ctx, c.ID, patch)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("no expense with id %s", c.ID)
	}
	if err != nil {
		return fmt.Errorf("save expense: %w", err)
	}
	fmt.Fprintf(a.out, "Updated %s\n", e.ID)
	return nil
}

type listCmd struct {
	Category string `short:"c" default:"All" help:"Only show this category."`
}

func (c *listCmd) Run(a *app) error {
	snap, err := a.state.SetFilter(a.ctx, c.Category)
	if err != nil {
		return err
	}
	return view.WriteList(a.out, snap)
}

type summaryCmd struct {
	Category string `short:"c" default:"All" help:"Only total this category."`
}

func (c *summaryCmd) Run(a *app) error {
	snap, err := a.state.SetFilter(a.ctx, c.Category)
	if err != nil {
		return err
	}
	return view.WriteSummary(a.out, snap)
}

type categoriesCmd struct{}

func (c *categoriesCmd) Run(a *app) error {
	snap, err := a.state.Recompute(a.ctx)
	if err != nil {
		return err
	}
	for _, name := range snap.Categories {
		fmt.Fprintln(a.out, name)
	}
	return nil
}

type syncCmd struct{}

func (c *syncCmd) Run(a *app) error {
	proc, err := a.syncProcessor()
	if err != nil {
		return err
	}
	res, err := proc.SyncOnce(a.ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, syncMessage(res))
	return nil
}

// syncMessage is the one-line outcome shown to the user.
func syncMessage(res services.SyncResult) string {
	switch {
	case res.NothingToSync:
		return "Nothing to sync"
	case res.Fallback:
		return fmt.Sprintf("Synced %d expense(s)", res.Synced)
	case len(res.Unacknowledged) > 0:
		return fmt.Sprintf("Synced %d of %d expense(s); not acknowledged: %s",
			res.Synced, res.Submitted, strings.Join(res.Unacknowledged, ", "))
	default:
		return fmt.Sprintf("Synced %d expense(s)", res.Synced)
	}
}

type watchCmd struct{}

func (c *watchCmd) Run(a *app) error {
	proc, err := a.syncProcessor()
	if err != nil {
		return err
	}

	ctx, done := cli.GracefulShutdown(a.logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := proc.Stop(shutdownCtx); err != nil {
			a.logger.Warn("Failed to stop sync processor", applog.FieldError, err)
		}
	})

	w := worker.NewSyncWorker(proc)
	if err := w.StartupSyncCheck(ctx); err != nil {
		a.logger.Warn("Startup sync failed", applog.FieldError, err)
	}

	if err := proc.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("Watching for unsynced expenses", "interval", a.cfg.SyncInterval, "sync_url", a.cfg.SyncURL)

	if a.broker != nil {
		go func() {
			err := a.broker.ConsumeChanges(ctx, w.HandleChangeMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("Change consumption stopped", applog.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	return nil
}

type exportCmd struct {
	Format string `short:"f" enum:"csv,xlsx" default:"csv" help:"Output format (csv, xlsx)."`
	Out    string `short:"o" help:"Output file. Defaults to vacation-expenses.<format>; '-' writes to stdout."`
}

func (c *exportCmd) Run(a *app) error {
	records, err := a.store.GetAll(a.ctx)
	if err != nil {
		return err
	}
	format := export.Format(c.Format)
	if len(records) == 0 {
		fmt.Fprintln(a.out, export.ErrNoData.Error())
		return nil
	}

	if c.Out == "-" {
		return export.Write(a.out, format, records)
	}

	path := c.Out
	if path == "" {
		path = format.DefaultFilename()
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.Write(f, format, records); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.logger.Info("Exported expenses", applog.FieldCount, len(records), applog.FieldOperation, applog.OpExport, "path", path)
	fmt.Fprintf(a.out, "Exported %d expense(s) to %s\n", len(records), path)
	return nil
}
