// Command vet-server receives synced expenses, archives them to a JSON file
// and stores receipt images on disk.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"vet/internal/archive"
	"vet/internal/cli"
	apphttp "vet/internal/http"
	applog "vet/internal/log"
	"vet/internal/sheets"
	gsheet "vet/internal/sheets/google"
)

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stdout)
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel, os.Stdout)

	logger.Info("Starting vet-server", applog.FieldOperation, applog.OpStartup)

	var mirror sheets.ExpenseMirror
	if cfg.MirrorEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets mirror", applog.FieldError, err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		logger.Info("Google Sheets mirror disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	ingester := archive.NewIngester(
		archive.NewJSONFile(cfg.ArchiveFile()),
		archive.NewReceiptStore(cfg.UploadsDir()),
		mirror,
	)

	srv := apphttp.NewServer(apphttp.ServerConfig{
		Addr:            ":" + cfg.Port,
		UploadsDir:      cfg.UploadsDir(),
		MaxPayloadBytes: cfg.MaxPayloadBytes,
		CORSAllowOrigin: cfg.CORSAllowOrigin,
		SyncRateLimit:   cfg.SyncRateLimit,
	}, ingester, logger)

	// Receipts can be large; reads are bounded by MaxPayloadBytes instead.
	srv.ReadTimeout = 2 * time.Minute
	srv.WriteTimeout = 2 * time.Minute
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Listening", "port", cfg.Port, "data_dir", cfg.DataDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully", applog.FieldOperation, applog.OpShutdown)
}
