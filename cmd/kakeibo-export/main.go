package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"kakeibo/internal/cli"
	"kakeibo/internal/core"
	"kakeibo/internal/log"
	gsheet "kakeibo/internal/sheets/google"
)

func main() {
	var (
		userID  = flag.String("user", "", "user id whose report is exported (required)")
		period  = flag.String("period", string(core.ThisMonth), "preset period: thisMonth, lastMonth, thisYear, lastYear")
		start   = flag.String("start", "", "custom range start, YYYY-MM-DD")
		end     = flag.String("end", "", "custom range end, YYYY-MM-DD")
		timeout = flag.Duration("timeout", 2*time.Minute, "overall deadline")
	)
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateExport(); err != nil {
		logger.Error("Export configuration invalid", log.FieldError, err.Error(), log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	if *userID == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		flag.Usage()
		os.Exit(2)
	}

	r, err := core.ResolveRange(*period, *start, *end, time.Now())
	if err != nil {
		logger.Error("Invalid report range", log.FieldError, err.Error(), log.FieldErrorType, log.ErrorTypeValidation)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	backend := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("Failed to close data backend", log.FieldError, err.Error())
		}
	}()

	analytics := cli.NewAnalytics(cfg, backend.Store, logger)
	rep, err := analytics.Report(ctx, *userID, r)
	if err != nil {
		logger.Error("Failed to build report", log.FieldError, err.Error(), log.FieldUserID, *userID, log.FieldRange, r.String())
		os.Exit(1)
	}

	exporter, err := gsheet.NewExporter(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		OAuthClientJSON: cfg.GoogleOAuthClientJSON,
		OAuthClientFile: cfg.GoogleOAuthClientFile,
		OAuthTokenJSON:  cfg.GoogleOAuthTokenJSON,
		OAuthTokenFile:  cfg.GoogleOAuthTokenFile,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets exporter", log.FieldError, err.Error(), log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	written, err := exporter.Export(ctx, rep)
	if err != nil {
		logger.Error("Export failed", log.FieldError, err.Error(), log.FieldErrorType, log.ErrorTypeNetwork)
		os.Exit(1)
	}
	logger.Info("Report exported", log.FieldUserID, *userID, log.FieldRange, r.String(), "written", written)
}
