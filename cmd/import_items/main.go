package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/db"
	"stockledger/internal/excel"
	"stockledger/internal/logging"
	"stockledger/internal/repository"
	"stockledger/internal/service"
)

type options struct {
	filePath string
	actorID  int64
	dryRun   bool
	timeout  time.Duration
}

func main() {
	opts := parseFlags()
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "import_items: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.filePath, "file", "", "path to the .xlsx or .csv item sheet")
	flag.Int64Var(&opts.actorID, "actor", 1, "user id recorded on opening stock movements")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "parse and report rows without writing")
	flag.DurationVar(&opts.timeout, "timeout", 10*time.Minute, "overall import timeout")
	flag.Parse()
	return opts
}

func run(opts options) error {
	if opts.filePath == "" {
		return errors.New("-file is required")
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.LogLevel)

	file, err := os.Open(opts.filePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", opts.filePath, err)
	}
	defer file.Close()

	rows, err := excel.ParseItemRows(filepath.Base(opts.filePath), file)
	if err != nil {
		return fmt.Errorf("parse %s: %w", opts.filePath, err)
	}
	logger.WithField("rows", len(rows)).Info("parsed item sheet")
	if opts.dryRun {
		for i, row := range rows {
			fmt.Printf("%4d  %-12s %-40s %-5s opening=%d\n", i+2, row.SKU, row.Name, row.Unit, row.OpeningStock)
		}
		return nil
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required (environment variable or .env)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, db.PoolOptions{
		URL:          cfg.DatabaseURL,
		MaxConns:     int32(cfg.DBMaxConns),
		PingAttempts: 1,
	}, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := db.RunMigrations(ctx, pool, logger); err != nil {
		return err
	}

	svc := service.New(repository.New(pool), service.WithLogger(logger))
	result, err := svc.ImportItems(ctx, rows, opts.actorID)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		logger.Warn(msg)
	}
	fmt.Printf("created %d items, %d failed\n", result.Created, result.Failed)
	return nil
}
