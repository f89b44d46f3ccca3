package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	dbRedis "github.com/cropmind/agridex/internal/db/redis"
	logpkg "github.com/cropmind/agridex/internal/logger"
	documentrepo "github.com/cropmind/agridex/internal/repository/document"
	jobrepo "github.com/cropmind/agridex/internal/repository/job"
	"github.com/cropmind/agridex/internal/usecase/bulkload"
	documentuc "github.com/cropmind/agridex/internal/usecase/document"
)

func main() {
	var (
		dir      = flag.String("dir", "", "source directory of one-entity-per-file JSON inputs")
		redis    = flag.String("redis", "localhost:6379", "target store address (host:port[,host:port])")
		dryRun   = flag.Bool("dry-run", false, "validate only, skip load and verification")
		preClear = flag.Bool("pre-clear", false, "delete stored master data before loading")
		workers  = flag.Int("workers", 8, "per-level validation concurrency")
		timeout  = flag.Duration("timeout", 5*time.Minute, "overall run timeout")
	)
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "usage: seedloader -dir <source-dir> [-redis addr] [-dry-run] [-pre-clear]")
		os.Exit(2)
	}

	logger, err := logpkg.NewLogger("local")
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := dbRedis.NewStore(dbRedis.Config{Addrs: strings.Split(*redis, ",")})
	if err != nil {
		logger.Fatal("Failed to create store", zap.Error(err))
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, 10*time.Second); err != nil {
		logger.Fatal("Store not ready", zap.Error(err))
	}

	docRepo := documentrepo.New(store)
	if err := docRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure document index", zap.Error(err))
	}
	docSvc := documentuc.New(docRepo, jobrepo.New(store))

	pool, err := ants.NewPool(*workers)
	if err != nil {
		logger.Fatal("Failed to create worker pool", zap.Error(err))
	}
	defer pool.Release()

	loader := bulkload.New(store, docSvc, pool, logger)
	report, err := loader.Load(ctx, *dir, bulkload.Options{
		DryRun:   *dryRun,
		PreClear: *preClear,
	})
	if err != nil {
		logger.Fatal("Bulk load run failed", zap.Error(err))
	}

	printReport(report)

	if report.HasErrors() {
		os.Exit(1)
	}
}

// printReport writes the human summary to stderr and the full report as
// JSON to stdout, so scripts can consume the structured form.
func printReport(report *bulkload.Report) {
	for _, file := range report.Files() {
		fmt.Fprintf(os.Stderr, "%s:\n", file)
		for _, e := range report.ErrorsByFile()[file] {
			if e.Index < 0 {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", e.Kind, e.Message)
				continue
			}
			fmt.Fprintf(os.Stderr, "  record %d: %s: %s\n", e.Index, e.Kind, e.Message)
		}
	}

	for entity, delta := range report.Counts {
		marker := ""
		if delta.Mismatch() && !report.DryRun {
			marker = " (MISMATCH)"
		}
		fmt.Fprintf(os.Stderr, "%s: expected %d, actual %d%s\n",
			entity, delta.Expected, delta.Actual, marker)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
}
