package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/firewx/climo/internal/aggregate"
	"github.com/firewx/climo/internal/config"
	"github.com/firewx/climo/internal/db"
	"github.com/firewx/climo/internal/redis"
	"github.com/firewx/climo/internal/stats"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: aggregator [build|update|reset]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	operation := flag.Arg(0)
	if operation == "" {
		operation = "build"
	}

	if err := run(operation); err != nil {
		log.Printf("Aggregator failed: %v", err)
		os.Exit(1)
	}
}

func run(operation string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbClient, err := db.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to create database client: %w", err)
	}
	defer dbClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel the in-flight pair transactions on SIGINT/SIGTERM; committed
	// pairs stay, everything else rolls back.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutting down...")
		cancel()
	}()

	switch operation {
	case "build", "update":
		return runBuild(ctx, cfg, dbClient)
	case "reset":
		if err := dbClient.ResetDeciles(); err != nil {
			return fmt.Errorf("failed to reset deciles: %w", err)
		}
		// The cache must not outlive the store's rows it mirrors.
		if redisClient, err := redis.New(cfg.RedisAddr); err != nil {
			log.Printf("Warning: decile cache not cleared: %v", err)
		} else {
			defer redisClient.Close()
			if err := redisClient.Reset(ctx); err != nil {
				log.Printf("Warning: failed to clear decile cache: %v", err)
			}
		}
		log.Println("Dropped all decile distributions")
		return nil
	default:
		return fmt.Errorf("unknown operation %q (want build, update, or reset)", operation)
	}
}

func runBuild(ctx context.Context, cfg *config.Config, dbClient *db.Client) error {
	if err := dbClient.SetWorkMem(ctx, cfg.WorkMem); err != nil {
		log.Printf("Warning: %v", err)
	}

	// The decile cache is an optimization; build without it if Redis is
	// unreachable.
	var cache aggregate.Cache
	redisClient, err := redis.New(cfg.RedisAddr)
	if err != nil {
		log.Printf("Warning: running without decile cache: %v", err)
	} else {
		defer redisClient.Close()
		cache = redisClient
	}

	st := stats.New()
	st.SetStore(dbClient)
	log.Printf("Starting aggregation run %s with %d workers", st.RunID(), cfg.Workers)

	pairs, err := aggregate.DiscoverPairs(dbClient, cfg.Sites, cfg.Models)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		log.Println("No site/model pairs to aggregate")
		return nil
	}
	log.Printf("Aggregating %d site/model pairs", len(pairs))

	start := time.Now()
	failures := aggregate.New(dbClient, cache, st, cfg.Workers).Run(ctx, pairs)

	log.Printf("Aggregation finished in %s: %s", time.Since(start).Round(time.Millisecond), st)
	if err := st.Persist(); err != nil {
		log.Printf("Warning: failed to persist run stats: %v", err)
	}

	if ctx.Err() != nil {
		return fmt.Errorf("aggregation cancelled: %w", ctx.Err())
	}
	if len(failures) == len(pairs) {
		return fmt.Errorf("all %d pairs failed, first error: %w", len(pairs), failures[0])
	}
	if len(failures) > 0 {
		// Partial failure: committed pairs stand, failures were logged.
		log.Printf("%d of %d pairs failed", len(failures), len(pairs))
	}
	return nil
}
