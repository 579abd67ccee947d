package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/firewx/climo/internal/config"
	"github.com/firewx/climo/internal/db"
	"github.com/firewx/climo/internal/query"
	"github.com/firewx/climo/internal/redis"
	"github.com/firewx/climo/internal/types"
)

func main() {
	site := flag.String("site", "", "Station site id")
	model := flag.String("model", "", "Model name")
	element := flag.String("element", "hdw", "Index to query (hdw, blow_up_dt, blow_up_height, dcape)")
	start := flag.String("start", "", "Range start (RFC 3339)")
	end := flag.String("end", "", "Range end (RFC 3339)")
	flag.Parse()

	if err := run(*site, *model, *element, *start, *end); err != nil {
		log.Printf("Query failed: %v", err)
		os.Exit(1)
	}
}

func run(site, model, elementName, startStr, endStr string) error {
	if site == "" || model == "" {
		return fmt.Errorf("-site and -model are required")
	}

	element, err := elementByName(elementName)
	if err != nil {
		return err
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return fmt.Errorf("invalid -end: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbClient, err := db.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to create database client: %w", err)
	}
	defer dbClient.Close()

	var cache query.Cache
	if redisClient, err := redis.New(cfg.RedisAddr); err == nil {
		defer redisClient.Close()
		cache = redisClient
	}

	ctx := context.Background()
	deciles, err := query.New(dbClient, cache).HourlyDeciles(ctx, site, model, element, start, end)
	if err != nil {
		return err
	}

	for _, hd := range deciles {
		fmt.Printf("%s", hd.ValidTime.Format(time.RFC3339))
		if hd.Deciles.IsEmpty() {
			fmt.Println(" (no samples)")
			continue
		}
		for _, v := range hd.Deciles {
			fmt.Printf(" %.2f", v)
		}
		fmt.Println()
	}
	return nil
}

func elementByName(name string) (types.Element, error) {
	for _, element := range types.Elements {
		if element.String() == name {
			return element, nil
		}
	}
	return 0, fmt.Errorf("unknown element %q", name)
}
