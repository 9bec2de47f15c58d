package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/dropDatabas3/nshost/internal/config"
	"github.com/dropDatabas3/nshost/internal/store/pg"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: migrate [-config path] [-env-file path] up | down [steps] | status | version\n")
	flag.PrintDefaults()
}

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to YAML config")
		envFile    = flag.String("env-file", ".env", "path to .env file (optional)")
		dsn        = flag.String("dsn", "", "postgres DSN (overrides storage.dsn)")
	)
	flag.Usage = usage
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("env file %s: %v", *envFile, err)
		}
	}

	// Positional args: [action] [steps]
	action := "up"
	steps := 1
	args := flag.Args()
	if len(args) >= 1 && args[0] != "" {
		action = strings.ToLower(args[0])
	}
	if len(args) >= 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			log.Fatalf("invalid steps %q", args[1])
		}
		steps = n
	}

	target := *dsn
	if target == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("config load: %v", err)
		}
		target = cfg.Storage.DSN
	}
	if target == "" {
		log.Fatal("no DSN: set storage.dsn, STORAGE_DSN or -dsn")
	}

	ctx := context.Background()
	switch action {
	case "up":
		if err := pg.Migrate(ctx, target); err != nil {
			log.Fatalf("up: %v", err)
		}
		log.Println("migrations applied")
	case "down":
		if err := pg.Rollback(ctx, target, steps); err != nil {
			log.Fatalf("down: %v", err)
		}
		log.Printf("rolled back %d migration(s)", steps)
	case "status":
		if err := pg.Status(ctx, target); err != nil {
			log.Fatalf("status: %v", err)
		}
	case "version":
		v, err := pg.Version(ctx, target)
		if err != nil {
			log.Fatalf("version: %v", err)
		}
		fmt.Println(v)
	default:
		usage()
		os.Exit(2)
	}
}
