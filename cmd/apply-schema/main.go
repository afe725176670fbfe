// Command apply-schema creates the remote tables and the change-notification
// triggers. It is safe to run repeatedly.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Hossein925/f-maharat/internal/common/database"
	"github.com/Hossein925/f-maharat/internal/config"
	"github.com/Hossein925/f-maharat/internal/remote"
)

func main() {
	printOnly := flag.Bool("print", false, "print the schema instead of applying it")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *printOnly {
		fmt.Print(remote.Schema(cfg.Sync.NotifyChannel))
		return
	}

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot connect to database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := remote.ApplySchema(ctx, db, cfg.Sync.NotifyChannel); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to apply schema: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Schema applied to %s (notify channel %q)\n", cfg.Database.Database, cfg.Sync.NotifyChannel)
}
