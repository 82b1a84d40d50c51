// Command azif-user creates accounts in the PostgreSQL user directory.
//
//	azif-user -username alice -password s3cret
//
// The database is taken from AZIF_DATABASE_URL (or a .env file).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cventus/azif/internal/config"
	"github.com/cventus/azif/internal/database"
	"github.com/cventus/azif/internal/users"
)

func main() {
	username := flag.String("username", "", "name of the new user")
	password := flag.String("password", "", "password of the new user (default: $AZIF_USER_PASSWORD)")
	flag.Parse()

	if *password == "" {
		*password = os.Getenv("AZIF_USER_PASSWORD")
	}
	if err := run(*username, *password); err != nil {
		fmt.Fprintln(os.Stderr, "azif-user:", err)
		os.Exit(1)
	}
}

func run(username, password string) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("AZIF_DATABASE_URL is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}

	u, err := users.NewPostgres(pool, 0).Create(ctx, username, password)
	if err != nil {
		return err
	}
	fmt.Println(u.ID)
	return nil
}
