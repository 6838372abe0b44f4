package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"daisycash/internal/auth"
	"daisycash/internal/cli"
	applog "daisycash/internal/log"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("usage: go run ./cmd/create-user <email> <password>")
		os.Exit(2)
	}
	email := strings.TrimSpace(os.Args[1])
	password := os.Args[2]
	if email == "" || password == "" {
		fmt.Println("email and password must not be empty")
		os.Exit(2)
	}

	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentAuth)

	res := cli.InitBackend(context.Background(), logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend cleanup error", "error", err)
		}
	}()

	// The secret only signs sessions, which this tool never issues.
	svc := auth.NewService(res.Store, cfg.SessionSecret, cfg.SessionTTL)
	u, err := svc.EnsureUser(context.Background(), email, password)
	if err != nil {
		logger.Error("Failed to create user", "error", err, "email", email)
		os.Exit(1)
	}
	fmt.Printf("user %s ready (id=%s)\n", u.Email, u.ID)
}
