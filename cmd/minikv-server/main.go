package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"minikv"
	"minikv/config"
	"minikv/logger"
	"minikv/redis"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

// reportError logs the error that ends the process.
func reportError(err error) {
	logger.Error("minikv-server exited with error", err)
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "minikv-server",
		Usage: "Serve a minikv store over the Redis protocol",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Open the store and serve it until interrupted",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the config file (defaults to ./minikv.yaml)",
					},
				},
				Action: runServe,
			},
			{
				Name:  "destroy",
				Usage: "Remove a store directory and all of its data",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dir",
						Aliases:  []string{"d"},
						Usage:    "Store directory",
						Required: true,
					},
				},
				Action: runDestroy,
			},
		},
	}
}

func runServe(ctx context.Context, c *cli.Command) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	logger.Init(cfg.Environment, cfg.Debug)

	db, err := minikv.Open(cfg.StoreOptions())
	if err != nil {
		logger.Error("Failed to open store", err, "path", cfg.Store.DirPath)
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close store", err)
		}
	}()

	server := redis.NewServer(cfg.Server.Addr, db)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down minikv server")
		if err := server.Close(); err != nil {
			logger.Error("Failed to close server", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// runDestroy is best-effort: a failure is reported but does not fail the command.
func runDestroy(_ context.Context, c *cli.Command) error {
	dir := c.String("dir")
	if err := minikv.Destroy(dir); err != nil {
		if errors.Is(err, minikv.ErrDatabaseIsUsing) {
			logger.Warn("Store is still open, not destroying", "path", dir)
		} else {
			logger.Warn("Failed to destroy store", "path", dir, "error", err.Error())
		}
	}
	return nil
}
