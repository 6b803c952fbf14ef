// Command weenie-example is a small service built on weenie. It waits for an
// upstream with an exponential retry before declaring itself ready, then
// keeps it in sync from cron jobs that retry periodically or back off.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a yaml config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	app, cleanup, err := InitializeApp(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := app.Run(context.Background()); err != nil {
		app.Log.Error("service failed", zap.Error(err))
		return err
	}
	return nil
}
