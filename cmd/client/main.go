// Package main is an interactive shell over the local draft store. It shares
// the daemon's configuration and syncs drafts in the background whenever the
// backend becomes reachable.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/atinyakov/sms-drafts/internal/app"
	"github.com/atinyakov/sms-drafts/internal/config"
	"github.com/atinyakov/sms-drafts/internal/logger"
)

var (
	version   string
	buildDate string
)

func main() {
	options, err := config.Parse()
	if err != nil {
		log.Fatal(err)
	}
	if options.ShowVersion {
		fmt.Printf("Drafts Client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	lg := logger.New()
	defer func() { _ = lg.Log.Sync() }()
	if err := lg.Init(options.LogLevel); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	a, err := app.New(options, lg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	a.Start(ctx)

	newShell(a, os.Stdin, os.Stdout).run(ctx)

	stop()
	a.Wait()
}
