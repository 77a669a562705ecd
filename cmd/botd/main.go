package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/mxxx222/TennisBot-sub005/internal/app"
	"github.com/mxxx222/TennisBot-sub005/internal/collect"
)

// Categories served by the built-in HTTP JSON collector. Embedders with
// custom scrapers register their own collectors instead.
var builtinCategories = []string{
	"tennis.results",
	"tennis.odds",
	"tennis.rankings",
	"tennis.schedule",
}

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	fetcher := collect.NewHTTPJSON(nil)
	for _, cat := range builtinCategories {
		if err := a.Collectors().Register(cat, fetcher); err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
	}

	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	select {
	case <-ctx.Done():
	case <-a.Done():
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx); err != nil {
		fmt.Println("shutdown:", err)
		os.Exit(1)
	}
}
