package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/PyuraMazo/galgame-box/pkg/animetrace"
	"github.com/PyuraMazo/galgame-box/pkg/builder"
	"github.com/PyuraMazo/galgame-box/pkg/bus"
	"github.com/PyuraMazo/galgame-box/pkg/cache"
	"github.com/PyuraMazo/galgame-box/pkg/channels"
	"github.com/PyuraMazo/galgame-box/pkg/creds"
	"github.com/PyuraMazo/galgame-box/pkg/dispatch"
	"github.com/PyuraMazo/galgame-box/pkg/fetch"
	"github.com/PyuraMazo/galgame-box/pkg/gateway"
	"github.com/PyuraMazo/galgame-box/pkg/logger"
	"github.com/PyuraMazo/galgame-box/pkg/render"
	"github.com/PyuraMazo/galgame-box/pkg/schedule"
	"github.com/PyuraMazo/galgame-box/pkg/session"
	"github.com/PyuraMazo/galgame-box/pkg/steam"
	"github.com/PyuraMazo/galgame-box/pkg/touchgal"
	"github.com/PyuraMazo/galgame-box/pkg/vndb"
)

// gatewayCmd wires the whole bot together and runs it until interrupted.
// consoleOnly swaps the configured chat adapters for the local console.
func gatewayCmd(consoleOnly bool) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	switch cfg.Logging.Level {
	case "debug":
		logger.SetLevel(logger.DEBUG)
	case "warn":
		logger.SetLevel(logger.WARN)
	case "error":
		logger.SetLevel(logger.ERROR)
	default:
		logger.SetLevel(logger.INFO)
	}
	if cfg.Logging.File != "" {
		if err := logger.EnableFileLogging(cfg.Logging.File); err != nil {
			fmt.Printf("Error enabling file logging: %v\n", err)
			os.Exit(1)
		}
	}

	msgBus := bus.NewMessageBus()
	httpClient := fetch.NewClient(cfg.Request)
	images := fetch.NewImageFetcher(httpClient)
	artifacts := cache.New(cfg.CachePath())
	store := creds.NewStore(cfg.CredsPath())
	sessions := session.NewManager()

	d := dispatch.New(dispatch.Deps{
		Config:   cfg,
		VNDB:     vndb.NewClient(httpClient, cfg.Search.ProducerVNs),
		TouchGal: touchgal.NewClient(httpClient, cfg.Search.EnableNSFW),
		Trace:    animetrace.NewClient(httpClient),
		Steam:    steam.NewClient(httpClient),
		Builder:  builder.New(images, cfg.Search.CharacterOptions),
		Renderer: render.NewHTTPRenderer(httpClient, cfg.Render),
		Images:   images,
		Cache:    artifacts,
		Creds:    store,
		Sessions: sessions,
		Out:      msgBus,
	})

	manager := channels.NewManager(msgBus)
	if consoleOnly {
		manager.Register(channels.NewConsoleChannel(msgBus))
	} else {
		if cfg.Channels.OneBot.Enabled {
			manager.Register(channels.NewOneBotChannel(cfg.Channels.OneBot, msgBus))
		}
		if cfg.Channels.Telegram.Enabled {
			tg, err := channels.NewTelegramChannel(cfg.Channels.Telegram, msgBus)
			if err != nil {
				fmt.Printf("Error creating telegram channel: %v\n", err)
				os.Exit(1)
			}
			manager.Register(tg)
		}
	}
	if len(manager.Enabled()) == 0 {
		fmt.Println("No channel enabled; enable one in the config or run the console command")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := manager.StartAll(ctx); err != nil {
		fmt.Printf("Error starting channels: %v\n", err)
		os.Exit(1)
	}
	go manager.Run(ctx)

	sched := schedule.New(cfg.Report.CronExpr, store, d)
	sched.Start(ctx)

	logger.InfoCF("main", "galbox started", map[string]interface{}{
		"version":  formatVersion(),
		"channels": manager.Enabled(),
	})

	gw := gateway.New(msgBus, sessions, d)
	if err := gw.Run(ctx); err != nil {
		logger.ErrorC("main", "gateway stopped: "+err.Error())
	}

	sched.Stop()
	manager.StopAll(context.Background())
	msgBus.Close()

	// rendered artifacts are disposable; the credential store stays
	if err := artifacts.Clear(); err != nil {
		logger.WarnC("main", "cache clear failed: "+err.Error())
	}
	logger.InfoC("main", "galbox stopped")
}
