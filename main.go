package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/phturb/campaign-codex-backend-go/codex"
	"github.com/phturb/campaign-codex-backend-go/discord"
	"github.com/phturb/campaign-codex-backend-go/internal"
	"github.com/phturb/campaign-codex-backend-go/server"
)

func die(d interface{}) {
	slog.Error(fmt.Sprintf("%v", d))
	os.Exit(1)
}

// runAudit is the one-shot "audit" command. It fails when the ledger has dangling edges.
func runAudit(ctx context.Context, a codex.Auditor) {
	report, err := a.Audit(ctx)
	if err != nil {
		die(err)
	}
	if !report.Clean() {
		die(fmt.Sprintf("integrity audit found %d dangling rows", report.Total()))
	}
	slog.Info("integrity audit is clean")
}

func main() {
	cfg := internal.Config()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := internal.NewDependencies(ctx)
	if err != nil {
		die(err)
	}
	if err := codex.SeedEditions(ctx, deps); err != nil {
		die(err)
	}

	var notifier codex.Notifier
	var dn discord.DiscordNotifier
	if cfg.Discord.Enabled() {
		n, err := discord.NewDiscordNotifier(cfg.Discord.Token, cfg.Discord.ChannelID)
		if err != nil {
			die(err)
		}
		notifier, dn = n, n
	} else {
		slog.Info("discord is not configured, session announcements are disabled")
	}

	hub := server.NewHub()
	svc := codex.NewServices(deps, hub, notifier)

	if len(os.Args) > 1 && os.Args[1] == "audit" {
		runAudit(ctx, svc.Auditor)
		return
	}

	if cfg.Audit.Enabled() {
		if _, err := codex.ScheduleAudit(ctx, deps.Cron(), cfg.Audit.Schedule, svc.Auditor); err != nil {
			die(err)
		}
		deps.Cron().Start()
		defer deps.Cron().Stop()
	}

	if dn != nil {
		if err := dn.Open(); err != nil {
			die(err)
		}
		defer dn.Close()
	}

	s, err := server.NewServer(svc, hub)
	if err != nil {
		die(err)
	}
	sErr := s.Start(ctx)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	select {
	case <-c:
		slog.Info("interrupt received, exiting service")
		return
	case err = <-sErr:
		if err != nil {
			slog.Error(err.Error())
		}
		slog.Info("exiting service")
		return
	case <-ctx.Done():
		slog.Info("main context has been closed")
		return
	}
}
