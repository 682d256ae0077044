package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"intralu-bot/internal/chat"
	comptelemetry "intralu-bot/internal/components/telemetry"
	"intralu-bot/internal/setup"
	"intralu-bot/lib/configutil"
	"intralu-bot/lib/serviceutil"
	"intralu-bot/lib/telemetry"
)

func main() {
	configPath := flag.String("config", "config.json5", "config file, searched for in parent directories as well")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	telemetry.InitSlog(*verbose)
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadRecursively[setup.Config](*configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	t, err := telemetry.Setup(ctx, "intralu-bot", config.Telemetry)
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer func() {
		err := t.Shutdown(context.Background())
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
	}()

	token, err := setup.ResolveToken(ctx, config.Telegram, os.Getenv, setup.LoadParamstore)
	if err != nil {
		serviceutil.Fatal("failed to resolve bot token", err)
	}

	tel := comptelemetry.SlogAPI{}

	service, err := setup.NewService(config, tel)
	if err != nil {
		serviceutil.Fatal("failed to create portal service", err)
	}
	telemetry.InstrumentPerfStats(ctx, service.OpenSessions)

	bot, err := chat.NewTelegram(token, tel)
	if err != nil {
		serviceutil.Fatal("failed to connect to telegram", err)
	}

	handler := chat.NewHandler(service, bot, tel)
	dispatcher := chat.NewDispatcher(ctx, handler.Handle, tel)

	slog.Info("bot started", "username", bot.Username())
	bot.Run(ctx, config.Telegram.PollTimeout(), dispatcher.Dispatch)

	slog.Info("waiting for in-flight messages...")
	waitDispatcher(dispatcher, 30*time.Second)

	slog.Info("closing browser sessions...", "open", service.OpenSessions())
	err = service.Shutdown()
	if err != nil {
		slog.Warn("some browser sessions did not close cleanly", "err", err)
	}
}

// waitDispatcher gives queued messages a bounded amount of time to finish,
// their context is already cancelled so this is normally quick.
func waitDispatcher(dispatcher *chat.Dispatcher, limit time.Duration) {
	done := make(chan struct{})
	go func() {
		dispatcher.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(limit):
		slog.Warn("gave up waiting for in-flight messages", "after", limit)
	}
}
