package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/skua-io/skua/src/gateway"
	"github.com/skua-io/skua/src/logging"
	"github.com/skua-io/skua/src/rest"
	"github.com/skua-io/skua/src/utils"
)

var signals = []os.Signal{
	os.Interrupt,
	syscall.SIGINT,
	syscall.SIGTERM,
}

func main() {
	// A missing .env is fine when the variables come from the environment.
	_ = godotenv.Load()
	logger := slog.New(logging.NewHandler(os.Stdout, logging.HandlerOpts{
		SlogOpts: slog.HandlerOptions{Level: slog.LevelDebug},
	}))
	slog.SetDefault(logger)
	cfg := utils.LoadConfiguration()

	ctx, stop := signal.NotifyContext(context.Background(), signals...)
	defer stop()

	api, err := rest.New(rest.Config{
		Token:  cfg.DiscordBotToken,
		Logger: logger,
	})
	if err != nil {
		logger.Error("rest client", "error", err)
		os.Exit(1)
	}

	gatewayURL := cfg.DiscordGatewayAddress
	if gatewayURL == "" {
		resp, err := api.Execute(ctx, rest.NewRequest(http.MethodGet, "/gateway/bot"))
		if err != nil {
			logger.Error("fetch gateway url", "error", err)
			os.Exit(1)
		}
		var d struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(resp.Body, &d); err != nil {
			logger.Error("decode gateway url", "error", err)
			os.Exit(1)
		}
		gatewayURL = d.URL
	}

	var gw *gateway.Client
	gw, err = gateway.New(gateway.Config{
		Token:    cfg.DiscordBotToken,
		Intents:  gateway.GuildsIntent | gateway.GuildMessagesIntent | gateway.MessageContentIntent,
		Compress: true,
		Logger:   logger,
		OnEvent: func(name string, data []byte) {
			logger.Info("dispatch", "event", name, "bytes", len(data))
		},
		OnStateChange: func(s gateway.State) {
			if s == gateway.StateReady {
				if err := gw.UpdatePresence("online", "with snowflakes", 0); err != nil {
					logger.Warn("presence update", "error", err)
				}
			}
		},
	})
	if err != nil {
		logger.Error("gateway client", "error", err)
		os.Exit(1)
	}

	if err := gw.Connect(ctx, gatewayURL); err != nil {
		logger.Error("gateway connect", "error", err)
		os.Exit(1)
	}
	for ctx.Err() == nil {
		if err := gw.Process(time.Second); err != nil {
			logger.Warn("gateway", "error", err)
		}
	}
	_ = gw.Disconnect()
	_ = gw.Process(0)
}
