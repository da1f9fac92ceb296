package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/lucky-wheel/internal/config"
	"github.com/yourusername/lucky-wheel/internal/domain/entity"
	"github.com/yourusername/lucky-wheel/internal/service/spinmanager"
	"github.com/yourusername/lucky-wheel/internal/spectator"
	ws "github.com/yourusername/lucky-wheel/internal/websocket"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "server WebSocket endpoint")
	role := flag.String("role", ws.RoleSpectator, "client role: display, spectator or admin")
	configPath := flag.String("config", "", "config file with wheel timings (default $CONFIG_PATH or config/config.yaml)")
	frameEvery := flag.Duration("frame-log", 250*time.Millisecond, "how often to log the segment under the pointer")
	flag.Parse()

	_ = godotenv.Load()

	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config/config.yaml"
	}

	wheelCfg := spinmanager.DefaultConfig()
	cfg, err := config.Load(path)
	if err != nil {
		setupLogger(config.LogConfig{Level: os.Getenv("LOG_LEVEL"), Pretty: true})
		log.Warn().Err(err).Str("path", path).Msg("Config unavailable, using default wheel timings")
	} else {
		setupLogger(cfg.Log)
		wheelCfg = spinmanager.ConfigFromWheel(cfg.Wheel)
	}

	client := spectator.NewClient(spectator.Config{
		URL:           *url,
		Role:          *role,
		FrameLogEvery: *frameEvery,
		Wheel:         wheelCfg,
	}, nil)
	client.OnWinner = func(p entity.Participant) {
		log.Info().Str("name", p.Name).Int("winners_seen", len(client.Winners())).Msg("Winner accepted")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("url", *url).Str("role", *role).Msg("Spectator starting")
	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("Spectator stopped")
	}
	log.Info().Msg("Spectator stopped")
}

func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
