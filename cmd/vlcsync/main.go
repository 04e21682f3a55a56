package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/vlcsync/internal/adapters/p2p"
	"github.com/dkeye/vlcsync/internal/adapters/relay"
	"github.com/dkeye/vlcsync/internal/adapters/vlc"
	"github.com/dkeye/vlcsync/internal/config"
	"github.com/dkeye/vlcsync/internal/core"
	"github.com/dkeye/vlcsync/internal/domain"
	"github.com/dkeye/vlcsync/internal/session"
)

const defaultRoom = "movieroom"

func main() {
	configPath := flag.String("config", config.DefaultClientFile, "path to the participant config file")
	transportName := flag.String("transport", "", "relay or p2p, overrides the config file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [room]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, created, err := config.Ensure(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if created {
		fmt.Printf("Edit config at %s\n", *configPath)
		return
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if *transportName != "" {
		cfg.Transport = *transportName
	}

	raw := defaultRoom
	if flag.NArg() > 0 {
		raw = flag.Arg(0)
	}
	room, err := domain.NewRoomName(raw)
	if err != nil {
		log.Fatal().Err(err).Str("room", raw).Msg("bad room name")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, room); err != nil {
		if errors.Is(err, domain.ErrConnection) {
			log.Fatal().Err(err).Msg("connection failed")
		}
		log.Error().Err(err).Msg("vlcsync stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Client, room domain.RoomName) error {
	transport, err := openTransport(ctx, cfg)
	if err != nil {
		return err
	}
	defer transport.Close()

	player, err := vlc.Connect(ctx, vlc.Options{
		Address:    cfg.Player.Address,
		Password:   cfg.Player.Password,
		RetryDelay: cfg.RetryDelay,
	})
	if err != nil {
		return err
	}
	defer player.Close()

	sess := session.New(session.Options{
		Room:           room,
		Transport:      transport,
		Player:         player,
		DriftThreshold: cfg.DriftThreshold,
		Out:            os.Stdout,
	})
	return sess.Run(ctx, os.Stdin)
}

func openTransport(ctx context.Context, cfg *config.Client) (core.Transport, error) {
	switch cfg.Transport {
	case config.TransportRelay:
		return relay.Dial(ctx, relay.Options{
			Host:       cfg.Host,
			Password:   cfg.Password,
			RetryDelay: cfg.RetryDelay,
		})
	case config.TransportP2P:
		return p2p.New(ctx, p2p.Options{
			ListenPort: cfg.P2P.ListenPort,
			MdnsTag:    cfg.P2P.MdnsTag,
			Settle:     cfg.P2P.Settle,
		})
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
