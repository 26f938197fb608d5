package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tankwar/server/internal/assets"
	"github.com/tankwar/server/internal/config"
	"github.com/tankwar/server/internal/game"
	"github.com/tankwar/server/internal/match"
	"github.com/tankwar/server/internal/matchmaker"
	"github.com/tankwar/server/internal/registry"
	"github.com/tankwar/server/internal/server"
	"github.com/tankwar/server/internal/session"
	"github.com/tankwar/server/internal/store"
	"github.com/tankwar/server/internal/store/postgres"
	"github.com/tankwar/server/internal/wire"
)

const ConfigPath = "config/server.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv("TANKWAR_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("tankwar server starting", "bind", cfg.BindAddress, "port", cfg.Port, "log_level", cfg.LogLevel)

	assetDir, err := assets.Resolve(cfg.DevMode)
	if err != nil {
		return fmt.Errorf("resolving asset dir: %w", err)
	}
	if err := assets.VerifyRequired(assetDir); err != nil {
		return fmt.Errorf("verifying assets: %w", err)
	}
	slog.Info("assets verified", "dir", assetDir)

	pgStore, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pgStore.Close()
	slog.Info("database connected")

	if err := postgres.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	reg := registry.New()

	strategies := map[uint8]matchmaker.Strategy{
		game.ModeRanked2: matchmaker.NewRankedBucketed(game.ModeRanked2),
		game.ModeCasual2: matchmaker.NewCasualFIFO(game.ModeCasual2, 2),
		game.ModeCasual3: matchmaker.NewCasualFIFO(game.ModeCasual3, 3),
		game.ModeCasual5: matchmaker.NewCasualFIFO(game.ModeCasual5, 5),
	}
	if ranked, ok := strategies[game.ModeRanked2].(*matchmaker.RankedBucketed); ok {
		ranked.SetTuning(cfg.Matchmaker.RankedMaxBucketsDiff, cfg.Matchmaker.RankedBucketIncrementOr())
	}

	mm := matchmaker.New(reg, strategies)
	mm.Configure(
		cfg.Matchmaker.InitialClockOr(),
		cfg.Matchmaker.IncrementOr(),
		cfg.Matchmaker.MaxQueueSizeOr(),
		cfg.Matchmaker.TurnFuelOr(),
	)
	mm.SetResultSink(func(mode uint8, result match.Result) {
		recordMatchResult(ctx, pgStore, reg, mode, result)
	})

	var st store.Store = pgStore

	tlsCert, err := tls.LoadX509KeyPair(
		filepath.Join(assetDir, cfg.TLSCertFile),
		filepath.Join(assetDir, cfg.TLSKeyFile),
	)
	if err != nil {
		return fmt.Errorf("loading TLS certificate: %w", err)
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		MinVersion:   session.MinTLSVersion,
	}

	srv := server.New(cfg, st, reg, mm, tlsConfig)
	if err := srv.RefreshBans(ctx); err != nil {
		return fmt.Errorf("loading ban tables: %w", err)
	}
	slog.Info("server identity", "fingerprint", srv.Identity())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := matchmakerTicker(gctx, mm)
		<-ticker
		return nil
	})

	g.Go(func() error {
		slog.Info("admin console ready")
		srv.RunAdminConsole(gctx, os.Stdin, os.Stdout)
		return nil
	})

	g.Go(func() error {
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// recordMatchResult persists a concluded match's history/elo update and
// its full replay blob, invoked from the matchmaker's result sink so
// internal/matchmaker never depends on internal/store.
func recordMatchResult(ctx context.Context, st *postgres.Store, reg *registry.UserRegistry, mode uint8, result match.Result) {
	rec := store.MatchRecord{
		MatchID:          result.MatchID,
		Mode:             mode,
		Players:          result.Players,
		EliminationOrder: result.EliminationOrder,
		ConcludedAt:      result.ConcludedAt,
		Ranked:           mode == game.ModeRanked2,
	}
	if err := st.RecordMatch(ctx, rec); err != nil {
		slog.Error("recording match result", "matchID", result.MatchID, "error", err)
	}

	players := make([]wire.UserEntry, len(result.Players))
	for i, id := range result.Players {
		username := ""
		if u, ok := reg.Lookup(id); ok {
			username = u.Username
		}
		players[i] = wire.UserEntry{ID: id, Username: username}
	}
	replay := wire.MatchReplay{
		StartedAt: result.StartedAt.UnixMilli(),
		EndedAt:   result.ConcludedAt.UnixMilli(),
		MatchID:   result.MatchID,
		Filename:  fmt.Sprintf("match-%d.replay", result.MatchID),
		Map: wire.MapDescriptor{
			W:              result.Map.W,
			H:              result.Map.H,
			TanksPerPlayer: result.Map.TanksPerPlayer,
			NumPlayers:     result.Map.NumPlayers,
			Mode:           result.Map.Mode,
		},
		Players: players,
		Turns:   result.History,
	}
	if err := st.StoreReplay(ctx, result.MatchID, mode, result.ConcludedAt, replay); err != nil {
		slog.Error("storing match replay", "matchID", result.MatchID, "error", err)
	}
}

// matchmakerTickInterval is how often TickAll re-evaluates every
// strategy's queue (spec §4.5 "driven by a periodic timer").
const matchmakerTickInterval = time.Second

// matchmakerTicker drives Matchmaker.TickAll on a fixed interval until
// ctx is canceled.
func matchmakerTicker(ctx context.Context, mm *matchmaker.Matchmaker) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(matchmakerTickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				mm.TickAll(now)
			}
		}
	}()
	return done
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
