package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-dao-lab/internal/api"
	"solana-dao-lab/internal/config"
	"solana-dao-lab/internal/ledger"
	"solana-dao-lab/internal/observability"
	"solana-dao-lab/internal/solana"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ledger with the HTTP explorer and a slot clock",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.String("http-addr", ":8080", "HTTP explorer listen address")
	flags.String("metrics-addr", ":9090", "Prometheus metrics listen address (empty to serve only on the explorer)")
	flags.Bool("use-memory", true, "keep accounts and events in memory")
	flags.String("postgres-dsn", "", "PostgreSQL connection string")
	flags.String("clickhouse-dsn", "", "ClickHouse connection string for program events")
	flags.String("slot-source", config.SlotSourceTicker, "slot clock: manual, ticker or ws")
	flags.Duration("slot-interval", 400*time.Millisecond, "ticker slot interval")
	flags.String("ws-endpoint", "", "Solana WebSocket endpoint for the ws slot source")
	flags.String("rpc-endpoint", "", "Solana RPC endpoint used to seed the ws slot source")

	a.bind(flags, config.KeyHTTPAddr, "http-addr")
	a.bind(flags, config.KeyMetricsAddr, "metrics-addr")
	a.bind(flags, config.KeyUseMemory, "use-memory")
	a.bind(flags, config.KeyPostgresDSN, "postgres-dsn")
	a.bind(flags, config.KeyClickhouseDSN, "clickhouse-dsn")
	a.bind(flags, config.KeySlotSource, "slot-source")
	a.bind(flags, config.KeyWSEndpoint, "ws-endpoint")
	a.bind(flags, config.KeyRPCEndpoint, "rpc-endpoint")
	a.bind(flags, config.KeySlotInterval, "slot-interval")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	s, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.close()

	g, ctx := errgroup.WithContext(ctx)

	clock, err := a.slotClock(ctx, g)
	if err != nil {
		return err
	}
	rt := newRuntime(s, clock, logger)

	server := api.NewServer(rt, logger.Named("api"))
	g.Go(func() error {
		return api.ListenAndServe(ctx, cfg.HTTPAddr, server.Handler(), logger)
	})

	if cfg.MetricsAddr != "" && cfg.MetricsAddr != cfg.HTTPAddr {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		g.Go(func() error {
			return api.ListenAndServe(ctx, cfg.MetricsAddr, mux, logger)
		})
	}

	logger.Info("launchlab serving",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("slot_source", cfg.SlotSource),
		zap.Uint64("slot", rt.Slot()),
	)

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("launchlab stopped", zap.Uint64("slot", rt.Slot()))
	return err
}

// slotClock builds the configured clock and starts whatever drives it on g.
func (a *app) slotClock(ctx context.Context, g *errgroup.Group) (ledger.Clock, error) {
	cfg, logger := a.cfg, a.logger

	switch cfg.SlotSource {
	case config.SlotSourceManual:
		return ledger.NewManualClock(0), nil

	case config.SlotSourceTicker:
		clock := ledger.NewTickerClock(0, cfg.SlotInterval)
		g.Go(func() error { return clock.Run(ctx) })
		return clock, nil

	case config.SlotSourceWS:
		var start uint64
		if cfg.RPCEndpoint != "" {
			slot, err := solana.NewHTTPClient(cfg.RPCEndpoint).GetSlot(ctx)
			if err != nil {
				return nil, fmt.Errorf("seed slot: %w", err)
			}
			start = slot
		}
		clock := ledger.NewFollowClock(start)

		wsCfg := solana.DefaultWSConfig()
		wsCfg.Logger = logger.Named("ws")
		ws, err := solana.NewWSClient(ctx, cfg.WSEndpoint, &wsCfg)
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", cfg.WSEndpoint, err)
		}
		notifications, err := ws.SubscribeSlots(ctx)
		if err != nil {
			_ = ws.Close()
			return nil, fmt.Errorf("subscribe slots: %w", err)
		}

		slots := make(chan uint64)
		g.Go(func() error {
			defer close(slots)
			for {
				select {
				case <-ctx.Done():
					return nil
				case n, ok := <-notifications:
					if !ok {
						return errors.New("slot subscription closed")
					}
					select {
					case slots <- n.Slot:
					case <-ctx.Done():
						return nil
					}
				}
			}
		})
		g.Go(func() error { return clock.Follow(ctx, slots) })
		g.Go(func() error {
			<-ctx.Done()
			return ws.Close()
		})
		return clock, nil
	}
	return nil, fmt.Errorf("%w: unknown slot_source %q", config.ErrInvalidConfig, cfg.SlotSource)
}
