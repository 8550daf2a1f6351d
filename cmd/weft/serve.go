package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"weft/internal/answer"
	"weft/internal/briefing"
	"weft/internal/cache"
	"weft/internal/feed"
	"weft/internal/scorer"
	web "weft/internal/server"
	"weft/internal/summary"
	"weft/internal/worker"
)

const (
	sweepEvery    = 10 * time.Minute
	gcEvery       = 5 * time.Minute
	feedTimeout   = 15 * time.Second
	shutdownGrace = 10 * time.Second
)

var (
	serveAddr    string
	refreshEvery time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scoring worker and web server",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Setup Signal Handling (Ctrl+C)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			logger.Info("Shutting down...")
			cancel()
		}()

		cfg := loadConfig(cmd)
		addr := cfg.Server.Addr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}

		// Initialize Store (FULL MODE - Redis + Badger)
		st := openStore(cfg, cmd, true)
		defer st.Close()
		go st.RunGC(ctx, gcEvery, logger)

		gen := newLLM(cfg)
		summaries := cache.New()

		sc := scorer.New(gen, st, logger, scorer.WithInterests(cfg.Interests))
		w := worker.NewWorker(st, sc, logger)
		go w.Start(ctx)

		ingester := feed.NewIngester(
			feed.NewRSSFetcher(cfg.UserAgent, feedTimeout, logger),
			st, cfg.EnabledSources(), logger,
		)
		go housekeeping(ctx, summaries, ingester, refreshEvery)

		srv := web.NewServer(web.Deps{
			Store:        st,
			Cache:        summaries,
			Summarizer:   summary.NewGenerator(summaries, gen, logger),
			Refresher:    ingester,
			Briefer:      briefing.NewGenerator(st, gen, logger),
			Answerer:     answer.NewEngine(st, gen, logger),
			Threshold:    cfg.Threshold,
			SummaryStyle: cfg.SummaryStyle,
		}, logger)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start(addr) }()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Web server failed", zap.Error(err))
			}
			cancel()
		}

		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownGrace)
		defer stop()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Warn("Web server shutdown incomplete", zap.Error(err))
		}
		logger.Info("Goodbye!")
	},
}

// housekeeping sweeps expired summaries and, when every > 0, refreshes
// the feeds on a fixed interval until ctx is done.
func housekeeping(ctx context.Context, summaries *cache.Cache, ingester *feed.Ingester, every time.Duration) {
	sweep := time.NewTicker(sweepEvery)
	defer sweep.Stop()

	var refresh <-chan time.Time
	if every > 0 {
		t := time.NewTicker(every)
		defer t.Stop()
		refresh = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			if n := summaries.SweepExpired(); n > 0 {
				logger.Debug("Expired summaries swept", zap.Int("removed", n), zap.Int("entries", summaries.Len()))
			}
		case <-refresh:
			if _, err := ingester.Refresh(ctx); err != nil {
				logger.Error("Scheduled refresh failed", zap.Error(err))
			}
		}
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":3000", "Address to listen on")
	serveCmd.Flags().DurationVar(&refreshEvery, "refresh-every", 30*time.Minute, "Feed refresh interval (0 disables)")
}
