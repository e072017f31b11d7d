package app

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/depthbot/internal/server"
	"github.com/alanyoungcy/depthbot/internal/server/handler"
	"github.com/alanyoungcy/depthbot/internal/telegram"
)

// BotMode runs the Telegram bot together with the market registry refresher
// and the cache sweeper.
func (a *App) BotMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting bot mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startBackground(ctx, g, deps)
	a.startBot(ctx, g, deps)

	return g.Wait()
}

// ServerMode runs the read-only HTTP API without the Telegram bot.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startBackground(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps)

	return g.Wait()
}

// FullMode runs the bot and, when server.enabled is set, the HTTP API.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode",
		slog.Bool("server_enabled", a.cfg.Server.Enabled),
	)

	g, ctx := errgroup.WithContext(ctx)
	a.startBackground(ctx, g, deps)
	a.startBot(ctx, g, deps)
	if a.cfg.NeedsServer() {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// startBackground launches the goroutines every mode needs: periodic market
// metadata refresh and, for the in-process cache, expired entry sweeping.
func (a *App) startBackground(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error {
		return deps.Registry.Run(ctx, a.cfg.Analysis.RegistryRefresh.Duration)
	})

	if deps.MemoryCache != nil {
		g.Go(func() error {
			return deps.MemoryCache.Run(ctx, a.cfg.Cache.SweepInterval.Duration)
		})
	}
}

func (a *App) startBot(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	tc := a.cfg.Telegram
	client := telegram.NewClient(tc.APIURL, tc.Token, tc.PollTimeout.Duration)
	bot := telegram.NewBot(client, deps.Service, telegram.Config{
		AllowedUsers:   tc.AllowedUsers,
		DepthOptions:   depthOptions(a.cfg.Analysis.DepthOptions),
		PollTimeout:    tc.PollTimeout.Duration,
		MaxConcurrent:  tc.MaxConcurrent,
		RequestTimeout: tc.RequestTimeout.Duration,
		SessionIdle:    tc.SessionIdle.Duration,
		TopN:           a.cfg.Analysis.TopN,
	}, a.base)

	g.Go(func() error {
		return bot.Run(ctx)
	})
}

func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	srv := a.newHTTPServer(deps)
	g.Go(func() error {
		return srv.Run(ctx)
	})
}

func (a *App) newHTTPServer(deps *Dependencies) *server.Server {
	sc := a.cfg.Server
	return server.NewServer(server.Config{
		Port:           sc.Port,
		CORSOrigins:    sc.CORSOrigins,
		APIKey:         sc.APIKey,
		RateLimitRPS:   sc.RateLimitRPS,
		RateLimitBurst: sc.RateLimitBurst,
	}, server.Handlers{
		Health: handler.NewHealthHandler(deps.Registry, a.base),
		Depth:  handler.NewDepthHandler(deps.Service, a.base),
	}, a.base)
}
