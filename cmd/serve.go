package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotstats/internal/repositories"
	"github.com/desertthunder/spotstats/internal/server"
	"github.com/desertthunder/spotstats/internal/web"
)

// Serve runs the stats API until the process is interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Dashboard.Addr()
	}

	handler := web.New(repositories.NewStatsRepository(db), r.config.Extract.DefaultTimeRange, r.logger)
	router := server.NewRouter(r.logger)
	server.Mount(router, handler)

	r.logger.Info("serving stats API", "addr", addr, "routes", len(handler.Routes()))
	return server.New(addr, router, r.logger).Run(ctx)
}
