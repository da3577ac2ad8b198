// Command subsift-api serves the subtitle cleaner over HTTP
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"subsift/internal/core/pipeline"
	"subsift/internal/core/profile"
	"subsift/internal/core/version"
	"subsift/internal/modkit"
	"subsift/internal/platform/config"
	perr "subsift/internal/platform/errors"
	"subsift/internal/platform/logger"
	phttp "subsift/internal/platform/net/http"
	"subsift/internal/services/api"
	"subsift/internal/settings"
)

const service = "subsift-api"

func main() {
	opt := logger.FromEnv()
	opt.Service = service
	logger.Init(opt)
	l := logger.Get()

	// SUBSIFT_* env: port, CORS, body cap, timeout, settings file
	env := config.LoadEnv()

	st, err := settings.Load(env.SettingsFile)
	if err != nil {
		l.Error().Err(err).Msg("settings")
		os.Exit(perr.Exit(err))
	}
	st.ApplyEnv(env)

	reg, err := profile.NewRegistry(st.RegistryOptions())
	if err != nil {
		l.Error().Err(err).Msg("profiles")
		os.Exit(perr.Exit(err))
	}

	srv := phttp.NewServer(env)
	api.Mount(srv.Router(), api.Options{
		Deps: modkit.Deps{
			Env:       env,
			Engine:    pipeline.NewEngine(reg),
			Settings:  st,
			Service:   service,
			StartedAt: time.Now(),
		},
		EnableProfiler: env.APIProfiler,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l.Info().
		Str("version", version.Info(service).Version).
		Strs("languages", reg.Languages()).
		Str("addr", srv.Addr()).
		Msg("starting")
	if err := srv.Run(ctx); err != nil {
		l.Error().Err(err).Msg("http server stopped")
		stop()
		os.Exit(1)
	}
}
