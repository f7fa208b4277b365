package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/rs/cors"

	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkgconfig"
	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkglog"
	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkgrouter"
	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkgroutine"
	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkguid"
)

func (a *App) initConfig() {
	path := "/config/config.yaml"
	if os.Getenv("LOCAL") == "true" {
		path = "./config/config.yaml"
	}

	cfg, err := pkgconfig.NewViper(path)
	if err != nil {
		slog.Error("failed to init config", "error", err)
		os.Exit(1)
	}

	//nolint:errcheck,gosec // ignore error
	os.Setenv("TZ", cfg.GetString("tz"))

	if cfg.IsSet("log.level") {
		pkglog.InitLogging(pkglog.ParseLevel(cfg.GetString("log.level")))
	}

	a.config = cfg
	a.addCloser("Config", func(context.Context) error {
		return cfg.Close()
	})
}

func (a *App) initLibraries() {
	a.goroutine = pkgroutine.NewManager(100)
	a.uuid = pkguid.NewUUID()
}

func (a *App) initHTTPServer() {
	a.router = pkgrouter.NewRouter(a.uuid)

	origins := a.config.GetArray("server.cors.origins")
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("server.address.http"),
		Handler:           corsHandler.Handler(a.router),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
