package app

import (
	"context"
	"net/http"
	"os"

	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkgconfig"
	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkglog"
	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkgrouter"
	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkgroutine"
	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkguid"
)

type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config pkgconfig.Config

	// libraries
	uuid      pkguid.StringID
	goroutine *pkgroutine.Manager

	// resources

	// server
	router     *pkgrouter.Router
	httpServer *http.Server

	// closed in reverse registration order once the http server is drained
	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

func (a *App) addCloser(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func New() *App {
	pkglog.InitLogging(pkglog.ParseLevel(os.Getenv("LOG_LEVEL")))

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initLibraries()
	app.initHTTPServer()
	app.initModules()

	return app
}
