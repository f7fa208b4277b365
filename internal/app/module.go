package app

import (
	"log/slog"
	"os"

	"github.com/caiocltm/JSExpert-Drive/internal/upload"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.upload.enabled") {
		closer, err := upload.New(upload.Dependency{
			Config:    a.config,
			Router:    a.router,
			Goroutine: a.goroutine,
			Context:   a.ctx,
			ID:        a.uuid,
		})
		if err != nil {
			slog.Error("failed to init module upload", "error", err)
			os.Exit(1)
		}
		if closer != nil {
			a.addCloser("Upload", closer)
		}
	}
}
