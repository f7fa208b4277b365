package main

import (
	"context"
	"time"

	"github.com/caiocltm/JSExpert-Drive/internal/app"
)

func main() {
	application := app.New()
	<-application.Start()

	// the drain budget starts with the signal, not with the process
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	application.Stop(ctx)
}
