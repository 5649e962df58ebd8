package main

import (
	"context"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
)

//Simple usage: go build && ./flashctl --hardware=file --image=dump.img read 0x10
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("flashctl failed")
		cancel()
		os.Exit(1)
	}
}
