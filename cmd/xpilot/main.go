// Command xpilot automates an X account: trend-driven posting and feed engagement.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ibeckermayer/xpilot/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Main(ctx)
	stop()
	os.Exit(code)
}
