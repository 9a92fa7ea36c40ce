package main

import (
	"context"
	"tuoitre-crawler/cmd/crawler-cli/commands"
	"tuoitre-crawler/lib/osutil"
	"tuoitre-crawler/lib/serviceutil"
	"tuoitre-crawler/lib/telemetry"
)

func main() {
	ctx := osutil.SignalContext()

	instruments, err := telemetry.SetupFromEnv(ctx, "crawler-cli")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer instruments.Shutdown(context.Background())

	commands.ExecuteContext(ctx)
}
