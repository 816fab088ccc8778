package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/zyx3721/ops-integrated-admin-console/internal/buildinfo"
	"github.com/zyx3721/ops-integrated-admin-console/internal/client/cli"
	"github.com/zyx3721/ops-integrated-admin-console/internal/client/config"
	"github.com/zyx3721/ops-integrated-admin-console/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewDefault(slog.LevelWarn)

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
