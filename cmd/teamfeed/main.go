package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/joho/godotenv"

	"teamfeed/internal/app"
	"teamfeed/pkg/config"
	"teamfeed/pkg/logger"
	"teamfeed/pkg/shutdown"
)

// version is set via ldflags during release builds.
var version = "dev"

func main() {
	_ = godotenv.Load(".env")

	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()
	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])

	cfg, err := config.LoadEffective(cfgPath)
	if err != nil {
		logger.Init()
		shutdown.Abort("load config", err, dbVal)
	}

	logger.InitWithLevel(cfg.Logging.Level)

	// Explicit flags win over env/config.
	addr := cfg.Addr()
	if setFlags["addr"] {
		addr = addrVal
	}
	dbPath := dbVal
	if !setFlags["db"] && cfg.Server.DBPath != "" {
		dbPath = cfg.Server.DBPath
	}

	a, err := app.New(cfg, addr, dbPath, version)
	if err != nil {
		shutdown.Abort("startup", err, dbPath)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := a.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		shutdown.Abort("serve", err, dbPath)
	}
}
