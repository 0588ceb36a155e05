package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vctt94/bisonbotkit/logging"

	"github.com/vater-v/backgammon-server/pkg/gnubg"
	"github.com/vater-v/backgammon-server/pkg/server"
	"github.com/vater-v/backgammon-server/pkg/utils"
	"github.com/vater-v/backgammon-server/pkg/web"
)

func main() {
	var (
		datadir     string
		addr        string
		configPath  string
		gnubgBinary string
		debugLevel  string
	)
	flag.StringVar(&datadir, "datadir", "./data", "Directory for database, logs and assets")
	flag.StringVar(&addr, "addr", "127.0.0.1:8080", "Host:port to listen on")
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&gnubgBinary, "gnubg", "", "Path to the gnubg binary (overrides config)")
	flag.StringVar(&debugLevel, "debuglevel", "info", "Logging level: trace, debug, info, warn, error")
	flag.Parse()

	if err := utils.EnsureDataDirExists(datadir); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if gnubgBinary != "" {
		cfg.GnubgBinary = gnubgBinary
	}
	if cfg.JWTSecret == "" {
		// Ephemeral secret: tokens stop working across restarts, which is
		// acceptable because sessions do not survive restarts either.
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate jwt secret: %v\n", err)
			os.Exit(1)
		}
		cfg.JWTSecret = hex.EncodeToString(buf)
	}

	logBackend, err := logging.NewLogBackend(logging.LogConfig{
		LogFile:     filepath.Join(datadir, "logs", "backgammonsrv.log"),
		DebugLevel:  debugLevel,
		MaxLogFiles: 5,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	log := logBackend.Logger("SERVER")

	database, err := server.NewDatabase(utils.ResolveUnder(datadir, cfg.DBFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init db: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	fileLogger := server.NewFileLogger(
		utils.ResolveUnder(datadir, cfg.StatsLogFile),
		utils.ResolveUnder(datadir, cfg.EventsLogFile),
		logBackend.Logger("LOGFILE"),
	)
	stats := server.NewStatsRecorder(database, fileLogger, logBackend.Logger("STATS"))

	assets := web.NewAssetCache(utils.ResolveUnder(datadir, cfg.AvatarDir), logBackend.Logger("WEB"))
	profiles := server.NewProfileStore(database, assets)
	tokens := web.NewTokenManager(cfg.JWTSecret, time.Duration(cfg.JWTTTLHours)*time.Hour)

	queue := server.NewNotificationQueue(256)

	engine := gnubg.NewService(&gnubg.ProcessRunner{Binary: cfg.GnubgBinary}, logBackend.Logger("GNUBG"))
	controller := server.NewAIController(engine, logBackend.Logger("AI"))
	controller.Start()
	defer controller.Stop()

	gateway := server.NewServer(cfg, log, fileLogger, profiles, tokens, queue)

	registry := server.NewRegistry(logBackend.Logger("REGISTRY"))
	matchmaker := server.NewMatchmaker(logBackend.Logger("MATCH"))
	factory := server.NewGameFactory(cfg, logBackend.Logger("GAME"), fileLogger, stats,
		controller, queue, gateway.ProfileByConn, registry.RemoveByID)
	svc := server.NewGameService(registry, matchmaker, factory, gateway.ProfileByConn, log)
	gateway.SetGameService(svc)

	consumer := server.NewConsumer(queue, gateway, logBackend.Logger("QUEUE"))
	go consumer.Run()
	defer queue.Close()

	handler := web.NewHandler(database, profiles, tokens, assets, gateway.HandleWS, logBackend.Logger("WEB"))

	log.Infof("backgammon server listening on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		fmt.Fprintf(os.Stderr, "http serve error: %v\n", err)
		os.Exit(1)
	}
}
