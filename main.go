package main

import (
	"github.com/redis/go-redis/v9"

	"github.com/23jmo/typr-server/broadcast"
	"github.com/23jmo/typr-server/config"
	"github.com/23jmo/typr-server/logger"
	"github.com/23jmo/typr-server/matchmaking"
	"github.com/23jmo/typr-server/monitor"
	"github.com/23jmo/typr-server/persistence"
	"github.com/23jmo/typr-server/room"
	"github.com/23jmo/typr-server/server"
	"github.com/23jmo/typr-server/services"
	"github.com/23jmo/typr-server/session"
	"github.com/23jmo/typr-server/texts"
	"github.com/23jmo/typr-server/timer"
)

func main() {
	// Initialize logger
	logger.Init()
	defer logger.Log.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	db, err := persistence.NewGormPostgreSQL(
		cfg.Database.Postgres.Host,
		cfg.Database.Postgres.Port,
		cfg.Database.Postgres.User,
		cfg.Database.Postgres.Password,
		cfg.Database.Postgres.DBName,
	)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Log.Info("Database connection successful.")

	raceService := services.NewRaceService(db)

	// Monitoring
	mon := monitor.NewMonitor("typr")
	mon.StartServer(cfg.Server.MetricsAddress)

	// Core managers
	timers := timer.NewManager()
	defer timers.Stop()
	sessions := session.NewManager()
	rooms := room.NewManager()
	broadcaster := broadcast.NewRoomBroadcaster(rooms, sessions)

	roomService := room.NewService(rooms, timers, broadcaster, texts.NewGenerator(), raceService, mon, cfg.Race, cfg.Matchmaking)

	// Matchmaking queue: Redis when configured, in-process otherwise.
	var store matchmaking.QueueStore
	if cfg.Redis.Addr != "" {
		store = matchmaking.NewRedisStore(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
		logger.Log.Infof("Matchmaking queue backed by Redis at %s", cfg.Redis.Addr)
	} else {
		store = matchmaking.NewMemoryStore()
		logger.Log.Info("Matchmaking queue backed by process memory")
	}
	matchmaker := matchmaking.NewMatchmaker(store, sessions, roomService, mon, cfg.Matchmaking)

	// Start Server
	gameServer := server.NewGameServer(cfg.Server, roomService, sessions, matchmaker, raceService, mon)
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
