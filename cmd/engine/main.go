package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"relayengine/auth"
	"relayengine/internal/config"
	"relayengine/internal/db"
	"relayengine/internal/discovery"
	"relayengine/internal/engine"
	"relayengine/internal/internet_bridge"
	"relayengine/internal/mqtt"
	"relayengine/internal/notify"
	"relayengine/internal/redis"
	"relayengine/internal/scheduler"
	"relayengine/internal/seed"
	"relayengine/internal/taskqueue"
	"relayengine/internal/utils"
	"relayengine/internal/web"
)

func main() {
	seedPath := flag.String("seed", "", "import rules from a YAML file before starting")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	utils.InitLogging(cfg.Log.Level)
	if cfg.JWT.Secret == "" {
		log.Fatalf("Failed to load config: jwt.secret is required")
	}
	loc, _ := cfg.Location()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.NewDB(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer dbConn.Close()
	if err := dbConn.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate DB: %v", err)
	}

	if *seedPath != "" {
		rules, err := seed.LoadFile(*seedPath)
		if err != nil {
			log.Fatalf("Failed to read seed file: %v", err)
		}
		if _, err := seed.Import(ctx, dbConn, rules); err != nil {
			log.Fatalf("Failed to import seed rules: %v", err)
		}
	}

	redisClient, err := redis.NewRedisClient(ctx, cfg.Redis.Addr)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	store := redis.NewStore(redisClient, cfg.Engine.TelemetryTTL)

	mqttClient, err := mqtt.NewMQTTClient(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.CommandTopic)
	if err != nil {
		log.Fatalf("Failed to connect to MQTT: %v", err)
	}
	defer mqttClient.Disconnect()

	// Notifications are queued through asynq and delivered by the worker
	var notifier engine.Notifier
	var worker *taskqueue.Worker
	sender, err := notify.NewSender(ctx, notify.Config{
		Endpoint:     cfg.Notify.Endpoint,
		ClientID:     cfg.Notify.ClientID,
		ClientSecret: cfg.Notify.ClientSecret,
		TokenURL:     cfg.Notify.TokenURL,
	})
	if err != nil {
		log.Printf("Notifications disabled: %v", err)
	} else {
		queue := taskqueue.NewQueue(cfg.Redis.Addr)
		defer queue.Close()
		notifier = queue

		worker = taskqueue.NewWorker(cfg.Redis.Addr, sender, 4)
		if err := worker.Start(); err != nil {
			log.Fatalf("Failed to start workers: %v", err)
		}
	}

	sched := scheduler.NewScheduler(loc)
	sched.Start()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	eng := engine.NewEngine(engine.Dependencies{
		Rules:      dbConn,
		Relays:     mqttClient,
		Notifier:   notifier,
		Subscriber: mqttClient,
		Mirror:     store,
		Latches:    store,
		ActionLog:  dbConn,
		Boundaries: sched,
	},
		engine.WithLocation(loc),
		engine.WithMetrics(engine.NewMetrics(registry)),
		engine.WithLatchPersistence(cfg.Engine.PersistLatchState),
	)
	if err := eng.Start(ctx); err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}

	if err := sched.AddInterval("timer-sweep", cfg.Engine.TimerSweepInterval, func() {
		eng.SweepTimers(context.Background())
	}); err != nil {
		log.Fatalf("Failed to schedule timer sweep: %v", err)
	}
	if err := sched.AddInterval("schedule-sweep", cfg.Engine.ScheduleSweepInterval, func() {
		eng.EvaluateSchedules(context.Background())
	}); err != nil {
		log.Fatalf("Failed to schedule rule sweep: %v", err)
	}

	authModule := auth.NewAuthModule(dbConn, store, cfg.JWT.Secret)
	webServer := web.NewWebServer(web.Dependencies{
		Auth:      authModule,
		Tokens:    authModule,
		Rules:     dbConn,
		Devices:   dbConn,
		Telemetry: store,
		Operators: dbConn,
		Engine:    eng,
		Gatherer:  registry,
		Broker:    mqttClient,
		AgentID:   cfg.App.AgentID,
		Addr:      ":" + cfg.App.Port,
	})
	go func() {
		if err := webServer.Start(); err != nil {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	advertiser, err := discovery.Advertise(cfg.MDNS.LocalName)
	if err != nil {
		log.Printf("Failed to start mDNS server: %v", err)
	}

	if cfg.RemoteAccess.Enabled {
		agent := internet_bridge.NewAgent(internet_bridge.Config{
			PublicWS:   cfg.RemoteAccess.PublicWS,
			ServerID:   cfg.App.AgentID,
			RetryDelay: time.Duration(cfg.RemoteAccess.RetryDelaySecs) * time.Second,
			Handler:    webServer.Handler(),
		})
		go agent.Run(ctx)
	} else {
		log.Println("Remote access bridge is disabled")
	}

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("API shutdown error: %v", err)
	}
	_ = advertiser.Close()
	sched.Stop()
	eng.Stop()
	if worker != nil {
		worker.Stop()
	}
	log.Println("Shutdown complete")
}
