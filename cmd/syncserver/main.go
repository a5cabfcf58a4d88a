package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	goredis "github.com/redis/go-redis/v9"

	"friendsync/internal/auth"
	"friendsync/internal/config"
	"friendsync/internal/directory"
	"friendsync/internal/graph"
	"friendsync/internal/handlers/syncserver"
	"friendsync/internal/identity"
	appKafka "friendsync/internal/kafka"
	"friendsync/internal/messagebus"
	"friendsync/internal/notify"
	"friendsync/internal/presence"
	"friendsync/internal/push"
	appRedis "friendsync/internal/redis"
	"friendsync/internal/session"
	"friendsync/internal/store"
	"friendsync/internal/websocket"
)

func main() {
	// 1. Load configuration.
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.Printf("%s %s starting.", cfg.AppName, cfg.AppVersion)

	// 2. Store. The in-memory store backs a single-process deployment; any
	// store.Store implementation can be swapped in here.
	st := store.NewMemory()
	retry := store.RetryPolicy{
		Attempts:  cfg.Store.RetryAttempts,
		BaseDelay: cfg.Store.RetryBaseDelay,
		MaxDelay:  cfg.Store.RetryMaxDelay,
	}

	// 3. Kafka producer for the push fan-out pipeline. Losing Kafka loses
	// offline push, not the sync engine, so failure here is non-fatal.
	var fanout *push.Publisher
	kfkProducer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
	if err != nil {
		log.Printf("kafka producer unavailable, push fan-out disabled: %v", err)
	} else {
		defer kfkProducer.Close()
		fanout = push.NewPublisher(kfkProducer, cfg.Kafka.NotificationsTopic)
		log.Println("Kafka producer initialized.")
	}

	// 4. Redis-backed token blacklist.
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	var blacklist auth.TokenBlacklist
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Printf("redis unavailable, token revocation checks disabled: %v", err)
	} else {
		blacklist = appRedis.NewRedisTokenBlacklist(redisClient)
		log.Println("Redis token blacklist initialized.")
	}

	// 5. Engine components.
	dir := directory.New(st)
	graphStore := graph.NewGraphStore(st, dir, fanout, retry)
	bus := messagebus.NewMessageBus(st, dir, fanout, retry)
	aggregator := notify.NewAggregator(st, graphStore, dir)
	tracker := presence.New(st)
	provider := identity.NewStoreProvider(st)
	tokenRegistry := push.NewTokenRegistry(st)

	// 6. WebSocket hub.
	hub := websocket.NewHub()
	go hub.Run()

	// 7. Handlers and routes.
	sessions := syncserver.SessionFactory(func(userID string) *session.Session {
		return session.New(userID, st, graphStore, bus, aggregator, tracker)
	})
	wsHandler := syncserver.NewWebSocketHandler(hub, sessions, blacklist, cfg)
	authHandler := syncserver.NewAuthHandler(provider, tokenRegistry, blacklist, cfg)

	router := mux.NewRouter()
	router.HandleFunc(cfg.Server.WebSocketPath, wsHandler.ServeWS)
	router.HandleFunc("/auth/signup", authHandler.SignUp).Methods(http.MethodPost)
	router.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)
	router.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)
	router.HandleFunc("/auth/device-token", authHandler.RegisterDeviceToken).Methods(http.MethodPost)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	corsMiddleware := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins(cfg.Server.CORS.AllowedOrigins),
		gorillaHandlers.AllowedMethods(cfg.Server.CORS.AllowedMethods),
		gorillaHandlers.AllowedHeaders(cfg.Server.CORS.AllowedHeaders),
		gorillaHandlers.AllowCredentials(),
	)
	loggedRouter := gorillaHandlers.LoggingHandler(os.Stdout, corsMiddleware(router))

	// 8. HTTP server with graceful shutdown.
	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	// No read/write timeouts here: hijacked websocket connections manage
	// their own deadlines in the pumps.
	httpServer := &http.Server{
		Addr:           serverAddr,
		Handler:        loggedRouter,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		log.Printf("sync gateway listening on %s, websocket path %s", serverAddr, cfg.Server.WebSocketPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("sync gateway failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("sync gateway shutting down...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("sync gateway shutdown failed: %v", err)
	}
	log.Println("sync gateway stopped.")
}
