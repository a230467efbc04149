package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"ai-core-platform/security/internal/audit"
	auditotel "ai-core-platform/security/internal/audit/otel"
	"ai-core-platform/security/internal/audit/producer"
	"ai-core-platform/security/internal/blacklist"
	"ai-core-platform/security/internal/config"
	"ai-core-platform/security/internal/db"
	"ai-core-platform/security/internal/directory"
	"ai-core-platform/security/internal/security"
	"ai-core-platform/security/internal/server"
	"ai-core-platform/security/internal/session"
	telemetryotel "ai-core-platform/security/internal/telemetry/otel"
	"ai-core-platform/security/internal/token"
)

const serviceName = "security-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	codec, err := security.NewCodec(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.JWTIssuer, cfg.JWTAudience, cfg.ClockSkew())
	if err != nil {
		log.Fatalf("codec: %v", err)
	}

	var shared blacklist.SharedTier
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		tier := blacklist.NewRedisTier(redisClient)
		pingCtx, cancel := context.WithTimeout(ctx, cfg.SharedTimeout())
		err = tier.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		shared = tier
		log.Printf("shared blacklist tier: redis at %s", cfg.RedisAddr)
	} else {
		log.Printf("shared blacklist tier disabled; revocations are local to this instance")
	}

	store := blacklist.New(shared, blacklist.Options{
		Enabled:       cfg.EnableBlacklist,
		Policy:        failPolicy(cfg),
		SharedTimeout: cfg.SharedTimeout(),
	})

	var dir directory.Repository
	if cfg.DatabaseURL != "" {
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer pool.Close()
		dir = directory.NewPostgresRepository(pool)
	} else {
		log.Printf("principal directory disabled; issuance uses caller-supplied claims")
	}

	var emitters audit.Multi
	emitters = append(emitters, auditotel.NewEventEmitter(providers.LoggerProvider))
	kafkaProducer, err := producer.NewKafkaProducer(cfg.AuditKafkaBrokersList(), cfg.AuditKafkaTopic)
	if err != nil {
		log.Fatalf("kafka: %v", err)
	}
	if kafkaProducer != nil {
		emitters = append(emitters, kafkaProducer)
		log.Printf("audit events produced to kafka topic %s", cfg.AuditKafkaTopic)
	}
	var emitter audit.EventEmitter = emitters

	registry := session.NewRegistry(cfg.MaxSessionsPerPrincipal, store)
	cache := token.NewValidationCache(cfg.CacheTTL())
	svc := token.NewService(codec, store, registry, cache, dir, emitter, token.Options{
		AccessTTL:                 cfg.AccessTTL(),
		RefreshTTL:                cfg.RefreshTTL(),
		RefetchPrincipalOnRefresh: cfg.RefreshRefetchPrincipal,
	})

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	go svc.RunCleanupLoop(janitorCtx, cfg.SweepInterval())

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	srv, _ := server.New(server.Deps{Tokens: svc, Emitter: emitter})

	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := srv.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down gRPC server...")
	srv.GracefulStop()
	stopJanitor()

	// Let in-flight async audit emits finish before their sinks go away.
	time.Sleep(audit.ShutdownDrainDuration)
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Printf("kafka close: %v", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("redis close: %v", err)
		}
	}
	log.Println("gRPC server stopped")
}

func failPolicy(cfg *config.Config) blacklist.FailPolicy {
	if cfg.FailPolicyValue() == config.FailOpen {
		return blacklist.FailOpen
	}
	return blacklist.FailClosed
}
