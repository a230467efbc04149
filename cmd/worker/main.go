// Worker consumes security audit events from Kafka and writes them to the
// operational log. Set AUDIT_KAFKA_BROKERS and AUDIT_KAFKA_TOPIC; JWT_SECRET
// is required by config but unused here.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"ai-core-platform/security/internal/audit"
	"ai-core-platform/security/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.AuditKafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: AUDIT_KAFKA_BROKERS is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.AuditKafkaTopic,
		GroupID:        cfg.AuditKafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	log.Printf("worker: consuming %s from %v as %s", cfg.AuditKafkaTopic, brokers, cfg.AuditKafkaGroupID)
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			log.Printf("worker: read: %v", err)
			continue
		}
		var ev audit.Event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			log.Printf("worker: skipping malformed event at offset %d: %v", msg.Offset, err)
			continue
		}
		log.Printf("audit: %s principal=%s session=%s token=%s reason=%q ip=%s at=%s",
			ev.Type, ev.PrincipalID, ev.SessionID, ev.TokenID, ev.Reason, ev.ClientIP,
			ev.CreatedAt.Format(time.RFC3339))
	}
}
