package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"friendsync/internal/config"
	appKafka "friendsync/internal/kafka"
	kafkaHandlers "friendsync/internal/kafka/handlers"
	"friendsync/internal/push"
	"friendsync/internal/store"
)

func main() {
	// 1. Load configuration.
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.Printf("%s push worker starting.", cfg.AppName)

	// 2. Store access for the device token registry. The in-memory store is
	// a single-process stand-in: run as a separate worker it starts empty
	// and never sees tokens registered through the gateway. Deployments bind
	// the shared store implementation here, behind the same interface.
	st := store.NewMemory()
	tokens := push.NewTokenRegistry(st)
	log.Println("using in-memory store: device tokens registered in other processes are not visible")

	// 3. Delivery transport. LogTransport stands in until a real push
	// provider is wired up.
	transport := push.LogTransport{}

	// 4. Kafka consumer on the notifications topic.
	consumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
	if err != nil {
		log.Fatalf("failed to create kafka consumer: %v", err)
	}
	defer consumer.Close()

	fanout := kafkaHandlers.NewNotificationFanoutLogic(tokens, transport)

	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Printf("push worker consuming topic %s", cfg.Kafka.NotificationsTopic)
		topics := []string{cfg.Kafka.NotificationsTopic}
		if err := consumer.Consume(consumerCtx, topics, cfg.Kafka.ConsumerGroup, fanout.HandleEvent); err != nil {
			log.Printf("push worker consumer error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("push worker shutting down...")

	cancelConsumer()
	<-done
	log.Println("push worker stopped.")
}
