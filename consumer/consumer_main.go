package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Maestro-111/search-engine/config"
	"github.com/Maestro-111/search-engine/consumer/worker"
	infraPkg "github.com/Maestro-111/search-engine/infra"
	"github.com/Maestro-111/search-engine/repository"
)

func main() {
	err := godotenv.Load(".env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(infra)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chainConsumer := worker.NewChainConsumer(infra.RabbitMQ.Channel, cfg, infra, repo)
	if err := chainConsumer.Start(ctx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Failed to start Chain consumer: %v", err)
		log.Fatalf("Failed to start Chain consumer: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	infra.Logger.InfoWithContextf(ctx, "Shutting down consumer...")
	cancel()
	chainConsumer.Wait()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := infra.Close(closeCtx); err != nil {
		log.Printf("Error while closing infrastructure: %v", err)
	}

	infra.Logger.InfoWithContextf(ctx, "Consumer exited properly")
}
