package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Maestro-111/search-engine/config"
	"github.com/Maestro-111/search-engine/http/controller"
	routes "github.com/Maestro-111/search-engine/http/route"
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

	ctrl := controller.NewController(cfg, infra, repo)
	router := routes.SetupRouter(ctrl)

	srv := &http.Server{
		Addr:              ":" + cfg.EnvConfig.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Println("HTTP Server started on :" + cfg.EnvConfig.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	infra.Logger.InfoWithContextf(ctx, "Shutting down server...")
	if err := srv.Shutdown(ctx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Server forced to shutdown: %v", err)
	}

	// running jobs are cancelled and recorded as failed before the store closes
	if err := ctrl.Supervisor.Shutdown(ctx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Jobs did not stop in time: %v", err)
	}
	if err := infra.Close(ctx); err != nil {
		log.Printf("Failed to close infrastructure: %v", err)
	}

	log.Println("Server exited properly")
}
