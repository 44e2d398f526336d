package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/caption-sync/backend/internal/api"
	"github.com/caption-sync/backend/internal/auth"
	"github.com/caption-sync/backend/internal/caption"
	"github.com/caption-sync/backend/internal/config"
	"github.com/caption-sync/backend/internal/db"
	"github.com/caption-sync/backend/internal/job"
	"github.com/caption-sync/backend/internal/session"
	"github.com/caption-sync/backend/internal/transcript"
)

func main() {
	cfg := config.Load()

	// Ensure data directories exist
	os.MkdirAll(cfg.DataPath, 0755)
	os.MkdirAll(cfg.UploadPath, 0755)

	// Initialize database
	database, err := db.NewSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// Ensure admin user exists
	if err := database.EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}
	log.Printf("Admin user ensured: %s", cfg.AdminUsername)

	// Initialize JWT service
	jwtService := auth.NewJWTService(cfg.JWTSecret)

	// Remote caption services
	transcriber := caption.NewTranscriber(cfg.TranscriberURL)
	translator := caption.NewTranslator(cfg.TranslatorURL)
	renderer := caption.NewRenderer(cfg.RendererURL)
	log.Printf("Caption services: transcriber=%s translator=%s renderer=%s",
		cfg.TranscriberURL, cfg.TranslatorURL, cfg.RendererURL)

	// Session manager
	sessions := session.NewManager(translator)

	// Job queue for burn-in renders
	jobQueue := job.NewJobQueue(database.DB())
	defer jobQueue.Stop()
	jobQueue.RegisterHandler(job.JobBurnIn, func(ctx context.Context, j *job.Job, updateProgress func(float64)) error {
		var params job.BurnInParams
		if err := json.Unmarshal(j.Params, &params); err != nil {
			return fmt.Errorf("invalid burn-in params: %w", err)
		}
		var segments transcript.Transcript
		if err := json.Unmarshal(params.Segments, &segments); err != nil {
			return fmt.Errorf("invalid segment snapshot: %w", err)
		}

		updateProgress(0.1)
		output, err := renderer.BurnIn(ctx, params.RemoteName, segments)
		if err != nil {
			return err
		}
		updateProgress(0.9)

		if err := jobQueue.SetResult(j.ID, job.BurnInResult{OutputFilename: output}); err != nil {
			log.Printf("[job] failed to store result for %s: %v", j.ID, err)
		}
		return nil
	})

	// Create router
	router := api.NewRouter(database, jwtService, cfg, sessions, jobQueue, api.Services{
		Transcriber: transcriber,
		Renderer:    renderer,
		Outputs:     renderer,
	})

	// Start server
	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("Starting server on %s", addr)
	log.Printf("Upload path: %s", cfg.UploadPath)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		jobQueue.Stop()
		database.Close()
		os.Exit(0)
	}()

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
