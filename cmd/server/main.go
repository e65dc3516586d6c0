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
	"time"

	"github.com/ErikRobinson94/caseconnect/internal/callcontrol"
	"github.com/ErikRobinson94/caseconnect/internal/config"
	"github.com/ErikRobinson94/caseconnect/internal/finalize"
	"github.com/ErikRobinson94/caseconnect/internal/httpserver"
	"github.com/ErikRobinson94/caseconnect/internal/intake"
	"github.com/ErikRobinson94/caseconnect/internal/recording"
	"github.com/ErikRobinson94/caseconnect/supabase"
)

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()

	store, err := supabase.New(supabase.Config{
		URL:            cfg.SupabaseURL,
		ServiceRoleKey: cfg.SupabaseKey,
		Bucket:         cfg.SupabaseBucket,
	})
	if err != nil {
		log.Fatalf("supabase init failed: %v", err)
	}

	calls := callcontrol.New(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TransferNumber)
	archiver := recording.NewArchiver(cfg.TwilioAccountSID, cfg.TwilioAuthToken, store)
	normalizer := finalize.NewNormalizer(cfg.OpenAIKey, cfg.LLMModel)

	onFinalize := func(rec intake.Record, transcripts []string, callSID string, startedAt, endedAt time.Time) {
		ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
		defer cancel()

		result, err := normalizer.Finalize(ctx, rec, transcripts, finalize.CallMeta{
			CallSID: callSID, StartedAt: startedAt, EndedAt: endedAt,
		})
		if err != nil {
			log.Printf("finalize_degraded call=%s err=%v", callSID, err)
		}
		if errs := finalize.Validate(result); len(errs) > 0 {
			log.Printf("finalize_invalid call=%s errors=%v", callSID, errs)
		}

		payload, err := json.Marshal(result)
		if err != nil {
			log.Printf("finalize_marshal_failed call=%s err=%v", callSID, err)
			return
		}
		log.Printf("intake_record call=%s %s", callSID, payload)

		key := fmt.Sprintf("intake/%s_%d.json", callSID, endedAt.Unix())
		if err := store.Upload(key, "application/json", payload); err != nil {
			log.Printf("finalize_store_failed call=%s err=%v", callSID, err)
		}
	}

	srv := httpserver.New(cfg, httpserver.Deps{
		Calls:      calls,
		Archiver:   archiver,
		OnFinalize: onFinalize,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", cfg.HTTPAddress)
		serverErrors <- server.ListenAndServe()
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("shutdown signal received: %v", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = server.Close()
	}
}
