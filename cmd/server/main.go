package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/keiyara/faceswap/internal/adapters/akool"
	"github.com/keiyara/faceswap/internal/adapters/cloudinary"
	router "github.com/keiyara/faceswap/internal/adapters/http"
	"github.com/keiyara/faceswap/internal/adapters/rtc"
	"github.com/keiyara/faceswap/internal/app"
	"github.com/keiyara/faceswap/internal/app/orch"
	"github.com/keiyara/faceswap/internal/config"
	"github.com/keiyara/faceswap/internal/media"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	swap := akool.NewClient(cfg.Akool)
	images := cloudinary.NewClient(cfg.Cloudinary)
	transport := rtc.NewClient(cfg.Agora.GatewayURL)
	capture := media.NewSource(cfg.Media)
	registry := app.NewRegistry(transport)

	orchestrator := orch.New(swap, transport, capture, registry, cfg.Agora.AppID)

	// The observer watches the channel over its own gateway connection.
	observer := app.NewObserver(rtc.NewClient(cfg.Agora.GatewayURL), cfg.Agora.ViewerUIDOffset)

	h := &router.Handler{
		Orch:          orchestrator,
		Images:        images,
		Links:         router.NewLinkSigner(cfg.Secret, cfg.Agora.ViewerUIDOffset),
		Observer:      observer,
		FallbackAppID: cfg.Agora.AppID,
	}

	r := router.SetupRouter(cfg, h)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("FaceSwap server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Never leave a processing session dangling upstream.
	orchestrator.Shutdown(shutdownCtx)
	if err := observer.Leave(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("observer leave")
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
