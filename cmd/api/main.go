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

    "dispacio/internal/api"
    "dispacio/internal/buildinfo"
    "dispacio/internal/config"
)

func main() {
    // .env is optional; real environment variables win
    if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
        log.Printf("dotenv err=%v", err)
    }
    cfg, err := config.Load()
    if err != nil {
        log.Fatalf("invalid config: %v", err)
    }

    srv, err := api.NewServer(cfg)
    if err != nil {
        log.Fatalf("failed to init server: %v", err)
    }
    defer func() { _ = srv.Close() }()

    httpSrv := &http.Server{
        Addr:              ":" + cfg.Port,
        Handler:           srv.Handler(),
        ReadHeaderTimeout: 5 * time.Second,
    }

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()
    go func() {
        log.Printf("API listening on %s version=%s engine=%s", httpSrv.Addr, buildinfo.Version, cfg.Solver.Engine)
        if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.Fatalf("server error: %v", err)
        }
    }()

    <-ctx.Done()
    log.Printf("shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
    defer cancel()
    if err := httpSrv.Shutdown(shutdownCtx); err != nil {
        log.Printf("shutdown err=%v", err)
    }
}
