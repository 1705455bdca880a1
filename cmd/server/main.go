package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/hilite-live/hilite/internal/config"
	"github.com/hilite-live/hilite/internal/domain/highlight"
	"github.com/hilite-live/hilite/internal/domain/panel"
	"github.com/hilite-live/hilite/internal/domain/survey"
	"github.com/hilite-live/hilite/internal/hub"
	"github.com/hilite-live/hilite/internal/ratelimit"
	"github.com/hilite-live/hilite/internal/server"
	"github.com/hilite-live/hilite/internal/source"
	"github.com/hilite-live/hilite/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logWriter := io.Writer(os.Stdout)
	if logPath := os.Getenv("HILITE_LOG_PATH"); logPath != "" {
		fileWriter, file, err := newLogFileWriter(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer file.Close()
			logWriter = fileWriter
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	st, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to open store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	sources, err := source.NewLibrary(cfg.Docs.Dir, cfg.Docs.DefaultSource)
	if err != nil {
		logger.Error("failed to open source directory", "dir", cfg.Docs.Dir, "error", err)
		os.Exit(1)
	}

	limiter := ratelimit.New()
	docHub := hub.New(logger)
	nav := hub.NewNav(logger)

	docs := highlight.NewManager(st, sources, logger, highlight.Options{
		MaxSpan: cfg.Highlight.MaxSpan,
		Palette: cfg.Highlight.Palette,
	})
	forms := survey.NewManager(st, limiter, logger, survey.Options{
		DefaultQuestion: cfg.Survey.DefaultQuestion,
	})
	buttons := make([]panel.Button, 0, len(cfg.Panel.Buttons))
	for _, b := range cfg.Panel.Buttons {
		buttons = append(buttons, panel.Button{ID: b.ID, Label: b.Label})
	}
	panels := panel.NewManager(st, limiter, logger, panel.Options{
		DefaultButtons: buttons,
	})

	srv := server.New(cfg, logger, docs, forms, panels, sources, docHub, nav)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Router(),
	}

	go func() {
		logger.Info("server listening", "addr", addr, "store", cfg.Store.Backend, "docs", cfg.Docs.Dir)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(logger, httpServer)
}

func openStore(cfg config.Config) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case "sqlite":
		if dir := filepath.Dir(cfg.Store.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("preparing sqlite path: %w", err)
			}
		}
		st, err := store.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	default:
		st, err := store.NewFileStore(cfg.Store.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil
	}
}

func waitForShutdown(logger *slog.Logger, server *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const (
	maxLogSizeBytes  = 6 * 1024 * 1024
	keepLogSizeBytes = 5 * 1024 * 1024
)

// logFileWriter appends to a single log file and keeps it from growing
// without bound by truncating to the newest few megabytes.
type logFileWriter struct {
	path string
	file *os.File
	mu   sync.Mutex
}

func newLogFileWriter(path string) (*logFileWriter, *os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	writer := &logFileWriter{path: path, file: file}
	if err := writer.truncateIfNeeded(); err != nil {
		return nil, nil, err
	}
	return writer, file, nil
}

func (w *logFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	if err != nil {
		return n, err
	}
	if err := w.truncateIfNeeded(); err != nil {
		return n, err
	}
	return n, nil
}

func (w *logFileWriter) truncateIfNeeded() error {
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size <= maxLogSizeBytes {
		return nil
	}

	buf := make([]byte, keepLogSizeBytes)
	if _, err := w.file.Seek(size-keepLogSizeBytes, io.SeekStart); err != nil {
		return err
	}
	n, err := w.file.Read(buf)
	if err != nil && err != io.EOF {
		return err
	}
	buf = buf[:n]

	if err := w.file.Truncate(0); err != nil {
		return err
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := w.file.Write(buf); err != nil {
		return err
	}
	_, err = w.file.Seek(0, io.SeekEnd)
	return err
}
