package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/jarvis/internal/agents"
	"github.com/kalambet/jarvis/internal/api"
	"github.com/kalambet/jarvis/internal/config"
	"github.com/kalambet/jarvis/internal/ingest"
	"github.com/kalambet/jarvis/internal/llm"
	"github.com/kalambet/jarvis/internal/storage"
	syncpkg "github.com/kalambet/jarvis/internal/sync"
	"github.com/kalambet/jarvis/internal/telegram"
	"github.com/kalambet/jarvis/internal/workflow"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the jarvis server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running jarvis server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show jarvis system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "jarvis.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "jarvis version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	apiToken := cfg.Server.AuthToken
	if apiToken == "" {
		apiToken, err = randomToken()
		if err != nil {
			return fmt.Errorf("generating API token: %w", err)
		}
		slog.Info("no API token configured, generated one for this run", "token", apiToken)
	}

	// Refuse to start a second instance.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("jarvis is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("jarvis is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	downloadDir := cfg.Sync.DownloadDir
	if downloadDir == "" {
		downloadDir = filepath.Join(cfg.Storage.DataDir, "downloads")
	}

	// Core assembly: LLM clients, ingestion, agents, routing workflow.
	chatClient := llm.New(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.ChatModel)
	imageClient := llm.NewImageClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.ImageModel)
	ingestSvc := ingest.NewService(store)
	registry := agents.NewRegistry(agents.Deps{
		Client: chatClient,
		Store:  store,
		Ingest: ingestSvc,
		Images: imageClient,
	})
	engine := workflow.NewEngine(workflow.NewClassifier(chatClient), registry)

	// Sync assembly: reconciler, engine, trigger service, auto-sync sweep.
	reconciler := syncpkg.NewReconciler(store)
	syncEngine := syncpkg.NewEngine(store, ingestSvc, reconciler, syncpkg.NewConnector, downloadDir)
	syncSvc := syncpkg.NewService(store, syncEngine)

	sweep, err := time.ParseDuration(cfg.Sync.SweepInterval)
	if err != nil {
		slog.Warn("invalid sweep interval, using default 1m", "value", cfg.Sync.SweepInterval, "error", err)
		sweep = time.Minute
	}
	scheduler := syncpkg.NewScheduler(store, syncSvc, sweep)

	var bot *telegram.Bot
	if cfg.Telegram.Token != "" {
		bot, err = telegram.NewBot(cfg.Telegram.Token, store, engine, downloadDir)
		if err != nil {
			return err
		}
	} else {
		slog.Warn("no telegram token configured, bot and reminder delivery disabled")
	}

	appHandler := api.NewAppHandler(api.AppDeps{
		Store:    store,
		Workflow: engine,
		Sync:     syncSvc,
		Token:    apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: appHandler,
	}

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store: store,
		Sync:  syncSvc,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)

	g, gctx := errgroup.WithContext(ctx)

	if bot != nil {
		reminders := telegram.NewReminderDispatcher(store, bot, 30*time.Second)
		digest := telegram.NewDigestDispatcher(store, chatClient, bot, cfg.Telegram.DigestHour)
		g.Go(func() error {
			if err := bot.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("telegram bot: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			reminders.Run(gctx)
			return nil
		})
		g.Go(func() error {
			digest.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		scheduler.Run(gctx)
		return nil
	})

	g.Go(func() error {
		if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "jarvis listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("jarvis is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop jarvis (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to jarvis (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	llmResp, err := client.Get(cfg.LLM.BaseURL + "/v1/models")
	if err != nil {
		printStatus("LLM backend", "not reachable at %s", cfg.LLM.BaseURL)
	} else {
		llmResp.Body.Close()
		printStatus("LLM backend", "reachable at %s", cfg.LLM.BaseURL)
	}

	printStatus("Chat model", "%s", cfg.LLM.ChatModel)
	printStatus("Image model", "%s", cfg.LLM.ImageModel)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
