// Package main is the Kotae CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/generation"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/namespace"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vectorstore"
	"github.com/hyperjump/kotae/internal/vectorstore/memory"
	"github.com/hyperjump/kotae/internal/vectorstore/pinecone"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// Provider credentials can come from a local .env during development.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "check":
		runCheck()
	case "documents":
		runDocuments()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if err := components.Store.EnsureIndex(context.Background()); err != nil {
		logger.Fatal("Failed to ensure index", zap.Error(err))
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if len(cfg.Watch.Directories) > 0 {
		userID := cfg.Watch.UserID
		ingestor := components.Ingestor
		watchSvc = watcher.NewWatcher(
			cfg.Watch.Directories,
			cfg.Watch.RecursiveOrDefault(),
			func(path string) {
				if _, err := ingestor.Ingest(context.Background(), path, userID); err != nil {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			logger,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(
		components.Ingestor,
		components.Engine,
		components.Registry,
		components.Catalog,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	userID := fs.String("user", "", "user id owning the documents")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 || *userID == "" {
		fmt.Println("Usage: kotae ingest --user <user-id> <file.pdf> [more.pdf ...]")
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	failed := 0
	for _, path := range fs.Args() {
		rec, err := components.Ingestor.Ingest(ctx, path, *userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingest failed for %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("Ingested %s: %d page(s), %d chunk(s) into %s\n",
			rec.Filename, rec.Pages, rec.ChunkCount, rec.Namespace)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// buildQuestion joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = answer directly without the server)")
	userID := fs.String("user", "", "user id whose documents to query")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 || *userID == "" {
		fmt.Println("Usage: kotae ask --user <user-id> <question>")
		os.Exit(1)
	}
	question := buildQuestion(fs.Args())
	if question == "" {
		fmt.Println("Usage: kotae ask --user <user-id> <question>")
		os.Exit(1)
	}

	if *serverURL != "" {
		answerText, err := askViaHTTP(*serverURL, *userID, question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(answerText)
		return
	}

	// Direct mode (when the server is not running).
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ans, err := components.Engine.Ask(context.Background(), *userID, question, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(ans.Text)
}

func askViaHTTP(serverURL, userID, question string) (string, error) {
	body, err := json.Marshal(map[string]string{"user_id": userID, "question": question})
	if err != nil {
		return "", err
	}
	resp, err := http.Post(serverURL+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.Answer, nil
}

func runCheck() {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = check directly without the server)")
	userID := fs.String("user", "", "user id to check")
	_ = fs.Parse(os.Args[2:])

	if *userID == "" {
		fmt.Println("Usage: kotae check --user <user-id>")
		os.Exit(1)
	}

	if *serverURL != "" {
		body, _ := json.Marshal(map[string]string{"user_id": *userID})
		resp, err := http.Post(*serverURL+"/api/v1/namespace/check", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Check failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Check failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Namespace string `json:"namespace"`
			Exists    bool   `json:"exists"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
		printNamespaceState(out.Namespace, out.Exists)
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	exists, err := components.Registry.Exists(context.Background(), *userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Check failed: %v\n", err)
		os.Exit(1)
	}
	printNamespaceState(namespace.Derive(*userID), exists)
}

func printNamespaceState(ns string, exists bool) {
	if exists {
		fmt.Printf("%s: exists\n", ns)
	} else {
		fmt.Printf("%s: not found\n", ns)
	}
}

func runDocuments() {
	fs := flag.NewFlagSet("documents", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	userID := fs.String("user", "", "user id whose documents to list")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if *userID == "" {
		fmt.Println("Usage: kotae documents --user <user-id>")
		os.Exit(1)
	}

	resp, err := http.Get(*serverURL + "/api/v1/documents?user_id=" + url.QueryEscape(*userID))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "List failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out struct {
		Namespace string `json:"namespace"`
		Documents []struct {
			Filename   string    `json:"filename"`
			Pages      int       `json:"pages"`
			ChunkCount int       `json:"chunk_count"`
			IngestedAt time.Time `json:"ingested_at"`
		} `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("# %s\n", out.Namespace)
		for _, d := range out.Documents {
			fmt.Printf("%s  %d page(s)  %d chunk(s)  %s\n",
				d.Filename, d.Pages, d.ChunkCount, d.IngestedAt.Format(time.RFC3339))
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Documents int64                  `json:"documents"`
	Chunks    int64                  `json:"chunks"`
	Config    map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("documents:  %d   # count of ingested documents\n", status.Documents)
		fmt.Printf("chunks:     %d   # count of text chunks\n", status.Chunks)
		if len(status.Config) > 0 {
			fmt.Println()
			fmt.Println("# configuration")
			for _, key := range []string{"index_type", "index_name", "embedding_model", "embedding_dimensions", "generation_model", "chunk_size", "chunk_overlap", "top_k"} {
				if v, ok := status.Config[key]; ok {
					fmt.Printf("%-21s %v\n", key+":", v)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Catalog   storage.Storage
	Embedder  embedding.Embedder
	Generator generation.Generator
	Store     vectorstore.Store
	Registry  *namespace.Registry
	Ingestor  *ingest.Ingestor
	Engine    *answer.Engine
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Generator != nil {
		_ = c.Generator.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	catalog, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	embedder, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
		BaseURL:    cfg.Embedding.BaseURL,
		APIKeyEnv:  cfg.Embedding.APIKeyEnv,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		_ = catalog.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	generator, err := generation.NewOpenAIGenerator(generation.OpenAIConfig{
		BaseURL:   cfg.Generation.BaseURL,
		APIKeyEnv: cfg.Generation.APIKeyEnv,
		Model:     cfg.Generation.Model,
	})
	if err != nil {
		_ = catalog.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}

	var store vectorstore.Store
	switch cfg.Index.Type {
	case "memory":
		store = memory.NewStore(embedder, cfg.Query.ScoreCutoff)
	default:
		store, err = pinecone.NewStore(pinecone.Config{
			ControlURL:  cfg.Index.ControlURL,
			APIKeyEnv:   cfg.Index.APIKeyEnv,
			IndexName:   cfg.Index.Name,
			Cloud:       cfg.Index.Cloud,
			Region:      cfg.Index.Region,
			Dimensions:  cfg.Embedding.Dimensions,
			ScoreCutoff: cfg.Query.ScoreCutoff,
		}, embedder)
		if err != nil {
			_ = catalog.Close()
			_ = embedder.Close()
			_ = generator.Close()
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
	}

	chunker := ingest.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	ingestor := ingest.NewIngestor(extract.NewExtractor(), chunker, store, catalog, logger)
	synthesizer := generation.NewStuffSynthesizer(generator)
	engine := answer.NewEngine(embedder, store, synthesizer, cfg.Query.TopK, logger)

	return &Components{
		Catalog:   catalog,
		Embedder:  embedder,
		Generator: generator,
		Store:     store,
		Registry:  namespace.NewRegistry(store),
		Ingestor:  ingestor,
		Engine:    engine,
	}, nil
}

func printUsage() {
	fmt.Println(`kotae - Question answering over your own PDF documents

Usage:
  kotae server [flags]                      Start the HTTP server
  kotae ingest --user <id> <file.pdf>...    Ingest PDFs for a user
  kotae ask --user <id> <question>          Ask a question over a user's documents
  kotae check --user <id>                   Check whether a user has documents
  kotae documents --user <id>               List a user's ingested documents
  kotae status [flags]                      Show catalog and configuration status
  kotae version                             Show version
  kotae help                                Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --debug            Enable debug logging

Ask Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to answer without the server.
  --user string      User id whose documents to query

Ingest Flags:
  --config string    Config file path
  --user string      User id owning the documents

Status Flags:
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)

Examples:
  kotae server
  kotae ingest --user alice report.pdf notes.pdf
  kotae ask --user alice what does the report conclude?
  kotae check --user alice
  kotae documents --user alice
  kotae status --output json`)
}
