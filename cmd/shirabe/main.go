// Package main is the Shirabe CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/shirabe/internal/cli"
	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/extract"
	"github.com/hyperjump/shirabe/internal/indexer"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/search"
	"github.com/hyperjump/shirabe/internal/server"
	"github.com/hyperjump/shirabe/internal/session"
	"github.com/hyperjump/shirabe/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/shirabe/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory takes precedence if it exists, so "shirabe server" run from a
// project directory picks up that project's config.
// Returns the config and the path that was actually loaded.
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
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "init":
		runInit()
	case "server":
		runServer()
	case "session":
		runSession()
	case "add":
		runAdd()
	case "add-text":
		runAddText()
	case "query":
		runQuery()
	case "extract":
		runExtract()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("shirabe version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	path := "config.yaml"
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if err := writeDefaultConfig(path, *force); err != nil {
		fail("Init failed", err)
	}
	fmt.Printf("Config written: %s\n", path)
}

// writeDefaultConfig saves a config holding every default to path. An existing file
// is kept unless force is set.
func writeDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return config.Save(path, cfg)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (ingestion, queries, provider retries)")
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
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("index_type", cfg.Index.Type),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(components.Sessions, components.Indexer, components.Engine, cfg, logger,
		server.WithEmbeddingCache(components.Embedder))
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...", zap.Int("open_sessions", components.Sessions.Len()))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// Components holds initialized services.
type Components struct {
	Sessions *session.Registry
	Embedder *embedding.CachedEmbedder
	Engine   *search.Engine
	Indexer  *indexer.Indexer
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	embedder, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	sessions := session.NewRegistry()
	engine, err := search.NewEngine(sessions, embedder, &cfg.Search, &cfg.Index,
		search.WithLogger(logger),
		search.WithMaxInputWords(cfg.Embedding.MaxInputWords),
	)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize search engine: %w", err)
	}
	idx := indexer.NewIndexer(sessions, embedder, extract.NewExtractor(), &cfg.Embedding, indexer.WithLogger(logger))

	return &Components{
		Sessions: sessions,
		Embedder: embedder,
		Engine:   engine,
		Indexer:  idx,
	}, nil
}

func runSession() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: shirabe session <start|check|end> [id]")
		fmt.Println("  shirabe session start       Open a new session and print its id")
		fmt.Println("  shirabe session check <id>  Show document and page counts")
		fmt.Println("  shirabe session end <id>    End the session and discard its documents")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("session", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(reorderArgs(os.Args[3:]))
	client := newAPIClient(*serverURL)

	switch sub {
	case "start":
		id, err := client.createSession()
		if err != nil {
			fail("Session start failed", err)
		}
		fmt.Println(id)
	case "check":
		id := requireArg(fs, "Usage: shirabe session check <id>")
		info, err := client.getSession(id)
		if err != nil {
			fail("Session check failed", err)
		}
		fmt.Printf("session:    %s\n", info.ID)
		fmt.Printf("documents:  %d\n", info.Documents)
		fmt.Printf("pages:      %d\n", info.Pages)
		fmt.Printf("created_at: %s\n", info.CreatedAt.Format(time.RFC3339))
	case "end":
		id := requireArg(fs, "Usage: shirabe session end <id>")
		if err := client.endSession(id); err != nil {
			fail("Session end failed", err)
		}
		fmt.Printf("Session ended: %s\n", id)
	default:
		fmt.Printf("Unknown session subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runAdd() {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	if fs.NArg() < 2 {
		fmt.Println("Usage: shirabe add [flags] <session-id> <file>")
		os.Exit(1)
	}
	doc, err := newAPIClient(*serverURL).addFile(fs.Arg(0), fs.Arg(1))
	if err != nil {
		fail("Add failed", err)
	}
	printDocument(doc)
}

func runAddText() {
	fs := flag.NewFlagSet("add-text", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	title := fs.String("title", "", "document title (defaults to the first line)")
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	if fs.NArg() < 2 {
		fmt.Println("Usage: shirabe add-text [flags] <session-id> <file.txt>")
		os.Exit(1)
	}
	path := fs.Arg(1)
	content, err := os.ReadFile(path)
	if err != nil {
		fail("Read failed", err)
	}
	doc, err := newAPIClient(*serverURL).addText(fs.Arg(0), *title, filepath.Base(path), string(content))
	if err != nil {
		fail("Add failed", err)
	}
	printDocument(doc)
}

func runExtract() {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	path := requireArg(fs, "Usage: shirabe extract [flags] <file>")

	doc, err := newAPIClient(*serverURL).extract(path)
	if err != nil {
		fail("Extract failed", err)
	}
	if err := writeExtracted(os.Stdout, doc, *outputFormat); err != nil {
		fail("Output failed", err)
	}
}

// writeExtracted prints an extracted document as JSON or as its title followed by
// each page under a page header.
func writeExtracted(w io.Writer, doc *models.DocumentInput, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "text":
		fmt.Fprintf(w, "Title: %s\n", doc.Title)
		fmt.Fprintf(w, "Pages: %d\n", len(doc.Pages))
		for _, p := range doc.Pages {
			fmt.Fprintf(w, "\n--- page %d ---\n%s\n", p.Number, strings.TrimSpace(p.Text))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q; use text or json", format)
	}
}

func printDocument(doc *documentReply) {
	fmt.Printf("Document added: %s (%d pages)\n", doc.DocumentID, doc.Pages)
	if doc.Title != "" {
		fmt.Printf("Title: %s\n", doc.Title)
	}
}

// printQueryUsage prints query subcommand usage.
func printQueryUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: shirabe query [flags] <session-id> <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all arguments after the session id joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  shirabe query 0b6c... expense reimbursement policy
  shirabe query --top-k 10 0b6c... "quarterly revenue"
  shirabe query --output json 0b6c... onboarding checklist
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reorderArgs moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse() sees them. Go's flag package stops at
// the first non-flag argument, so "shirabe query <id> text --top-k 3" would otherwise
// leave --top-k unparsed.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	topK := fs.Int("top-k", 0, "number of results (0 = server default)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (one result per line), or json (parseable)")
	fs.Usage = func() { printQueryUsage(fs) }
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 2 {
		printQueryUsage(fs)
		os.Exit(1)
	}
	sessionID := fs.Arg(0)
	queryStr := buildSearchQuery(fs.Args()[1:])
	if queryStr == "" {
		printQueryUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	response, err := newAPIClient(*serverURL).query(sessionID, queryStr, *topK)
	if err != nil {
		fail("Query failed", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fail("Output failed", err)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	status, err := newAPIClient(*serverURL).status()
	if err != nil {
		fail("Status failed", err)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fail("Output failed", err)
		}
	case "text":
		fmt.Printf("sessions:   %d   # open sessions\n", status.Sessions)
		fmt.Printf("documents:  %d   # documents across all sessions\n", status.Documents)
		fmt.Printf("pages:      %d   # embedded pages across all sessions\n", status.Pages)
		if len(status.Config) > 0 {
			fmt.Println()
			fmt.Println("# configuration")
			keys := make([]string, 0, len(status.Config))
			for k := range status.Config {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%-22s %v\n", k+":", status.Config[k])
			}
		}
		if c := status.Cache; c != nil {
			fmt.Println()
			fmt.Println("# embedding cache")
			fmt.Printf("%-22s %d/%d\n", "memory:", c.Entries, c.Capacity)
			if c.Persistent {
				fmt.Printf("%-22s %d vectors, %d bytes\n", "persistent:", c.Stored, c.StoredBytes)
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func requireArg(fs *flag.FlagSet, usage string) string {
	if fs.NArg() < 1 {
		fmt.Println(usage)
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}

func printUsage() {
	fmt.Println(`shirabe - Session-scoped semantic page search

Usage:
  shirabe init [--force] [path]                Write a config file with every default (default: ./config.yaml)
  shirabe server [flags]                       Start the HTTP server
  shirabe session start                        Open a session and print its id
  shirabe session check <id>                   Show a session's document and page counts
  shirabe session end <id>                     End a session and discard its documents
  shirabe add [flags] <session> <file>         Upload a PDF, DOCX, XLSX, PPTX, ODP, ODS or text file
  shirabe add-text [flags] <session> <file>    Send a text file; form feeds separate pages
  shirabe query [flags] <session> <query>      Search a session's pages
  shirabe extract [flags] <file>               Show a file's extracted title and pages without adding it
  shirabe status [flags]                       Show server status
  shirabe version                              Show version
  shirabe help                                 Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/shirabe/config.yaml)
  --debug            Enable debug logging

Client Flags (session, add, add-text, query, extract, status):
  --server string    Server URL (default: http://localhost:8080)

Add-text Flags:
  --title string     Document title (default: first line of the text)

Query Flags:
  --top-k int        Number of results (default: server's search.top_k)
  --output string    Output format: text, compact or json (default: text)

Extract and Status Flags:
  --output string    Output format: text or json (default: text)

Examples:
  shirabe init
  shirabe server --debug
  SID=$(shirabe session start)
  shirabe add $SID handbook.pdf
  shirabe add-text --title "Release notes" $SID notes.txt
  shirabe query --top-k 3 $SID "how do I file an expense report"
  shirabe session end $SID`)
}
