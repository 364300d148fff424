// Package main is the vibetex CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/vibetex/internal/backend"
	"github.com/hyperjump/vibetex/internal/cli"
	"github.com/hyperjump/vibetex/internal/compile"
	"github.com/hyperjump/vibetex/internal/completion"
	"github.com/hyperjump/vibetex/internal/config"
	"github.com/hyperjump/vibetex/internal/diff"
	"github.com/hyperjump/vibetex/internal/models"
	"github.com/hyperjump/vibetex/internal/preview"
	"github.com/hyperjump/vibetex/internal/server"
	"github.com/hyperjump/vibetex/internal/session"
	"github.com/hyperjump/vibetex/internal/storage"
	"github.com/hyperjump/vibetex/internal/watcher"
	"github.com/hyperjump/vibetex/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/vibetex/config.yaml"
	defaultServerURL  = "http://localhost:8090"
)

// loadConfig loads config from path. When path is the default, a config.yaml in
// the current directory takes precedence so "vibetex server" from a project dir
// uses the project's config. Returns the config and the path actually loaded.
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

// loadConfigOrDefaults is used by one-shot commands, which work without a config file.
func loadConfigOrDefaults(path string) *config.Config {
	cfg, _, err := loadConfig(path)
	if err != nil {
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
	}
	return cfg
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "compile":
		runCompile()
	case "chat":
		runChat()
	case "complete":
		runComplete()
	case "search-commands":
		runSearchCommands()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("vibetex version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config, debug bool) (*zap.Logger, error) {
	if cfg.Log.File == "" {
		return utils.NewLogger(debug)
	}
	return utils.NewLoggerWithFile(debug, &utils.LogFile{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
}

func newBackendClient(cfg *config.Config, logger *zap.Logger) *backend.Client {
	return backend.NewClient(backend.ClientConfig{
		BaseURL:     cfg.Backend.BaseURL,
		CompilePath: cfg.Backend.CompilePath,
		ChatPath:    cfg.Backend.ChatPath,
		Timeout:     cfg.Backend.Timeout,
	}, backend.WithLogger(logger))
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (compiles, chat requests, watched files)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := newLogger(cfg, debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("backend", cfg.Backend.BaseURL),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	fileSync := session.NewFileSync(components.Sessions, cfg.Watch.AutoCompileOrDefault(), logger)
	watchOpts := []watcher.WatcherOption{watcher.WithDebounce(cfg.Watch.Debounce)}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.NewWatcher(cfg.Watch.Files, fileSync.Changed, fileSync.Removed, watchOpts...)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(
		components.Sessions,
		components.Storage,
		components.Provider,
		cfg,
		logger,
		server.WithWatch(watchSvc, fileSync.Forget),
		server.WithConfigPath(resolvedConfigPath),
		server.WithSearchIndex(components.Index),
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
	watchCancel()
	watchSvc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// reorderArgs moves flags that follow positional arguments to the front so
// flag.Parse sees them; the flag package stops at the first non-flag.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 1 && a[0] == '-' {
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

func parseFormatOrExit(s string) cli.OutputFormat {
	format, err := cli.ParseFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

// defaultOutputPath returns src with its extension replaced by .pdf.
func defaultOutputPath(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".pdf"
}

func runCompile() {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	out := fs.String("o", "", "output PDF path (default: source with .pdf extension)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: vibetex compile [flags] <file.tex>")
		os.Exit(1)
	}
	format := parseFormatOrExit(*outputFormat)
	src := fs.Arg(0)
	if !strings.EqualFold(filepath.Ext(src), ".tex") {
		fmt.Fprintln(os.Stderr, "Only .tex files can be compiled")
		os.Exit(1)
	}
	content, err := os.ReadFile(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read source: %v\n", err)
		os.Exit(1)
	}

	cfg := loadConfigOrDefaults(*configPath)
	client := newBackendClient(cfg, zap.NewNop())
	data, err := client.CompileSource(context.Background(), string(content))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", compile.FailureMessage, err)
		os.Exit(1)
	}

	dst := *out
	if dst == "" {
		dst = defaultOutputPath(src)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", dst, err)
		os.Exit(1)
	}
	res := &cli.CompileResult{Source: src, Output: dst, Bytes: len(data)}
	if p, err := preview.Inspect(data, 0); err == nil {
		res.Pages = p.Pages
	}
	if err := cli.WriteCompileResult(os.Stdout, res, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func readAttachment(path string) (*models.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &models.File{Name: filepath.Base(path), ContentType: contentType, Data: data}, nil
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	sourcePath := fs.String("source", "", "current document (.tex) sent as context")
	attachPath := fs.String("attach", "", "file to attach (.md, .txt, .mp3)")
	showDiff := fs.Bool("diff", false, "print the proposed changes as a unified diff against -source")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	prompt := cli.JoinArgs(fs.Args())
	if prompt == "" {
		fmt.Println("Usage: vibetex chat [flags] <prompt>")
		os.Exit(1)
	}
	format := parseFormatOrExit(*outputFormat)

	var source string
	if *sourcePath != "" {
		data, err := os.ReadFile(*sourcePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read source: %v\n", err)
			os.Exit(1)
		}
		source = string(data)
	}
	var attached *models.File
	if *attachPath != "" {
		f, err := readAttachment(*attachPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read attachment: %v\n", err)
			os.Exit(1)
		}
		attached = f
	}

	cfg := loadConfigOrDefaults(*configPath)
	client := newBackendClient(cfg, zap.NewNop())
	reply, err := client.Chat(context.Background(), prompt, models.SourceFile(source), attached)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to send message: %v\n", err)
		os.Exit(1)
	}

	res := &cli.ChatResult{Prompt: prompt, Message: reply.Message, Latex: reply.Latex}
	if *showDiff && reply.Latex != "" {
		p := diff.Compute(source, reply.Latex)
		res.Summary = p.Summary()
		res.Diff = p.Unified
	}
	if err := cli.WriteChatResult(os.Stdout, res, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func loadProvider(cfg *config.Config) (*completion.Provider, error) {
	table, err := completion.LoadTable(cfg.Completion.TablePath)
	if err != nil {
		return nil, err
	}
	return completion.NewProvider(table,
		completion.WithMaxResults(cfg.Completion.MaxResults),
		completion.WithFuzzyDistance(cfg.Completion.FuzzyDistance),
	), nil
}

// completionInput prefixes text with the default trigger when it does not
// already start with one of the table's triggers.
func completionInput(text string, triggers []string) string {
	for _, t := range triggers {
		if strings.HasPrefix(text, t) {
			return text
		}
	}
	return completion.DefaultTrigger + text
}

func runComplete() {
	fs := flag.NewFlagSet("complete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: vibetex complete [flags] <prefix>")
		os.Exit(1)
	}
	format := parseFormatOrExit(*outputFormat)
	provider, err := loadProvider(loadConfigOrDefaults(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load completion table: %v\n", err)
		os.Exit(1)
	}
	text := completionInput(fs.Arg(0), provider.Table().Triggers())
	list := provider.Complete(text, len(text))
	if err := cli.WriteCompletions(os.Stdout, list, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runSearchCommands() {
	fs := flag.NewFlagSet("search-commands", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 10, "number of results")
	fuzzy := fs.Bool("fuzzy", false, "enable typo-tolerant matching")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	query := cli.JoinArgs(fs.Args())
	if query == "" {
		fmt.Println("Usage: vibetex search-commands [flags] <query>")
		os.Exit(1)
	}
	format := parseFormatOrExit(*outputFormat)

	cfg := loadConfigOrDefaults(*configPath)
	table, err := completion.LoadTable(cfg.Completion.TablePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load completion table: %v\n", err)
		os.Exit(1)
	}
	idx, err := completion.NewIndex(table)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build index: %v\n", err)
		os.Exit(1)
	}
	defer idx.Close()

	out := &cli.SearchOutput{Query: query, Fuzzy: *fuzzy}
	out.Results, err = idx.Search(query, *limit, *fuzzy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	// Retry with typo tolerance when an exact search finds nothing.
	if !*fuzzy && len(out.Results) == 0 {
		if hits, fuzzyErr := idx.Search(query, *limit, true); fuzzyErr == nil && len(hits) > 0 {
			out.Results = hits
			out.Fuzzy = true
		}
	}
	if err := cli.WriteSearchHits(os.Stdout, out, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := parseFormatOrExit(*outputFormat)
	status, err := statusViaHTTP(*serverURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*cli.Status, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s cli.Status
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// Components holds initialized services for the server.
type Components struct {
	Storage  *storage.SQLiteStorage
	Backend  *backend.Client
	Provider *completion.Provider
	Index    *completion.Index
	Sessions *session.Registry
}

func (c *Components) Close() {
	if c.Sessions != nil {
		c.Sessions.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	policy, err := compile.ParsePolicy(cfg.Session.Sequencing)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Storage: store}

	provider, err := loadProvider(cfg)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load completion table: %w", err)
	}
	c.Provider = provider
	c.Index, err = completion.NewIndex(provider.Table())
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to build completion index: %w", err)
	}
	logger.Info("completion table loaded",
		zap.Int("entries", provider.Table().Len()),
		zap.Strings("triggers", provider.Table().Triggers()),
	)

	c.Backend = newBackendClient(cfg, logger)
	c.Sessions = session.NewRegistry(c.Backend,
		session.WithTTL(cfg.Session.TTL, cfg.Session.CleanupInterval),
		session.WithRecorder(store),
		session.WithLog(store),
		session.WithPolicy(policy),
		session.WithAttachmentExtensions(cfg.Session.AttachmentExtensions),
		session.WithLogger(logger),
	)
	return c, nil
}

func printUsage() {
	fmt.Println(`vibetex - LaTeX editor backend with compile and AI chat

Usage:
  vibetex server [flags]                   Start the HTTP server
  vibetex compile [flags] <file.tex>       Compile a document through the backend
  vibetex chat [flags] <prompt>            Ask the assistant about a document
  vibetex complete [flags] <prefix>        List command completions for a prefix
  vibetex search-commands [flags] <query>  Search command documentation
  vibetex status [flags]                   Show server status
  vibetex version                          Show version
  vibetex help                             Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/vibetex/config.yaml)
  --debug            Enable debug logging

Compile Flags:
  -o string          Output PDF path (default: source with .pdf extension)
  --output string    Output format: text or json (default: text)

Chat Flags:
  --source string    Current document sent as context
  --attach string    File to attach (.md, .txt, .mp3)
  --diff             Print proposed changes as a unified diff against --source

Search Flags:
  --limit int        Number of results (default: 10)
  --fuzzy            Enable typo tolerance (retried automatically when nothing matches)

Status Flags:
  --server string    Server URL (default: http://localhost:8090)
  --output string    Output format: text or json (default: text)

Examples:
  vibetex server
  vibetex compile paper.tex -o build/paper.pdf
  vibetex chat --source paper.tex --diff "Add an abstract"
  vibetex complete sub
  vibetex search-commands --fuzzy "bibliografy"
  vibetex status --output json`)
}
