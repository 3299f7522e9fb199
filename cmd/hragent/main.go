package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/xhad/hragent/internal/models"
	cfgPkg "github.com/xhad/hragent/pkg/config"
	"github.com/xhad/hragent/pkg/rag"
	"github.com/xhad/hragent/server"
)

const usage = `Usage: hragent [flags] <command> [args]

Commands:
  serve            run the web UI and API (default)
  index [path]     index a folder, file or job posting URL (defaults to FILE_PATH)
  ask "question"   answer a single question
  chat             interactive chat in the terminal
  doctor           check configuration and connectivity

Flags:
`

type options struct {
	configPath string
	port       string
	backend    string
	model      string
	verbose    bool
	stream     bool
}

func main() {
	opts, args := parseFlags()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func parseFlags() (options, []string) {
	var opts options

	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.StringVar(&opts.configPath, "config", "", "Path to config file")
	flag.StringVar(&opts.port, "port", "", "HTTP port (overrides config and PORT)")
	flag.StringVar(&opts.backend, "backend", "", "Vector backend: pinecone or pgvector")
	flag.StringVar(&opts.model, "model", "", "Chat model to use")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose logging")
	flag.BoolVar(&opts.stream, "stream", false, "Stream answers token by token (overrides config)")
	flag.Parse()

	return opts, flag.Args()
}

func loadConfig(opts options) (*cfgPkg.Config, error) {
	cfg, err := cfgPkg.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	// Command line flags win over file and environment
	if opts.port != "" {
		cfg.Server.Port = opts.port
	}
	if opts.backend != "" {
		cfg.Vector.Backend = opts.backend
	}
	if opts.model != "" {
		cfg.LLM.Model = opts.model
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "stream" {
			cfg.Server.Streaming = opts.stream
		}
	})
	return cfg, nil
}

func validate(cfg *cfgPkg.Config) error {
	problems := cfg.Validate()
	if len(problems) == 0 {
		return nil
	}
	msgs := make([]string, len(problems))
	for i, p := range problems {
		msgs[i] = p.Error()
	}
	return fmt.Errorf("invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, opts options, args []string) error {
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	if command == "doctor" {
		return doctor(ctx, cfg, args)
	}

	if err := validate(cfg); err != nil {
		return err
	}

	logger := zap.NewNop()
	if command == "serve" || opts.verbose {
		if logger, err = newLogger(opts.verbose); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
	}
	defer logger.Sync()

	svc, err := rag.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	switch command {
	case "serve":
		return serve(ctx, cfg, svc, logger)
	case "index":
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		return index(ctx, svc, path)
	case "ask":
		if len(args) == 0 {
			return errors.New(`ask needs a question, e.g. hragent ask "who knows Go?"`)
		}
		return ask(ctx, svc, strings.Join(args, " "), cfg.Server.Streaming)
	case "chat":
		return chat(ctx, svc, cfg.Server.Streaming)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func serve(ctx context.Context, cfg *cfgPkg.Config, svc *rag.Service, logger *zap.Logger) error {
	srv := server.New(server.Config{
		Port:         cfg.Server.Port,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Streaming:    cfg.Server.Streaming,
		Metrics:      svc.Metrics().Handler(),
		Logger:       logger.Named("http"),
	}, svc)
	return srv.ListenAndServe(ctx)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

// spin keeps the spinner moving until the returned stop func is called.
func spin(description string) (stop func()) {
	bar := getSpinner(description)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				bar.Add(1)
				time.Sleep(100 * time.Millisecond)
			}
		}
	}()
	return func() {
		close(done)
		bar.Finish()
	}
}

func index(ctx context.Context, svc *rag.Service, path string) error {
	stop := spin(" Indexing documents...")
	result, err := svc.UpdateVectorStore(ctx, path)
	stop()

	for _, m := range result.Messages {
		printFlash(m.Category, m.Message)
	}
	if err != nil {
		return err
	}
	color.Green("✓ Stored %d chunks from %d documents", result.Chunks, result.Documents)
	return nil
}

func printFlash(category, message string) {
	switch category {
	case "success":
		color.Green("✓ %s", message)
	case "info":
		color.Cyan("• %s", message)
	case "warning":
		color.Yellow("! %s", message)
	default:
		color.Red("✗ %s", message)
	}
}

func ask(ctx context.Context, svc *rag.Service, question string, stream bool) error {
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	if !stream {
		stop := spin(" Generating response...")
		answer, err := svc.Ask(ctx, question)
		stop()
		if err != nil {
			return err
		}
		assistantPrompt("\nAssistant:\n")
		fmt.Println(answer.Markdown)
		printSources(answer)
		return nil
	}

	stop := spin(" Thinking...")
	first := true
	answer, err := svc.AskStream(ctx, question, func(chunk string) error {
		if first {
			stop()
			first = false
			assistantPrompt("\nAssistant:\n")
		}
		fmt.Print(chunk)
		return nil
	})
	// Ensure spinner is finished in case of early exit
	if first {
		stop()
	}
	fmt.Print("\n")
	if err != nil {
		return err
	}
	printSources(answer)
	return nil
}

func printSources(answer *models.Answer) {
	if len(answer.Sources) == 0 {
		return
	}
	color.Blue("\nSources:")
	for _, src := range answer.Sources {
		fmt.Printf("  %s %s\n", color.YellowString("%s (%.2f)", src.Name, src.Score), src.Content)
	}
}

func chat(ctx context.Context, svc *rag.Service, stream bool) error {
	color.Cyan("\nChat with your resumes and job descriptions (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if strings.ToLower(query) == "exit" {
			break
		}
		if query == "" {
			continue
		}

		// Indexing from the prompt: ":index <path or url>"
		if path, ok := strings.CutPrefix(query, ":index"); ok {
			if err := index(ctx, svc, strings.TrimSpace(path)); err != nil {
				color.Red("Error: %v", err)
			}
			continue
		}

		if err := ask(ctx, svc, query, stream); err != nil {
			color.Red("Error: %v", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return scanner.Err()
}
