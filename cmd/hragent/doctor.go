package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/xhad/hragent/internal/models"
	cfgPkg "github.com/xhad/hragent/pkg/config"
	"github.com/xhad/hragent/pkg/llm"
	"github.com/xhad/hragent/pkg/loader"
	"github.com/xhad/hragent/pkg/processor"
	"github.com/xhad/hragent/pkg/store"
)

const sampleResume = `
This is a test resume for John Doe.

Skills: Python, JavaScript, React
Experience: 5 years in software development
Education: Computer Science degree
`

type check struct {
	name string
	run  func(ctx context.Context, cfg *cfgPkg.Config, args []string) bool
}

// doctor runs each diagnostic in turn and prints a summary. It fails when
// any check fails.
func doctor(ctx context.Context, cfg *cfgPkg.Config, args []string) error {
	checks := []check{
		{"Environment Variables", checkEnvironment},
		{"Configuration", checkConfig},
		{"OpenAI Connection", checkEmbeddings},
		{"Vector Store Connection", checkVectorStore},
		{"Document Loading", checkLoading},
		{"Text Splitting", checkSplitting},
	}

	color.Cyan(strings.Repeat("=", 60))
	color.Cyan("HR RAG Agent - Diagnostics")
	color.Cyan(strings.Repeat("=", 60))

	passed := 0
	results := make([]bool, len(checks))
	for i, c := range checks {
		color.Blue("\nChecking %s...", c.name)
		results[i] = c.run(ctx, cfg, args)
		if results[i] {
			passed++
		}
	}

	color.Cyan("\n" + strings.Repeat("=", 60))
	color.Cyan("SUMMARY")
	color.Cyan(strings.Repeat("=", 60))
	for i, c := range checks {
		if results[i] {
			color.Green("  PASS  %s", c.name)
		} else {
			color.Red("  FAIL  %s", c.name)
		}
	}
	fmt.Printf("\n%d/%d checks passed\n", passed, len(checks))

	if passed != len(checks) {
		return fmt.Errorf("%d checks failed", len(checks)-passed)
	}
	return nil
}

func ok(format string, args ...interface{})   { color.Green("   ✓ "+format, args...) }
func warn(format string, args ...interface{}) { color.Yellow("   ! "+format, args...) }
func fail(format string, args ...interface{}) { color.Red("   ✗ "+format, args...) }

// mask hides all but the last four characters of a secret.
func mask(value string) string {
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", 10) + "..." + value[len(value)-4:]
}

func checkEnvironment(_ context.Context, cfg *cfgPkg.Config, _ []string) bool {
	required := []string{"OPENAI_API_KEY", "INDEX_NAME"}
	switch cfg.Vector.Backend {
	case cfgPkg.BackendPinecone:
		required = append(required, "PINECONE_API_KEY")
	case cfgPkg.BackendPGVector:
		required = append(required, "DATABASE_URL")
	}

	good := true
	for _, name := range required {
		if value := os.Getenv(name); value != "" {
			ok("%s: %s", name, mask(value))
		} else {
			fail("%s: not set", name)
			good = false
		}
	}
	for _, name := range []string{"FILE_PATH", "REDIS_URL", "OPENAI_BASE_URL"} {
		if value := os.Getenv(name); value != "" {
			ok("%s: %s", name, value)
		}
	}
	return good
}

func checkConfig(_ context.Context, cfg *cfgPkg.Config, _ []string) bool {
	problems := cfg.Validate()
	for _, p := range problems {
		fail("%s", p.Error())
	}
	if len(problems) == 0 {
		ok("backend %s, index %q, chat model %s, embedding model %s",
			cfg.Vector.Backend, cfg.Vector.IndexName, cfg.LLM.Model, cfg.LLM.EmbeddingModel)
	}
	return len(problems) == 0
}

func checkEmbeddings(ctx context.Context, cfg *cfgPkg.Config, _ []string) bool {
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:   cfg.LLM.EmbeddingModel,
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
	})
	if err != nil {
		fail("%v", err)
		return false
	}
	vector, err := emb.EmbedQuery(ctx, "This is a test document for embedding.")
	if err != nil {
		fail("embedding request failed: %v", err)
		return false
	}
	ok("embeddings working (dimension: %d)", len(vector))
	if advice := dimensionAdvice(len(vector), cfg.Vector.Dimension); advice != "" {
		warn("%s", advice)
	}
	return true
}

// dimensionAdvice explains how to fix a vector.dimension that does not match
// what the embedding model returns.
func dimensionAdvice(got, configured int) string {
	if got == configured {
		return ""
	}
	return fmt.Sprintf("embedding model returns %d-dimensional vectors but vector.dimension is %d; set vector.dimension: %d in the config file",
		got, configured, got)
}

func checkVectorStore(ctx context.Context, cfg *cfgPkg.Config, _ []string) bool {
	vs, err := store.Open(ctx, cfg, zap.NewNop())
	if err != nil {
		fail("%v", err)
		return false
	}
	defer vs.Close()

	available, err := vs.Available(ctx)
	if err != nil {
		fail("connection failed: %v", err)
		return false
	}
	ok("%s connection successful", cfg.Vector.Backend)

	if !available {
		warn("index %q does not exist", cfg.Vector.IndexName)
		warn("it will be created on the first update")
		return true
	}

	stats, err := vs.Stats(ctx)
	if err != nil {
		fail("failed to read index stats: %v", err)
		return false
	}
	ok("index %q exists: %d vectors, dimension %d", stats.Name, stats.VectorCount, stats.Dimension)
	return true
}

func checkLoading(ctx context.Context, cfg *cfgPkg.Config, args []string) bool {
	path := cfg.Server.FilePath
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		warn("no FILE_PATH configured; pass a folder: hragent doctor <path>")
		return false
	}

	docs, err := loader.New(zap.NewNop()).Load(ctx, path)
	if err != nil {
		fail("%v", err)
		return false
	}
	if len(docs) == 0 {
		fail("no supported documents found in %s", path)
		return false
	}

	ok("loaded %d documents from %s", len(docs), path)
	for _, doc := range docs {
		fmt.Printf("      - %s\n", doc.Title)
	}
	fmt.Printf("   sample content: %s\n", preview(docs[0].Content, 100))
	return true
}

func checkSplitting(_ context.Context, _ *cfgPkg.Config, _ []string) bool {
	p := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 100, ChunkOverlap: 20})
	processed, err := p.Process([]models.Document{{ID: "sample", Source: "sample.txt", Content: sampleResume}})
	if err != nil {
		fail("split failed: %v", err)
		return false
	}
	ok("sample resume split into %d chunks", processor.CountChunks(processed))
	return true
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
