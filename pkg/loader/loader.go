package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"github.com/xhad/hragent/internal/models"
	"github.com/xhad/hragent/pkg/scraper"
)

// ErrUnsupportedType is returned by LoadFile for extensions without a reader.
var ErrUnsupportedType = errors.New("unsupported file type")

// Extensions lists the file types picked up when walking a folder, in the
// order their documents are returned.
var Extensions = []string{".txt", ".pdf", ".docx", ".md", ".html", ".htm"}

type readFunc func(ctx context.Context, path string) ([]schema.Document, error)

type Loader struct {
	logger  *zap.Logger
	readers map[string]readFunc
}

func New(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		logger: logger,
		readers: map[string]readFunc{
			".txt":  readText,
			".md":   readText,
			".pdf":  readPDF,
			".docx": readDocx,
			".html": readHTML,
			".htm":  readHTML,
		},
	}
}

// Load reads a single file or every supported file below a directory.
// Files that fail to load are logged and skipped.
func (l *Loader) Load(ctx context.Context, path string) ([]models.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %s: %w", path, err)
	}

	if !info.IsDir() {
		docs, err := l.LoadFile(ctx, path)
		if err != nil {
			if errors.Is(err, ErrUnsupportedType) {
				l.logger.Warn("unsupported file type", zap.String("file", path))
			} else {
				l.logger.Error("error loading file", zap.String("file", path), zap.Error(err))
			}
			return nil, nil
		}
		return docs, nil
	}

	files, err := collectFiles(path)
	if err != nil {
		return nil, err
	}

	var documents []models.Document
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		docs, err := l.LoadFile(ctx, file)
		if err != nil {
			l.logger.Error("error loading file", zap.String("file", file), zap.Error(err))
			continue
		}
		documents = append(documents, docs...)
	}

	return documents, nil
}

// LoadFile reads one file using the reader registered for its extension.
func (l *Loader) LoadFile(ctx context.Context, path string) ([]models.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	read, ok := l.readers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}

	pages, err := read(ctx, path)
	if err != nil {
		return nil, err
	}

	docs := toDocuments(path, pages)
	l.logger.Info("loaded documents", zap.String("file", path), zap.Int("count", len(docs)))
	return docs, nil
}

func collectFiles(root string) ([]string, error) {
	byExt := make(map[string][]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		byExt[ext] = append(byExt[ext], path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	var files []string
	for _, ext := range Extensions {
		group := byExt[ext]
		sort.Strings(group)
		files = append(files, group...)
	}
	return files, nil
}

func toDocuments(path string, pages []schema.Document) []models.Document {
	name := filepath.Base(path)
	source := path
	if abs, err := filepath.Abs(path); err == nil {
		source = abs
	}

	docs := make([]models.Document, 0, len(pages))
	for i, page := range pages {
		if strings.TrimSpace(page.PageContent) == "" {
			continue
		}

		metadata := make(map[string]interface{}, len(page.Metadata)+2)
		for k, v := range page.Metadata {
			metadata[k] = v
		}
		metadata["source"] = path
		metadata["file_name"] = name

		key := source
		if len(pages) > 1 {
			key = fmt.Sprintf("%s#%d", source, i)
		}

		docs = append(docs, models.Document{
			ID:       uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+key)).String(),
			Source:   path,
			Title:    name,
			Content:  page.PageContent,
			Metadata: metadata,
		})
	}
	return docs
}

func readText(ctx context.Context, path string) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	text := documentloaders.NewText(f)
	return text.Load(ctx)
}

func readPDF(ctx context.Context, path string) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pdf := documentloaders.NewPDF(f, info.Size())
	return pdf.Load(ctx)
}

func readHTML(_ context.Context, path string) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	title, content, err := scraper.ExtractContent(f)
	if err != nil {
		return nil, err
	}

	metadata := map[string]any{}
	if title != "" {
		metadata["title"] = title
	}
	return []schema.Document{{PageContent: content, Metadata: metadata}}, nil
}
