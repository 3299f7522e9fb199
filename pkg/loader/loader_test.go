package loader

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Skills:</w:t><w:tab/><w:t>Go, Kubernetes</w:t></w:r></w:p>
<w:p><w:r><w:t>Line one</w:t><w:br/><w:t>Line two</w:t></w:r></w:p>
</w:body>
</w:document>`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func writeDocx(t *testing.T, path, body string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	contentTypes := `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`
	if body != "" {
		contentTypes = `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
			`</Types>`
	}
	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(contentTypes))
	require.NoError(t, err)

	if body != "" {
		w, err = zw.Create("word/document.xml")
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "resume_john.txt"), "John Smith\nGo developer with 6 years experience.")
	writeFile(t, filepath.Join(dir, "nested", "job_backend.txt"), "Backend engineer job description.")
	writeDocx(t, filepath.Join(dir, "resume_jane.docx"), sampleDocumentXML)
	writeFile(t, filepath.Join(dir, "posting.html"), "<html><head><title>Data Engineer</title></head><body><main>Spark and Airflow</main></body></html>")
	writeFile(t, filepath.Join(dir, "notes.csv"), "ignored,file")
	writeFile(t, filepath.Join(dir, "empty.txt"), "   ")
	writeFile(t, filepath.Join(dir, "broken.docx"), "not a zip archive")

	l := New(zaptest.NewLogger(t))
	docs, err := l.Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, docs, 4)

	// .txt files first, sorted by path, then .docx, then supplements.
	assert.Equal(t, "job_backend.txt", docs[0].Title)
	assert.Equal(t, "resume_john.txt", docs[1].Title)
	assert.Equal(t, "resume_jane.docx", docs[2].Title)
	assert.Equal(t, "posting.html", docs[3].Title)

	assertDocxLines(t, docs[2].Content)
	assert.Equal(t, "Spark and Airflow", docs[3].Content)
	assert.Equal(t, "Data Engineer", docs[3].Metadata["title"])

	for _, doc := range docs {
		assert.NotEmpty(t, doc.ID)
		assert.Equal(t, doc.Source, doc.Metadata["source"])
		assert.Equal(t, doc.Title, doc.Metadata["file_name"])
	}
}

func TestLoadSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resume.TXT")
	writeFile(t, path, "Senior recruiter resume")

	l := New(nil)
	docs, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Senior recruiter resume", docs[0].Content)

	again, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, docs[0].ID, again[0].ID, "IDs are stable across loads")
}

func TestLoadUnsupportedSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	writeFile(t, path, "binary")

	docs, err := New(nil).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = New(nil).LoadFile(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestLoadMissingPath(t *testing.T) {
	_, err := New(nil).Load(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

// assertDocxLines checks the text of sampleDocumentXML: paragraphs and
// breaks end up on their own lines.
func assertDocxLines(t *testing.T, text string) {
	t.Helper()
	lines := strings.Split(text, "\n")
	assert.Equal(t, "Jane Doe", lines[0])
	assert.Contains(t, lines, "Line one")
	assert.Contains(t, lines, "Line two")
	assert.Contains(t, text, "Skills:")
	assert.Contains(t, text, "Go, Kubernetes")
	for _, line := range lines {
		assert.Equal(t, strings.TrimSpace(line), line)
		assert.NotEmpty(t, line)
	}
}

func TestReadDocx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume_jane.docx")
	writeDocx(t, path, sampleDocumentXML)

	pages, err := readDocx(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assertDocxLines(t, pages[0].PageContent)
}

func TestReadDocxMissingBody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.docx")
	writeDocx(t, path, "")

	_, err := readDocx(context.Background(), path)
	assert.ErrorContains(t, err, "no text found")
}

func TestReadDocxNotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.docx")
	writeFile(t, path, "not a zip archive")

	_, err := readDocx(context.Background(), path)
	assert.ErrorContains(t, err, "failed to convert docx")
}

func TestNormalizeLines(t *testing.T) {
	assert.Equal(t, "a\nb c", normalizeLines("\n  a \n\n\tb c\n"))
	assert.Equal(t, "", normalizeLines(" \n\t"))
}
