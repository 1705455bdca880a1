// Package source reads and lists the document files participants annotate.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hilite-live/hilite/internal/markdown"
	"github.com/hilite-live/hilite/internal/tokenizer"
)

// ErrNotFound indicates the named source file does not exist.
var ErrNotFound = errors.New("source not found")

// Library serves source documents from a single directory. Names are
// reduced to their base name so a request can never escape the directory.
type Library struct {
	dir         string
	defaultName string
}

// NewLibrary creates the source directory if needed.
func NewLibrary(dir, defaultName string) (*Library, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating source directory: %w", err)
	}
	return &Library{dir: dir, defaultName: defaultName}, nil
}

// DefaultName returns the source used when a document names none.
func (l *Library) DefaultName() string {
	return l.defaultName
}

// Sanitize reduces a requested name to a safe file name, falling back to
// the default source when empty.
func (l *Library) Sanitize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return l.defaultName
	}
	return filepath.Base(name)
}

// List returns the annotatable files in the source directory, sorted.
func (l *Library) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".txt", ".md", ".html":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ReadText returns the raw text of a source file with any BOM removed.
func (l *Library) ReadText(name string) (string, error) {
	name = l.Sanitize(name)
	data, err := os.ReadFile(filepath.Join(l.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("reading source %s: %w", name, err)
	}
	return stripBOM(string(data)), nil
}

// Render returns the display form of a source along with its content type.
// Markdown sources are rendered to HTML; everything else passes through.
func (l *Library) Render(name string) (string, string, error) {
	name = l.Sanitize(name)
	text, err := l.ReadText(name)
	if err != nil {
		return "", "", err
	}
	if IsMarkdown(name) {
		rendered, err := markdown.ToHTML(text)
		if err != nil {
			return "", "", err
		}
		return rendered, "text/html; charset=utf-8", nil
	}
	return text, "text/plain; charset=utf-8", nil
}

// Tokenize loads a source and produces its token sequence. Markdown is
// rendered first so indices match the displayed markup; for markup sources
// newline tokens are dropped because the markup carries its own structure.
func (l *Library) Tokenize(name string) ([]string, string, error) {
	name = l.Sanitize(name)
	text, err := l.ReadText(name)
	if err != nil {
		return nil, "", err
	}

	isMD := IsMarkdown(name)
	htmlLike := isMD || strings.HasSuffix(strings.ToLower(name), ".html")

	if isMD {
		rendered, err := markdown.ToHTML(text)
		if err != nil {
			return nil, "", err
		}
		text = stripBOM(rendered)
	}
	if htmlLike {
		text = tokenizer.HTMLToPlain(text)
	}
	tokens := tokenizer.Tokenize(text)
	if htmlLike {
		kept := tokens[:0]
		for _, tok := range tokens {
			if tok != "" && tok != "\n" {
				kept = append(kept, tok)
			}
		}
		tokens = kept
	}
	return tokens, name, nil
}

// IsMarkdown reports whether the name refers to a Markdown file.
func IsMarkdown(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".md")
}

func stripBOM(text string) string {
	return strings.ReplaceAll(text, "\uFEFF", "")
}
