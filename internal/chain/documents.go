package chain

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/HendryAvila/specchain/internal/config"
)

// MaxFileSize is the largest markdown file read into a document.
const MaxFileSize = 500_000

// Documents maps a document type to its full text. A split document holds
// the concatenation of all its parts.
type Documents map[string]string

// Has reports whether docType was loaded.
func (d Documents) Has(docType string) bool {
	_, ok := d[docType]
	return ok
}

// LoadDocuments reads every configured chain document. Missing files and
// files over MaxFileSize are skipped; a document with no readable part is
// absent from the result.
func LoadDocuments(cfg *config.Config) (Documents, error) {
	docs := make(Documents)
	for _, docType := range cfg.Order() {
		var parts []string
		for _, p := range cfg.DocumentPaths(docType) {
			texts, err := readMarkdown(p)
			if err != nil {
				return nil, fmt.Errorf("loading %s: %w", docType, err)
			}
			parts = append(parts, texts...)
		}
		if len(parts) > 0 {
			docs[docType] = strings.Join(parts, "\n")
		}
	}
	return docs, nil
}

// readMarkdown reads a file, or every .md file below a directory in
// lexical order. A missing path yields nothing.
func readMarkdown(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() {
		text, ok, err := readDocumentFile(path, info)
		if err != nil || !ok {
			return nil, err
		}
		return []string{text}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".md") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", path, err)
	}
	sort.Strings(files)

	var out []string
	for _, f := range files {
		fi, err := os.Stat(f)
		if err != nil {
			continue
		}
		text, ok, err := readDocumentFile(f, fi)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, text)
		}
	}
	return out, nil
}

func readDocumentFile(path string, info os.FileInfo) (string, bool, error) {
	if info.Size() > MaxFileSize {
		return "", false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), true, nil
}
