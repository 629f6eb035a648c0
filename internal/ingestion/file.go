// Package ingestion reads syllabus text from local files and uploads.
package ingestion

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxFileBytes caps how much text is read from a single syllabus file.
const MaxFileBytes int64 = 1 << 20

var mimeTypes = map[string]string{
	".txt": "text/plain",
	".md":  "text/markdown",
}

// Syllabus is the text of one selected or uploaded file.
type Syllabus struct {
	Name    string
	Type    string
	Content string
}

// Metadata returns loggable facts about the syllabus.
func (s *Syllabus) Metadata() *Metadata {
	return NewMetadata(s.Name, s.Type, s.Content)
}

// IsSupported reports whether name has an accepted extension.
func IsSupported(name string) bool {
	_, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ReadSyllabus reads plain text from r. The name decides whether the file is accepted.
// Content is kept verbatim apart from line-ending normalization.
func ReadSyllabus(name string, r io.Reader) (*Syllabus, error) {
	ext := strings.ToLower(filepath.Ext(name))
	fileType, ok := mimeTypes[ext]
	if !ok {
		return nil, &UnsupportedFileError{Name: name, Ext: ext}
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if int64(len(data)) > MaxFileBytes {
		return nil, &FileTooLargeError{Name: name, Limit: MaxFileBytes}
	}

	return &Syllabus{
		Name:    filepath.Base(name),
		Type:    fileType,
		Content: NormalizeLineEndings(string(data)),
	}, nil
}

// ReadSyllabusFile opens path and reads it with ReadSyllabus.
func ReadSyllabusFile(path string) (*Syllabus, error) {
	if !IsSupported(path) {
		return nil, &UnsupportedFileError{Name: path, Ext: strings.ToLower(filepath.Ext(path))}
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %w", err)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ReadSyllabus(path, f)
}

// NormalizeLineEndings converts CRLF and lone CR to LF.
func NormalizeLineEndings(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n")
}
