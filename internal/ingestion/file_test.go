package ingestion

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSyllabus_AcceptedTypes(t *testing.T) {
	tests := []struct {
		name     string
		wantType string
	}{
		{name: "syllabus.txt", wantType: "text/plain"},
		{name: "SYLLABUS.TXT", wantType: "text/plain"},
		{name: "notes/course.md", wantType: "text/markdown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ReadSyllabus(tt.name, strings.NewReader("MODULES:\n1. Cloud"))
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, s.Type)
			assert.Equal(t, "MODULES:\n1. Cloud", s.Content)
			assert.Equal(t, filepath.Base(tt.name), s.Name)
		})
	}
}

func TestReadSyllabus_Unsupported(t *testing.T) {
	for _, name := range []string{"syllabus.pdf", "syllabus.docx", "syllabus"} {
		_, err := ReadSyllabus(name, strings.NewReader("x"))
		var unsupported *UnsupportedFileError
		require.True(t, errors.As(err, &unsupported), name)
		assert.Contains(t, err.Error(), ".txt, .md")
	}
}

func TestReadSyllabus_NormalizesLineEndings(t *testing.T) {
	s, err := ReadSyllabus("a.txt", strings.NewReader("line1\r\nline2\rline3\n"))
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\nline3\n", s.Content)
}

func TestReadSyllabus_EmptyFileIsReadAsIs(t *testing.T) {
	s, err := ReadSyllabus("empty.md", strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, s.Content)
}

func TestReadSyllabus_TooLarge(t *testing.T) {
	big := strings.Repeat("a", int(MaxFileBytes)+1)
	_, err := ReadSyllabus("big.txt", strings.NewReader(big))

	var tooLarge *FileTooLargeError
	assert.True(t, errors.As(err, &tooLarge))
}

func TestReadSyllabusFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "course.md")
	require.NoError(t, os.WriteFile(path, []byte("# Course\n- DevOps"), 0o600))

	s, err := ReadSyllabusFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Course\n- DevOps", s.Content)

	_, err = ReadSyllabusFile(filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}

func TestSyllabus_Metadata(t *testing.T) {
	s := &Syllabus{Name: "a.txt", Type: "text/plain", Content: "hello"}
	meta := s.Metadata()

	assert.Equal(t, "a.txt", meta.Name)
	assert.Equal(t, 5, meta.Bytes)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", meta.Hash)
	assert.NotEmpty(t, meta.Timestamp)
}
