package ingestion

import "fmt"

// UnsupportedFileError is returned for files that are not plain-text syllabi.
type UnsupportedFileError struct {
	Name string
	Ext  string
}

func (e *UnsupportedFileError) Error() string {
	return fmt.Sprintf("unsupported file type %q for %s (accepted: .txt, .md)", e.Ext, e.Name)
}

// FileTooLargeError is returned when a syllabus exceeds the size limit.
type FileTooLargeError struct {
	Name  string
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file %s exceeds the %d byte limit", e.Name, e.Limit)
}
