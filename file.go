package httprpc

import (
	"bytes"
	"io"
	"reflect"
)

// FormFile is a file payload sent as one multipart/form-data part.
// Parameters whose declared type implements FormFile, or is a slice or array
// of such a type, bind as form files.
type FormFile interface {
	// FileName returns the name sent in the Content-Disposition header.
	FileName() string
	// ContentType returns the MIME type of the content, or "" if unknown.
	ContentType() string
	// Open returns a reader over the file content.
	Open() (io.ReadCloser, error)
}

// File is an in-memory FormFile.
type File struct {
	Name string
	Type string
	Data []byte
}

// NewFile returns a File with the given name, content type and content.
func NewFile(name, contentType string, data []byte) *File {
	return &File{Name: name, Type: contentType, Data: data}
}

// FileName implements FormFile.
func (f *File) FileName() string { return f.Name }

// ContentType implements FormFile.
func (f *File) ContentType() string { return f.Type }

// Open implements FormFile.
func (f *File) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.Data)), nil
}

// ReaderFile adapts an io.Reader into a FormFile. The reader is consumed by the
// first Open call.
type ReaderFile struct {
	Name   string
	Type   string
	Reader io.Reader
}

// FileName implements FormFile.
func (f *ReaderFile) FileName() string { return f.Name }

// ContentType implements FormFile.
func (f *ReaderFile) ContentType() string { return f.Type }

// Open implements FormFile.
func (f *ReaderFile) Open() (io.ReadCloser, error) {
	if rc, ok := f.Reader.(io.ReadCloser); ok {
		return rc, nil
	}
	return io.NopCloser(f.Reader), nil
}

var formFileType = reflect.TypeFor[FormFile]()

// isFileType reports whether t is a file payload type: an implementation of
// FormFile, or a slice or array of one.
func isFileType(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Implements(formFileType) {
		return true
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return t.Elem().Implements(formFileType)
	}
	return false
}
