package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
)

// FileUpload is a file sent as the "file" part of a multipart request.
type FileUpload struct {
	// Name is the file name reported to the backend.
	Name   string
	Reader io.Reader
	// Size in bytes, or -1 when unknown. Upload progress is only reported
	// when the size is known.
	Size int64
}

// NewFileUpload wraps an in-memory file.
func NewFileUpload(name string, data []byte) *FileUpload {
	return &FileUpload{Name: name, Reader: bytes.NewReader(data), Size: int64(len(data))}
}

// OpenFile opens path for upload. Close releases the underlying file.
func OpenFile(path string) (*FileUpload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &FileUpload{Name: filepath.Base(path), Reader: f, Size: info.Size()}, nil
}

// Close closes the reader when it is closable.
func (f *FileUpload) Close() error {
	if c, ok := f.Reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type formPart struct {
	name  string
	value string
	file  *FileUpload
}

// form assembles a multipart/form-data body. Parts keep insertion order and
// at most one file part is streamed from its reader instead of being copied
// into memory.
type form struct {
	parts []formPart
	// boundary is fixed by the first encode so a replayed body matches the
	// Content-Type already sent.
	boundary string
}

func (f *form) add(name, value string) {
	f.parts = append(f.parts, formPart{name: name, value: value})
}

// addOptional adds the field only when value is non-empty.
func (f *form) addOptional(name, value string) {
	if value != "" {
		f.add(name, value)
	}
}

func (f *form) addInt(name string, v int) {
	f.add(name, strconv.Itoa(v))
}

// addOptionalInt adds the field only when v is set.
func (f *form) addOptionalInt(name string, v *int) {
	if v != nil {
		f.addInt(name, *v)
	}
}

func (f *form) addFile(name string, file *FileUpload) {
	f.parts = append(f.parts, formPart{name: name, file: file})
}

// switchWriter lets the multipart writer emit into the head buffer up to the
// file part header and into the tail buffer afterwards.
type switchWriter struct {
	w io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

// encode returns the body, its content type and its length (-1 when the file
// size is unknown).
func (f *form) encode() (io.Reader, string, int64, error) {
	var head, tail bytes.Buffer
	sw := &switchWriter{w: &head}
	mw := multipart.NewWriter(sw)
	if f.boundary != "" {
		if err := mw.SetBoundary(f.boundary); err != nil {
			return nil, "", 0, fmt.Errorf("reuse boundary: %w", err)
		}
	} else {
		f.boundary = mw.Boundary()
	}

	var file *FileUpload
	for _, p := range f.parts {
		if p.file == nil {
			if err := mw.WriteField(p.name, p.value); err != nil {
				return nil, "", 0, fmt.Errorf("write field %s: %w", p.name, err)
			}
			continue
		}
		if file != nil {
			return nil, "", 0, fmt.Errorf("only one file part is supported")
		}
		if _, err := mw.CreateFormFile(p.name, p.file.Name); err != nil {
			return nil, "", 0, fmt.Errorf("write file header: %w", err)
		}
		file = p.file
		sw.w = &tail
	}
	if err := mw.Close(); err != nil {
		return nil, "", 0, fmt.Errorf("close multipart body: %w", err)
	}

	contentType := mw.FormDataContentType()
	if file == nil {
		return &head, contentType, int64(head.Len()), nil
	}

	body := io.MultiReader(&head, file.Reader, &tail)
	if file.Size < 0 {
		return body, contentType, -1, nil
	}
	return body, contentType, int64(head.Len()) + file.Size + int64(tail.Len()), nil
}

// getBody returns a function that re-encodes the body from the start, or nil
// when the file part cannot be rewound.
func (f *form) getBody() func() (io.ReadCloser, error) {
	var seekers []io.Seeker
	for _, p := range f.parts {
		if p.file == nil {
			continue
		}
		s, ok := p.file.Reader.(io.Seeker)
		if !ok {
			return nil
		}
		seekers = append(seekers, s)
	}
	return func() (io.ReadCloser, error) {
		for _, s := range seekers {
			if _, err := s.Seek(0, io.SeekStart); err != nil {
				return nil, fmt.Errorf("rewind file: %w", err)
			}
		}
		body, _, _, err := f.encode()
		if err != nil {
			return nil, err
		}
		return io.NopCloser(body), nil
	}
}
