package router

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Sentinel errors for static roots.
var (
	// ErrInvalidStaticRoot is reported when a static root cannot serve files.
	ErrInvalidStaticRoot = errors.New("invalid directory for static content")
)

// staticExtensions are the suffixes tried, in order, for every static URI.
var staticExtensions = []string{"", ".html", ".md"}

// indexDocument replaces the empty last segment of directory URIs.
const indexDocument = "index"

// staticRoute resolves URIs to files under a root of a file system.
// It keeps no per-request state.
type staticRoute struct {
	fsys fs.FS

	// root is the slash-separated, cleaned directory inside fsys.
	root string

	// location is the user-facing description of the root.
	location string

	metrics *Metrics
}

// newDirRoute creates a static route over a directory on disk. The
// directory must exist.
func newDirRoute(dir string, metrics *Metrics) (*staticRoute, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidStaticRoot, dir, err)
	}

	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidStaticRoot, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidStaticRoot, dir)
	}

	return &staticRoute{
		fsys:     os.DirFS(absDir),
		root:     ".",
		location: absDir,
		metrics:  metrics,
	}, nil
}

// newFSRoute creates a static route over a bundled file system. Existence of
// dir is checked per request.
func newFSRoute(fsys fs.FS, dir string, metrics *Metrics) (*staticRoute, error) {
	if fsys == nil {
		return nil, fmt.Errorf("%w: nil file system", ErrInvalidStaticRoot)
	}

	root := path.Clean(strings.TrimPrefix(dir, "/"))
	if root == "" {
		root = "."
	}
	if !fs.ValidPath(root) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStaticRoot, dir)
	}

	return &staticRoute{
		fsys:     fsys,
		root:     root,
		location: "fs:" + root,
		metrics:  metrics,
	}, nil
}

// Apply implements Filter.
func (s *staticRoute) Apply(uri string, ex Exchange) (Match, error) {
	if strings.HasSuffix(uri, "/") {
		return s.Apply(uri+indexDocument, ex)
	}

	for _, ext := range staticExtensions {
		match, err := s.serve(path.Join(s.root, uri+ext), ex)
		if err != nil || match != WrongURL {
			return match, err
		}
	}

	return WrongURL, nil
}

// serve tries a single candidate path.
func (s *staticRoute) serve(candidate string, ex Exchange) (Match, error) {
	if !s.contains(candidate) {
		s.metrics.recordTraversalRejected()
		return WrongURL, nil
	}

	info, err := fs.Stat(s.fsys, candidate)
	if err != nil || info.IsDir() {
		return WrongURL, nil
	}

	if !strings.EqualFold(ex.Method(), http.MethodGet) {
		return WrongMethod, nil
	}

	if err := s.write(candidate, info, ex); err != nil {
		return Success, err
	}

	s.metrics.recordStaticServed()
	return Success, nil
}

// contains reports whether candidate is the root or lies below it,
// comparing whole path components.
func (s *staticRoute) contains(candidate string) bool {
	if s.root == "." {
		return candidate != ".." && !strings.HasPrefix(candidate, "../")
	}
	return candidate == s.root || strings.HasPrefix(candidate, s.root+"/")
}

func (s *staticRoute) write(candidate string, info fs.FileInfo, ex Exchange) error {
	file, err := s.fsys.Open(candidate)
	if err != nil {
		return fmt.Errorf("opening %s: %w", candidate, err)
	}
	defer func() { _ = file.Close() }()

	content, ok := file.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(file)
		if err != nil {
			return fmt.Errorf("reading %s: %w", candidate, err)
		}
		content = bytes.NewReader(data)
	}

	return ex.Write(http.StatusOK, &StaticFile{
		Name:    path.Base(candidate),
		ModTime: info.ModTime(),
		Content: content,
	})
}

// String describes the root for route listings.
func (s *staticRoute) String() string {
	return s.location
}
