// Copyright (C) 2019-2025 Algorand, Inc.
// This file is part of ruleasm
//
// ruleasm is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// ruleasm is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with ruleasm.  If not, see <https://www.gnu.org/licenses/>.

package asm

import (
	"os"
	"path"
	"path/filepath"

	"github.com/algorand/go-deadlock"

	"github.com/algorand/ruleasm/diagn"
)

// FileServer supplies source text to the parser. Filenames use forward
// slashes regardless of platform. Implementations also serve as the
// diagn.SourceProvider for rendering excerpts after assembly.
type FileServer interface {
	Exists(filename string) bool
	ReadText(report *diagn.Report, span diagn.Span, filename string) (string, bool)
	SourceText(filename string) (string, bool)
}

// resolveRelative joins a filename found in an include directive with
// the directory of the including file.
func resolveRelative(fromFile string, filename string) string {
	if fromFile == "" {
		return path.Clean(filename)
	}
	return path.Clean(path.Join(path.Dir(fromFile), filename))
}

// MockFileServer keeps sources in memory, for tests and for assembling
// strings directly.
type MockFileServer struct {
	files map[string]string
}

// NewMockFileServer returns an empty in-memory file server.
func NewMockFileServer() *MockFileServer {
	return &MockFileServer{files: make(map[string]string)}
}

// Add registers the contents for filename, replacing any previous entry.
func (fs *MockFileServer) Add(filename string, contents string) {
	fs.files[path.Clean(filename)] = contents
}

// Exists implements FileServer.
func (fs *MockFileServer) Exists(filename string) bool {
	_, ok := fs.files[path.Clean(filename)]
	return ok
}

// ReadText implements FileServer.
func (fs *MockFileServer) ReadText(report *diagn.Report, span diagn.Span, filename string) (string, bool) {
	contents, ok := fs.files[path.Clean(filename)]
	if !ok {
		report.Errorf(span, "file not found: `%s`", filename)
		return "", false
	}
	return contents, true
}

// SourceText implements diagn.SourceProvider.
func (fs *MockFileServer) SourceText(filename string) (string, bool) {
	contents, ok := fs.files[path.Clean(filename)]
	return contents, ok
}

// DiskFileServer reads sources from the file system, rooted at a base
// directory. Files are cached on first read so diagnostics can show
// excerpts without re-reading.
type DiskFileServer struct {
	root string

	mu    deadlock.Mutex
	cache map[string]string
}

// NewDiskFileServer returns a file server rooted at dir.
func NewDiskFileServer(dir string) *DiskFileServer {
	return &DiskFileServer{
		root:  dir,
		cache: make(map[string]string),
	}
}

func (fs *DiskFileServer) diskPath(filename string) string {
	return filepath.Join(fs.root, filepath.FromSlash(path.Clean(filename)))
}

// Exists implements FileServer.
func (fs *DiskFileServer) Exists(filename string) bool {
	fs.mu.Lock()
	_, cached := fs.cache[path.Clean(filename)]
	fs.mu.Unlock()
	if cached {
		return true
	}
	info, err := os.Stat(fs.diskPath(filename))
	return err == nil && !info.IsDir()
}

// ReadText implements FileServer.
func (fs *DiskFileServer) ReadText(report *diagn.Report, span diagn.Span, filename string) (string, bool) {
	clean := path.Clean(filename)

	fs.mu.Lock()
	contents, cached := fs.cache[clean]
	fs.mu.Unlock()
	if cached {
		return contents, true
	}

	data, err := os.ReadFile(fs.diskPath(filename))
	if err != nil {
		report.Errorf(span, "cannot read file `%s`: %v", filename, err)
		return "", false
	}

	contents = string(data)
	fs.mu.Lock()
	fs.cache[clean] = contents
	fs.mu.Unlock()
	return contents, true
}

// SourceText implements diagn.SourceProvider. Only files already read
// during parsing are served.
func (fs *DiskFileServer) SourceText(filename string) (string, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	contents, ok := fs.cache[path.Clean(filename)]
	return contents, ok
}
