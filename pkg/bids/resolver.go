// Package bids exposes a directory tree of NIfTI files rooted at a
// sandbox directory. Every relative path is resolved against the root and
// rejected if it escapes it, including through symlinks.
package bids

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"augplayground/internal/apperror"
	"augplayground/pkg/ingest"
)

// Entry is one listed directory or NIfTI file. Path is relative to the
// root, using forward slashes.
type Entry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Path string `json:"path"`
	Size *int64 `json:"size,omitempty"`
}

// Listing is the content of one directory
type Listing struct {
	Path    string  `json:"path"`
	Entries []Entry `json:"entries"`
}

// Resolver resolves client paths inside Root
type Resolver struct {
	Root string
}

// NewResolver creates a resolver for root
func NewResolver(root string) *Resolver {
	return &Resolver{Root: root}
}

// canonicalRoot returns the absolute, symlink-free root. A missing root is
// NotFound.
func (r *Resolver) canonicalRoot() (string, error) {
	abs, err := filepath.Abs(r.Root)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperror.NotFound("BIDS directory not found.")
		}
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.IsDir() {
		return "", apperror.NotFound("BIDS directory not found.")
	}
	return resolved, nil
}

// CheckRoot returns NotFound when the root directory is missing
func (r *Resolver) CheckRoot() error {
	_, err := r.canonicalRoot()
	return err
}

// Resolve maps rel to an absolute path under the root. An empty rel is
// the root itself. Symlinks are followed as far as the path exists; the
// result must stay under the canonical root or InvalidInput is returned.
func (r *Resolver) Resolve(rel string) (string, error) {
	root, err := r.canonicalRoot()
	if err != nil {
		return "", err
	}
	if rel == "" {
		rel = "."
	}
	if filepath.IsAbs(rel) {
		return "", apperror.InvalidInput("Invalid BIDS path.")
	}

	target := evalExisting(filepath.Join(root, rel))
	inside, err := filepath.Rel(root, target)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", apperror.InvalidInput("Invalid BIDS path.")
	}
	return target, nil
}

// evalExisting resolves symlinks in the longest existing prefix of path
// and appends the rest unchanged
func evalExisting(path string) string {
	path = filepath.Clean(path)
	var rest []string
	for cur := path; ; {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			parts := append([]string{resolved}, rest...)
			return filepath.Join(parts...)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
		cur = parent
	}
}

// relative returns target's path under root with forward slashes; the
// root itself is ""
func relative(root, target string) string {
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

// Tree lists the directory at rel: subdirectories first, then NIfTI files,
// each group sorted by lowercase name. Dotfiles are skipped.
func (r *Resolver) Tree(rel string) (*Listing, error) {
	target, err := r.Resolve(rel)
	if err != nil {
		return nil, err
	}
	root, err := r.canonicalRoot()
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, apperror.NotFound("Path not found.")
	}
	if !info.IsDir() {
		return nil, apperror.InvalidInput("Path is not a directory.")
	}

	dirents, err := os.ReadDir(target)
	if err != nil {
		return nil, err
	}

	type item struct {
		entry Entry
		isDir bool
	}
	var items []item
	for _, d := range dirents {
		name := d.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(target, name)
		// stat follows symlinks so linked directories and files list as
		// what they point to
		fi, err := os.Stat(full)
		if err != nil {
			continue
		}
		switch {
		case fi.IsDir():
			items = append(items, item{Entry{Name: name, Type: "dir", Path: relative(root, full)}, true})
		case fi.Mode().IsRegular() && ingest.IsNIfTIName(name):
			size := fi.Size()
			items = append(items, item{Entry{Name: name, Type: "file", Path: relative(root, full), Size: &size}, false})
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].isDir != items[j].isDir {
			return items[i].isDir
		}
		return strings.ToLower(items[i].entry.Name) < strings.ToLower(items[j].entry.Name)
	})

	listing := &Listing{Path: relative(root, target), Entries: make([]Entry, 0, len(items))}
	for _, it := range items {
		listing.Entries = append(listing.Entries, it.entry)
	}
	return listing, nil
}

// File resolves rel to an existing NIfTI file. Missing paths and
// non-regular files are NotFound; other suffixes are InvalidInput.
func (r *Resolver) File(rel string) (string, error) {
	target, err := r.Resolve(rel)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(target)
	if err != nil || !info.Mode().IsRegular() {
		return "", apperror.NotFound("File not found.")
	}
	if !ingest.IsNIfTIName(target) {
		return "", apperror.InvalidInput("Only .nii or .nii.gz supported.")
	}
	return target, nil
}
