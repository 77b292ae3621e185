package service

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/AnTengye/contractchat/config"
	"github.com/AnTengye/contractchat/model"
)

// Selection is the set of files picked for the next upload. It holds file
// handles only; nothing is read until the upload streams them.
type Selection struct {
	mu     sync.Mutex
	source FileSource
	root   string
	files  []model.SelectedFile
}

func NewSelection() *Selection {
	return &Selection{}
}

// Pick replaces the current selection with every file under root, classified
// and selected.
func (s *Selection) Pick(ctx context.Context, source FileSource, root string) ([]model.SelectedFile, error) {
	if strings.TrimSpace(root) == "" {
		return nil, validationError("a directory is required")
	}
	files, err := source.List(ctx, root)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, validationError("no files found in %s", root)
	}
	for i := range files {
		files[i].Category = Classify(files[i].Name)
		files[i].Selected = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
	s.root = root
	s.files = files
	return cloneFiles(files), nil
}

func (s *Selection) Files() []model.SelectedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneFiles(s.files)
}

func (s *Selection) Toggle(index int) (model.SelectedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.files) {
		return model.SelectedFile{}, validationError("no file at index %d", index)
	}
	s.files[index].Selected = !s.files[index].Selected
	return s.files[index], nil
}

// ToggleAll deselects everything when all files are selected, otherwise
// selects everything.
func (s *Selection) ToggleAll() []model.SelectedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := true
	for _, f := range s.files {
		if !f.Selected {
			all = false
			break
		}
	}
	for i := range s.files {
		s.files[i].Selected = !all
	}
	return cloneFiles(s.files)
}

// StartOver discards the selection. Nothing has been sent to the backend at
// this point, so there is nothing to undo there.
func (s *Selection) StartOver() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = nil
	s.root = ""
	s.files = nil
}

// DirectoryName is the first path segment of the first picked file.
func (s *Selection) DirectoryName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.directoryName()
}

func (s *Selection) directoryName() string {
	if len(s.files) > 0 {
		if dir, _, ok := strings.Cut(s.files[0].Path, "/"); ok && dir != "" {
			return dir
		}
	}
	return config.DefaultDirectoryName
}

// batch is a snapshot of the selected files, detached from later edits.
type batch struct {
	source        FileSource
	root          string
	directoryName string
	files         []model.SelectedFile
}

func (s *Selection) snapshot() batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := batch{source: s.source, root: s.root, directoryName: s.directoryName()}
	for _, f := range s.files {
		if f.Selected {
			b.files = append(b.files, f)
		}
	}
	return b
}

func (b batch) parts(ctx context.Context) []UploadPart {
	parts := make([]UploadPart, 0, len(b.files))
	for _, f := range b.files {
		f := f
		parts = append(parts, UploadPart{
			Filename:    f.Name,
			ContentType: f.ContentType,
			Open: func() (io.ReadCloser, error) {
				return b.source.Open(ctx, b.root, f.Path)
			},
		})
	}
	return parts
}

func cloneFiles(files []model.SelectedFile) []model.SelectedFile {
	if files == nil {
		return []model.SelectedFile{}
	}
	out := make([]model.SelectedFile, len(files))
	copy(out, files)
	return out
}
