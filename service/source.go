package service

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AnTengye/contractchat/model"
)

// FileSource lists and opens the files a user can pick for upload. Paths are
// slash-separated and start with the picked directory's name.
type FileSource interface {
	Name() string
	List(ctx context.Context, root string) ([]model.SelectedFile, error)
	Open(ctx context.Context, root, relPath string) (io.ReadCloser, error)
}

// LocalSource picks files from a directory on disk.
type LocalSource struct{}

func (LocalSource) Name() string { return "local" }

func (LocalSource) List(ctx context.Context, root string) ([]model.SelectedFile, error) {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory: %w", err)
	}
	if !info.IsDir() {
		return nil, validationError("%s is not a directory", root)
	}
	base := filepath.Base(root)

	var files []model.SelectedFile
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && p != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, model.SelectedFile{
			Name:         d.Name(),
			Path:         path.Join(base, filepath.ToSlash(rel)),
			Size:         fi.Size(),
			ContentType:  mime.TypeByExtension(filepath.Ext(d.Name())),
			LastModified: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (LocalSource) Open(_ context.Context, root, relPath string) (io.ReadCloser, error) {
	root = filepath.Clean(root)
	rel := path.Clean(relPath)
	base := filepath.Base(root)
	if rel != base && !strings.HasPrefix(rel, base+"/") {
		return nil, validationError("%s is outside %s", relPath, root)
	}
	return os.Open(filepath.Join(filepath.Dir(root), filepath.FromSlash(rel)))
}
