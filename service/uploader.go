package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AnTengye/contractchat/model"
	"github.com/AnTengye/contractchat/pkg/logger"
	"github.com/google/uuid"
)

// Uploader runs the premium-gated upload and analysis actions for the
// current selection.
type Uploader struct {
	backend   *BackendClient
	session   *Session
	premium   *PremiumReconciler
	selection *Selection
	manifests *ManifestStore
	now       func() time.Time
}

func NewUploader(backend *BackendClient, session *Session, premium *PremiumReconciler, selection *Selection, manifests *ManifestStore) *Uploader {
	return &Uploader{
		backend:   backend,
		session:   session,
		premium:   premium,
		selection: selection,
		manifests: manifests,
		now:       time.Now,
	}
}

// requirePremium checks the cached profile and, when it says no, gives the
// backend one chance to disagree. The backend still enforces the gate; this
// only saves a doomed request.
func (u *Uploader) requirePremium(ctx context.Context) error {
	if u.premium.HasPremium() {
		return nil
	}
	if u.premium.Refresh(ctx) {
		return nil
	}
	if !u.session.Authenticated() {
		return ErrUnauthorized
	}
	return ErrSubscriptionRequired
}

// gateError applies the local side effects of a premium-gated failure.
func (u *Uploader) gateError(ctx context.Context, action string, err error) error {
	if errors.Is(err, ErrSubscriptionRequired) {
		logger.Warn(ctx, "backend refused premium action", "action", action)
		u.session.RevokePremium()
	}
	return err
}

// Upload sends the selected files. A successful call always yields a
// manifest, even when some files failed. The selection is left alone so the
// results stay on screen until the user starts over.
func (u *Uploader) Upload(ctx context.Context) (*model.UploadManifest, error) {
	b := u.selection.snapshot()
	if len(b.files) == 0 {
		return nil, validationError("select at least one file to upload")
	}
	if err := u.requirePremium(ctx); err != nil {
		return nil, err
	}

	logger.Info(ctx, "uploading files", "directory", b.directoryName, "count", len(b.files), "source", b.source.Name())
	resp, skipped, err := u.backend.Upload(ctx, b.directoryName, b.parts(ctx))
	if err != nil {
		return nil, u.gateError(ctx, "upload", err)
	}

	manifest := buildManifest(b, resp, skipped)
	manifest.ID = uuid.NewString()
	manifest.CreatedAt = u.now()
	u.manifests.Save(manifest)

	logger.Info(logger.With(ctx, logger.JobNumberKey, manifest.JobNumber), "upload finished",
		"manifest_id", manifest.ID,
		"succeeded", manifest.Succeeded(),
		"failed", len(manifest.Failed()),
	)
	return manifest, nil
}

// buildManifest lists results in submission order. Files the backend did not
// mention are reported as failed. skipped is indexed like b.files.
func buildManifest(b batch, resp *UploadResponse, skipped map[int]error) *model.UploadManifest {
	uploaded := make(map[string][]UploadedFile)
	for _, f := range resp.UploadedFiles {
		uploaded[f.Filename] = append(uploaded[f.Filename], f)
	}
	failed := make(map[string][]FailedFile)
	for _, f := range resp.FailedFiles {
		failed[f.Filename] = append(failed[f.Filename], f)
	}

	dir := resp.DirectoryName
	if dir == "" {
		dir = b.directoryName
	}
	m := &model.UploadManifest{
		DirectoryName: dir,
		JobNumber:     resp.JobNumber,
		Results:       make([]model.FileResult, 0, len(b.files)),
	}
	for i, f := range b.files {
		r := model.FileResult{Filename: f.Name}
		switch {
		case skipped[i] != nil:
			r.Error = fmt.Sprintf("could not read file: %v", skipped[i])
		case len(uploaded[f.Name]) > 0:
			r.OK = true
			r.FileKey = uploaded[f.Name][0].FileKey
			uploaded[f.Name] = uploaded[f.Name][1:]
		case len(failed[f.Name]) > 0:
			r.Error = failed[f.Name][0].Error
			failed[f.Name] = failed[f.Name][1:]
		default:
			r.Error = "not acknowledged by the server"
		}
		m.Results = append(m.Results, r)
	}
	return m
}

// Analyze asks the backend to analyze the selected directory. The selection
// is kept so the user can upload afterwards.
func (u *Uploader) Analyze(ctx context.Context) (map[string]any, error) {
	b := u.selection.snapshot()
	if len(b.files) == 0 {
		return nil, validationError("select at least one file to analyze")
	}
	if err := u.requirePremium(ctx); err != nil {
		return nil, err
	}

	req := AnalyzeRequest{DirectoryPath: b.directoryName}
	for _, f := range b.files {
		req.Files = append(req.Files, AnalyzeFile{
			Name:         f.Name,
			Path:         f.Path,
			Size:         f.Size,
			Type:         f.ContentType,
			LastModified: f.LastModified.UnixMilli(),
		})
	}

	result, err := u.backend.Analyze(ctx, req)
	if err != nil {
		return nil, u.gateError(ctx, "analyze", err)
	}
	return result, nil
}
