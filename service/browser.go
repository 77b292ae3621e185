package service

import (
	"context"
	"strings"
	"sync"

	"github.com/AnTengye/contractchat/model"
	"github.com/AnTengye/contractchat/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// JobView is the browser state after a toggle.
type JobView struct {
	JobNumber string           `json:"job_number"`
	Expanded  bool             `json:"expanded"`
	Documents []model.Document `json:"documents"`
}

// JobBrowser lists jobs and expands one job at a time. Documents are
// fetched again on every expansion; concurrent fetches for the same job
// share one request.
type JobBrowser struct {
	backend *BackendClient
	group   singleflight.Group

	mu        sync.Mutex
	jobs      []model.Job
	expanded  string
	documents []model.Document
}

func NewJobBrowser(backend *BackendClient) *JobBrowser {
	return &JobBrowser{backend: backend}
}

func (b *JobBrowser) Jobs(ctx context.Context) ([]model.Job, error) {
	jobs, err := b.backend.Jobs(ctx)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	b.mu.Lock()
	b.jobs = jobs
	b.mu.Unlock()
	return jobs, nil
}

// Toggle collapses jobNumber when it is expanded, otherwise expands it and
// fetches its documents.
func (b *JobBrowser) Toggle(ctx context.Context, jobNumber string) (*JobView, error) {
	if strings.TrimSpace(jobNumber) == "" {
		return nil, validationError("a job number is required")
	}

	b.mu.Lock()
	if b.expanded == jobNumber {
		b.expanded = ""
		b.documents = nil
		b.mu.Unlock()
		return &JobView{JobNumber: jobNumber, Documents: []model.Document{}}, nil
	}
	b.expanded = jobNumber
	b.documents = nil
	b.mu.Unlock()

	ctx = logger.With(ctx, logger.JobNumberKey, jobNumber)
	v, err, shared := b.group.Do(jobNumber, func() (any, error) {
		// joined callers must not inherit the first caller's cancellation
		return b.backend.JobContracts(context.WithoutCancel(ctx), jobNumber)
	})
	if shared {
		logger.Debug(ctx, "joined in-flight document fetch")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		if b.expanded == jobNumber {
			b.expanded = ""
		}
		return nil, err
	}
	docs, _ := v.([]model.Document)
	if docs == nil {
		docs = []model.Document{}
	}
	if b.expanded != jobNumber {
		// collapsed or switched while the fetch was running
		return &JobView{JobNumber: jobNumber, Documents: []model.Document{}}, nil
	}
	b.documents = docs
	return &JobView{JobNumber: jobNumber, Expanded: true, Documents: docs}, nil
}

// Reset forgets the listed jobs and collapses the expanded one. A fetch still
// running finds the job collapsed and discards its result.
func (b *JobBrowser) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs = nil
	b.expanded = ""
	b.documents = nil
}

// Expanded returns the currently expanded job view, if any.
func (b *JobBrowser) Expanded() *JobView {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.expanded == "" {
		return nil
	}
	docs := make([]model.Document, len(b.documents))
	copy(docs, b.documents)
	return &JobView{JobNumber: b.expanded, Expanded: true, Documents: docs}
}

// SelectDocument turns a listed document into the record the chat pane
// opens.
func (b *JobBrowser) SelectDocument(jobNumber string, doc model.Document) (model.SelectedDocument, error) {
	key := doc.FileKey
	if key == "" {
		key = doc.Filename
	}
	sel := model.SelectedDocument{
		JobNumber:   strings.TrimSpace(jobNumber),
		DocumentID:  NormalizeDocumentID(key),
		DisplayName: DisplayName(doc.Filename, doc.FileKey),
		FileKey:     doc.FileKey,
	}
	if sel.JobNumber == "" || sel.DocumentID == "" {
		return model.SelectedDocument{}, validationError("job number and document are required")
	}
	return sel, nil
}
