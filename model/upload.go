package model

import "time"

// FileResult is the outcome of one file in an upload batch.
type FileResult struct {
	Filename string `json:"filename"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	FileKey  string `json:"file_key,omitempty"`
}

// UploadManifest reports a finished upload batch. Failed files are listed
// next to the successful ones; a partial failure does not undo the batch.
type UploadManifest struct {
	ID            string       `json:"id"`
	DirectoryName string       `json:"directory_name"`
	JobNumber     string       `json:"job_number,omitempty"`
	Results       []FileResult `json:"results"`
	CreatedAt     time.Time    `json:"created_at"`
}

func (m *UploadManifest) Succeeded() int {
	n := 0
	for _, r := range m.Results {
		if r.OK {
			n++
		}
	}
	return n
}

func (m *UploadManifest) Failed() []FileResult {
	var failed []FileResult
	for _, r := range m.Results {
		if !r.OK {
			failed = append(failed, r)
		}
	}
	return failed
}
