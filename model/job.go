package model

import (
	"regexp"
	"time"
)

// Job groups the documents uploaded from one directory.
type Job struct {
	ID            string    `json:"id,omitempty"`
	JobNumber     string    `json:"job_number"`
	JobName       string    `json:"job_name"`
	ClientName    string    `json:"client_name"`
	DocumentCount int       `json:"document_count"`
	LastUpdated   time.Time `json:"last_updated"`
}

var leadingDigits = regexp.MustCompile(`^(\d+)`)

// ShortNumber returns the leading digits of the job number, so
// "2217 - Cambridge St. D6" becomes "2217". Numbers without a numeric
// prefix are returned unchanged.
func (j Job) ShortNumber() string {
	if m := leadingDigits.FindStringSubmatch(j.JobNumber); m != nil {
		return m[1]
	}
	return j.JobNumber
}

// Document is a single uploaded file within a job.
type Document struct {
	FileKey        string    `json:"file_key"`
	Filename       string    `json:"filename"`
	Folder         string    `json:"folder"`
	IsMainContract bool      `json:"is_main_contract"`
	Size           int64     `json:"size"`
	UploadDate     time.Time `json:"upload_date"`
}

// SelectedDocument is what the browser hands to the chat pane.
type SelectedDocument struct {
	JobNumber   string `json:"job_number"`
	DocumentID  string `json:"document_id"`
	DisplayName string `json:"display_name"`
	FileKey     string `json:"file_key"`
}
