package model

import "time"

// Category is the filename-derived document classification.
type Category string

const (
	CategoryMainContract Category = "Main Contract"
	CategoryBond         Category = "Bond"
	CategoryCertificate  Category = "Certificate"
	CategoryProposal     Category = "Proposal"
	CategoryExhibit      Category = "Exhibit"
	CategoryAffidavit    Category = "Affidavit"
	CategoryGeneral      Category = "General"
)

// SelectedFile is a local file picked for upload. It only lives between the
// folder pick and the upload (or start over).
type SelectedFile struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"type"`
	LastModified time.Time `json:"last_modified"`
	Category     Category  `json:"category"`
	Selected     bool      `json:"selected"`
}
