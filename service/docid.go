package service

import (
	"path"
	"regexp"
	"strings"
)

// uploadPrefixes match the tokens the backend prepends to stored files for
// each upload batch.
var uploadPrefixes = []*regexp.Regexp{
	regexp.MustCompile(`^\d{8}[_-]\d{6}[_-]`),
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}[-:]\d{2}[-:]\d{2}(?:\.\d+)?Z?[_-]`),
	regexp.MustCompile(`^\d{10,13}[_-]`),
	regexp.MustCompile(`^(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}[_-]`),
}

// NormalizeDocumentID reduces a stored file key or path to the bare document
// name: directories are dropped and upload prefixes stripped, repeatedly.
func NormalizeDocumentID(key string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(key), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	for {
		stripped := name
		for _, re := range uploadPrefixes {
			stripped = re.ReplaceAllString(stripped, "")
		}
		if stripped == name || stripped == "" {
			break
		}
		name = stripped
	}
	return name
}

// DisplayName is the human-facing name of a document.
func DisplayName(filename, fileKey string) string {
	if name := NormalizeDocumentID(filename); name != "" {
		return name
	}
	return NormalizeDocumentID(fileKey)
}
