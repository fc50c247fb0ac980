package entities

import "time"

// ChangelogEntry is a single commit considered for the release notes
type ChangelogEntry struct {
	Hash    string    `json:"hash"`
	Subject string    `json:"subject"`
	Time    time.Time `json:"time"`
}

// ShortHash returns the abbreviated commit hash
func (e ChangelogEntry) ShortHash() string {
	if len(e.Hash) > 7 {
		return e.Hash[:7]
	}
	return e.Hash
}

// ReleaseMetadata describes a fully assembled release in dist/
type ReleaseMetadata struct {
	ProjectName   string           `json:"project_name"`
	Version       string           `json:"version"`
	Tag           string           `json:"tag"`
	Prerelease    bool             `json:"prerelease"`
	Snapshot      bool             `json:"snapshot"`
	Archives      []Archive        `json:"archives"`
	ChecksumFile  string           `json:"checksum_file"`
	SignatureFile string           `json:"signature_file,omitempty"`
	Changelog     []ChangelogEntry `json:"changelog"`
	NotesFile     string           `json:"notes_file"`
	Footer        string           `json:"footer,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}
