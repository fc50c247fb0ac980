package entities

// Archive formats supported by the archiver
const (
	FormatTarGz  = "tar.gz"
	FormatTarZst = "tar.zst"
	FormatZip    = "zip"
	FormatBinary = "binary"
)

// Archive is a packaged build output for one target
type Archive struct {
	ProjectName string `json:"project_name"`
	OS          string `json:"os"`
	Arch        string `json:"arch"`
	Format      string `json:"format"`

	Name     string `json:"name"` // rendered name without extension
	Path     string `json:"path"`
	Checksum string `json:"checksum,omitempty"`
	Size     int64  `json:"size"`
}

// Filename returns the archive file name including the format extension
func (a *Archive) Filename() string {
	if a.Format == FormatBinary || a.Format == "" {
		return a.Name
	}
	return a.Name + "." + a.Format
}
