// Package git lists the files and lines changed in a git repository so
// that a scan can be limited to new code.
package git

// Diff is a parsed unified diff.
type Diff struct {
	Files []FileDiff `json:"files"`
	Stats DiffStats  `json:"stats"`
}

// FileDiff is the part of a diff that touches one file.
type FileDiff struct {
	Path      string     `json:"path"`
	OldPath   string     `json:"old_path,omitempty"`
	Status    FileStatus `json:"status"`
	IsBinary  bool       `json:"is_binary"`
	Hunks     []Hunk     `json:"hunks"`
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
}

// FileStatus is the change git recorded for a file.
type FileStatus string

const (
	FileAdded    FileStatus = "added"
	FileModified FileStatus = "modified"
	FileDeleted  FileStatus = "deleted"
	FileRenamed  FileStatus = "renamed"
)

// Hunk is one "@@" section of a file diff.
type Hunk struct {
	Header   string `json:"header"`
	OldStart int    `json:"old_start"`
	OldLines int    `json:"old_lines"`
	NewStart int    `json:"new_start"`
	NewLines int    `json:"new_lines"`
	Lines    []Line `json:"lines"`
}

// Line is a single line of a hunk. NewNumber is set for context and
// added lines, OldNumber for context and deleted lines.
type Line struct {
	Type      LineType `json:"type"`
	Content   string   `json:"content"`
	OldNumber int      `json:"old_number,omitempty"`
	NewNumber int      `json:"new_number,omitempty"`
}

// LineType classifies a hunk line.
type LineType string

const (
	LineContext  LineType = "context"
	LineAddition LineType = "addition"
	LineDeletion LineType = "deletion"
)

// DiffStats summarizes a diff.
type DiffStats struct {
	FilesChanged int `json:"files_changed"`
	Additions    int `json:"additions"`
	Deletions    int `json:"deletions"`
}

// CalculateStats recomputes d.Stats from the file diffs.
func (d *Diff) CalculateStats() {
	d.Stats = DiffStats{FilesChanged: len(d.Files)}
	for _, f := range d.Files {
		d.Stats.Additions += f.Additions
		d.Stats.Deletions += f.Deletions
	}
}

// AddedLines returns the line numbers, in the new version of the file,
// of every added line.
func (f *FileDiff) AddedLines() []int {
	var out []int
	for _, h := range f.Hunks {
		for _, l := range h.Lines {
			if l.Type == LineAddition {
				out = append(out, l.NewNumber)
			}
		}
	}
	return out
}
