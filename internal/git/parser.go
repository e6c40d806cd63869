package git

import (
	"strconv"
	"strings"
)

type diffParseState struct {
	diff        *Diff
	currentFile *FileDiff
	currentHunk *Hunk
	oldLine     int
	newLine     int
}

// ParseDiff parses the output of git diff. Unknown lines are ignored.
func ParseDiff(diffText string) (*Diff, error) {
	diff := &Diff{Files: make([]FileDiff, 0, strings.Count(diffText, "diff --git "))}
	state := &diffParseState{diff: diff}

	for line := range strings.SplitSeq(diffText, "\n") {
		if line == "" {
			continue
		}
		state.parseLine(strings.TrimSuffix(line, "\r"))
	}
	state.flushFile()

	diff.CalculateStats()
	return diff, nil
}

func (s *diffParseState) parseLine(line string) {
	if strings.HasPrefix(line, "diff --git ") {
		s.handleNewFile(line)
		return
	}
	if s.currentFile == nil {
		return
	}
	if strings.HasPrefix(line, "@@") {
		s.flushHunk()
		s.currentHunk = parseHunkHeader(line)
		s.oldLine, s.newLine = s.currentHunk.OldStart, s.currentHunk.NewStart
		return
	}
	if s.currentHunk == nil {
		s.handleFileStatus(line)
		return
	}
	s.handleDiffLine(line)
}

func (s *diffParseState) handleNewFile(line string) {
	s.flushFile()
	oldPath, newPath := parseDiffGitLine(line)
	s.currentFile = &FileDiff{Path: newPath, OldPath: oldPath, Status: FileModified}
}

func (s *diffParseState) handleFileStatus(line string) {
	switch {
	case strings.HasPrefix(line, "new file"):
		s.currentFile.Status = FileAdded
	case strings.HasPrefix(line, "deleted file"):
		s.currentFile.Status = FileDeleted
	case strings.HasPrefix(line, "rename from"):
		s.currentFile.Status = FileRenamed
	case strings.HasPrefix(line, "Binary files"):
		s.currentFile.IsBinary = true
	case strings.HasPrefix(line, "+++ b/"):
		s.currentFile.Path = line[len("+++ b/"):]
	}
}

func (s *diffParseState) handleDiffLine(line string) {
	l := Line{Type: LineContext, Content: line[1:]}
	switch line[0] {
	case '+':
		l.Type, l.NewNumber = LineAddition, s.newLine
		s.newLine++
		s.currentFile.Additions++
	case '-':
		l.Type, l.OldNumber = LineDeletion, s.oldLine
		s.oldLine++
		s.currentFile.Deletions++
	case ' ':
		l.OldNumber, l.NewNumber = s.oldLine, s.newLine
		s.oldLine++
		s.newLine++
	default:
		// "\ No newline at end of file"
		return
	}
	s.currentHunk.Lines = append(s.currentHunk.Lines, l)
}

func (s *diffParseState) flushHunk() {
	if s.currentHunk != nil {
		s.currentFile.Hunks = append(s.currentFile.Hunks, *s.currentHunk)
		s.currentHunk = nil
	}
}

func (s *diffParseState) flushFile() {
	if s.currentFile == nil {
		return
	}
	s.flushHunk()
	s.diff.Files = append(s.diff.Files, *s.currentFile)
	s.currentFile = nil
}

// parseDiffGitLine extracts the paths of "diff --git a/old b/new".
func parseDiffGitLine(line string) (oldPath, newPath string) {
	rest := strings.TrimPrefix(line, "diff --git ")
	idx := strings.Index(rest, " b/")
	if idx == -1 {
		return "", ""
	}
	return strings.TrimPrefix(rest[:idx], "a/"), rest[idx+3:]
}

// parseHunkHeader parses "@@ -1,10 +1,12 @@ context".
func parseHunkHeader(line string) *Hunk {
	hunk := &Hunk{Header: line, OldLines: 1, NewLines: 1}
	rest, ok := strings.CutPrefix(line, "@@ ")
	if !ok {
		return hunk
	}
	if end := strings.Index(rest, " @@"); end != -1 {
		rest = rest[:end]
	}
	oldRange, newRange, ok := strings.Cut(rest, " ")
	if !ok {
		return hunk
	}
	if r, ok := strings.CutPrefix(oldRange, "-"); ok {
		parseRange(r, &hunk.OldStart, &hunk.OldLines)
	}
	if r, ok := strings.CutPrefix(newRange, "+"); ok {
		parseRange(r, &hunk.NewStart, &hunk.NewLines)
	}
	return hunk
}

// parseRange parses "start,count" or "start".
func parseRange(s string, start, count *int) {
	first, second, hasCount := strings.Cut(s, ",")
	if v, err := strconv.Atoi(first); err == nil {
		*start = v
	}
	*count = 1
	if hasCount {
		if v, err := strconv.Atoi(second); err == nil {
			*count = v
		}
	}
}
