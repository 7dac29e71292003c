package storage

import (
	"bytes"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// FileDiff compares a file on disk with freshly rendered content, line by
// line.
type FileDiff struct {
	Path     string
	Equal    bool
	Inserted int
	Deleted  int
	// Lines holds the changed lines prefixed with "+" (rendered only) or
	// "-" (on disk only), in file order.
	Lines []string
}

// DiffFile compares path with rendered. A missing file compares as empty.
func DiffFile(path string, rendered []byte) (FileDiff, error) {
	onDisk, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return FileDiff{}, errors.Wrapf(err, "read %s", path)
	}
	d := DiffLines(string(onDisk), string(rendered))
	d.Path = path
	return d, nil
}

// DiffLines diffs two texts at line granularity.
func DiffLines(before, after string) FileDiff {
	if before == after {
		return FileDiff{Equal: true}
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	out := FileDiff{}
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		default:
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.Lines = append(out.Lines, prefix+strings.TrimSuffix(line, "\n"))
			if prefix == "+" {
				out.Inserted++
			} else {
				out.Deleted++
			}
		}
	}
	return out
}

// Render writes with fn into memory.
func Render(fn func(w *bytes.Buffer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
