package table

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// ErrFileNotFound is returned when an input table cannot be located.
var ErrFileNotFound = errors.New("file not found")

// missingTokens are the spellings of "no value" found in upstream files.
var missingTokens = map[string]bool{
	"":     true,
	"None": true,
	"nan":  true,
	"NaN":  true,
	"NA":   true,
	"<NA>": true,
}

// Normalize maps every upstream spelling of a missing value to "".
// Readers call it once per cell; nothing downstream re-checks.
func Normalize(v string) string {
	v = strings.TrimSpace(v)
	if missingTokens[v] {
		return ""
	}
	return v
}

// ReadOptions controls how a tab-separated file is parsed.
type ReadOptions struct {
	// Header takes column names from the first data line.
	Header bool
	// Columns names the columns of headerless files. Ignored when Header is set.
	Columns []string
	// Comment skips lines starting with this prefix.
	Comment string
	// Raw keeps cells as read, without Normalize.
	Raw bool
}

// Open opens a file for reading, transparently decompressing .gz files.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrFileNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "gzip %s", path)
	}
	return &gzipFile{Reader: zr, file: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	zerr := g.Reader.Close()
	if err := g.file.Close(); err != nil {
		return err
	}
	return zerr
}

// ReadFile reads a tab-separated file into a table.
func ReadFile(path string, opts ReadOptions) (*Table, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	t, err := Read(rc, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return t, nil
}

// Read parses tab-separated lines. Lines are split on tabs only; quotes
// carry no meaning.
func Read(r io.Reader, opts ReadOptions) (*Table, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	header := opts.Columns
	var rows [][]string
	needHeader := opts.Header

	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimRight(line, "\r\n")
			if line != "" && (opts.Comment == "" || !strings.HasPrefix(line, opts.Comment)) {
				cells := strings.Split(line, "\t")
				if needHeader {
					header = make([]string, len(cells))
					for i, c := range cells {
						header[i] = strings.TrimSpace(c)
					}
					needHeader = false
				} else {
					if !opts.Raw {
						for i := range cells {
							cells[i] = Normalize(cells[i])
						}
					}
					rows = append(rows, cells)
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if len(header) == 0 {
		if len(rows) == 0 {
			return New(nil, nil), nil
		}
		return nil, errors.New("no column names for headerless table")
	}
	return New(header, rows), nil
}

// Write writes the header and rows as tab-separated lines. Tabs and line
// breaks inside cells are replaced with spaces.
func Write(w io.Writer, t *Table) error {
	bw := bufio.NewWriterSize(w, 1<<20)
	if err := WriteRow(bw, t.Header); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := WriteRow(bw, row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

var cellReplacer = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

// WriteRow writes one tab-separated line.
func WriteRow(w io.StringWriter, cells []string) error {
	for i, c := range cells {
		if i > 0 {
			if _, err := w.WriteString("\t"); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(cellReplacer.Replace(c)); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\n")
	return err
}

// WriteFile writes a table to path, replacing any previous file.
func WriteFile(path string, t *Table) error {
	return AtomicWrite(path, func(w io.Writer) error {
		return Write(w, t)
	})
}

// AtomicWrite writes through a temporary file in the target directory and
// renames it into place, so readers never see a half-written file.
func AtomicWrite(path string, fn func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrapf(err, "create temp for %s", path)
	}
	defer os.Remove(tmp.Name())

	if err := fn(tmp); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return errors.Wrapf(err, "chmod %s", path)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "rename %s", path)
}

// FindFile returns the first regular file in dir, by name, whose name
// contains pattern. Source releases carry the version in the file name, so
// inputs are located by pattern rather than exact name.
func FindFile(dir, pattern string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrapf(ErrFileNotFound, "directory %s", dir)
		}
		return "", errors.Wrapf(err, "list %s", dir)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && strings.Contains(e.Name(), pattern) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", errors.Wrapf(ErrFileNotFound, "no file matching %q in %s", pattern, dir)
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0]), nil
}
