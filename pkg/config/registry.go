package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// ErrUnknownSAB is returned for a source identifier the registry does not
// list.
var ErrUnknownSAB = errors.New("unknown SAB")

// ErrUnsupportedConverter is returned when a SAB maps to a converter this
// binary does not implement.
var ErrUnsupportedConverter = errors.New("unsupported converter")

// ConverterGENCODE is the converter for GTF annotation sources.
const ConverterGENCODE = "gencode"

// SABEntry is one registry entry.
type SABEntry struct {
	Name         string
	Converter    string
	Config       string
	Prerequisite string
}

// Registry maps source identifiers to converters. The file looks like:
//
//	{"sabs": {"GENCODE": {"converter": "gencode", "config": "gencode.yaml", "prerequisite": "GENCODE_VS"}}}
type Registry struct {
	path string
	data []byte
}

// LoadRegistry reads a registry file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read registry %s", path)
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.Errorf("registry %s is not valid JSON", path)
	}
	if !gjson.GetBytes(data, "sabs").IsObject() {
		return nil, errors.Errorf("registry %s has no sabs object", path)
	}
	return &Registry{path: path, data: data}, nil
}

// Names lists the registered SABs, upper-cased and sorted.
func (r *Registry) Names() []string {
	var out []string
	gjson.GetBytes(r.data, "sabs").ForEach(func(key, _ gjson.Result) bool {
		out = append(out, strings.ToUpper(key.String()))
		return true
	})
	sort.Strings(out)
	return out
}

// Lookup finds sab, ignoring case. The entry's config path is resolved
// against the registry file's directory.
func (r *Registry) Lookup(sab string) (SABEntry, error) {
	want := strings.ToUpper(strings.TrimSpace(sab))
	var (
		entry SABEntry
		found bool
	)
	gjson.GetBytes(r.data, "sabs").ForEach(func(key, value gjson.Result) bool {
		if strings.ToUpper(key.String()) != want {
			return true
		}
		entry = SABEntry{
			Name:         want,
			Converter:    value.Get("converter").String(),
			Config:       value.Get("config").String(),
			Prerequisite: value.Get("prerequisite").String(),
		}
		found = true
		return false
	})
	if !found {
		return SABEntry{}, errors.Wrapf(ErrUnknownSAB, "%q (known: %s)", sab, strings.Join(r.Names(), ", "))
	}
	if entry.Converter != ConverterGENCODE {
		return SABEntry{}, errors.Wrapf(ErrUnsupportedConverter, "%s uses %q", entry.Name, entry.Converter)
	}
	if entry.Config != "" && !filepath.IsAbs(entry.Config) {
		entry.Config = filepath.Join(filepath.Dir(r.path), entry.Config)
	}
	return entry, nil
}
