package vocabulary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nodeTable = "node_id\tnode_namespace\tnode_label\tnode_definition\n" +
	"GENCODE:C1\tGENCODE_VS\tchr1\tchromosome 1\n" +
	"GENCODE:F1\tGENCODE_VS\tgene\tgene feature\n" +
	"GENCODE:C1b\tGENCODE_VS\tchr1\tduplicate\n" +
	"\tGENCODE_VS\torphan\tno id\n" +
	"GENCODE:S1\tGENCODE_VS\tpositive\tplus strand\n"

func TestLoadAndResolve(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, NodeFile), []byte(nodeTable), 0644))

	r, err := Load(dir, "GENCODE_VS", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, r.Len())

	tests := []struct {
		label string
		id    string
		ok    bool
	}{
		{"chr1", "GENCODE:C1", true},
		{"gene", "GENCODE:F1", true},
		{"positive", "GENCODE:S1", true},
		{"Chr1", "", false},
		{"chrZ", "", false},
		{"orphan", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		n, ok := r.Resolve(tt.label)
		assert.Equal(t, tt.ok, ok, "label %q", tt.label)
		assert.Equal(t, tt.id, n.ID, "label %q", tt.label)
	}

	assert.Equal(t, map[string]int{"chr1": 1}, r.DuplicateLabels())
}

func TestLoadMissingPrerequisite(t *testing.T) {
	_, err := Load(t.TempDir(), "GENCODE_VS", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingPrerequisite)
	assert.Contains(t, err.Error(), "GENCODE_VS")
}

func TestLoadMissingColumns(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, NodeFile), []byte("id\tlabel\nA\tb\n"), 0644))

	_, err := Load(dir, "GENCODE_VS", nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingPrerequisite)
}

func TestNewResolverFirstMatchWins(t *testing.T) {
	r := NewResolver([]Node{
		{ID: "A:1", Label: "x"},
		{ID: "A:2", Label: "x"},
		{ID: "A:3", Label: "x"},
	})
	n, ok := r.Resolve("x")
	require.True(t, ok)
	assert.Equal(t, "A:1", n.ID)
	assert.Equal(t, 2, r.DuplicateLabels()["x"])
}
