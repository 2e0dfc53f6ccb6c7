package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "securecode "))
}

func TestExtractCommand(t *testing.T) {
	path := writeSource(t, t.TempDir(), "a.c", "int one(void) { return 1; }\n\nint two(void)\n{\n\treturn 2;\n}\n")

	out, err := run(t, "extract", path)
	require.NoError(t, err)
	assert.Contains(t, out, "one\tlines 1-1")
	assert.Contains(t, out, "two\tlines 3-6")
	assert.Contains(t, out, "✓ 2 functions")

	out, err = run(t, "extract", "--json", path)
	require.NoError(t, err)
	var records []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "two", records[1]["name"])
	assert.EqualValues(t, 3, records[1]["start_line"])
}

func TestExtractCommandMissingFile(t *testing.T) {
	_, err := run(t, "extract", filepath.Join(t.TempDir(), "missing.c"))
	assert.Error(t, err)
}

func TestPrepareCommand(t *testing.T) {
	root := t.TempDir()
	body := strings.Repeat("    int pad = 0;\n", 5)
	writeSource(t, root, "s01/case_01.c",
		"void CWE190_Integer_Overflow__case_01_bad()\n{\n"+body+"}\n\n"+
			"static void goodG2B()\n{\n"+body+"}\n\n"+
			"static void good1() { }\n")

	outPath := filepath.Join(t.TempDir(), "dataset.jsonl")
	out, err := run(t, "prepare", "--root", root, "--out", outPath, "--workers", "2", "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved 2 labelled functions")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first struct {
		Code  string `json:"code"`
		Label int    `json:"label"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, 1, first.Label)
	assert.True(t, strings.HasPrefix(first.Code, "void CWE190_"))
}

func TestScanCommandMissingFile(t *testing.T) {
	_, err := run(t, "scan", filepath.Join(t.TempDir(), "missing.c"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was not found")
}
