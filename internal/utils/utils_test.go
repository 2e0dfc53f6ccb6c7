package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIgnoreSet(t *testing.T) {
	set, err := CompileIgnore([]string{"# comment", "out/", "testcasesupport", "*.gen.c", "docs/**/*.c", ""})
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{"out", true},
		{"out/a.c", true},
		{"outer/a.c", false},
		{"src/testcasesupport/io.c", true},
		{"x.gen.c", true},
		{"deep/nested/x.gen.c", true},
		{"docs/a/b/example.c", true},
		{"src/main.c", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, set.Match(tt.path), tt.path)
	}

	var nilSet *IgnoreSet
	assert.False(t, nilSet.Match("a.c"))
}

func TestGetAllSourceFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.c", "int b;")
	writeFile(t, root, "a/A.C", "int a;")
	writeFile(t, root, "a/inc.h", "int h;")
	writeFile(t, root, "notes.txt", "")
	writeFile(t, root, ".git/objects/x.c", "")
	writeFile(t, root, "skipme/y.c", "")
	writeFile(t, root, "gen/z.c", "")
	writeFile(t, root, ".gitignore", "skipme/\n# comment\n!keep.c\n")

	files, err := GetAllSourceFiles(root, []string{".c"}, "gen/")
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		r, err := filepath.Rel(root, f)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{"a/A.C", "b.c"}, rel)

	files, err = GetAllSourceFiles(root, []string{".c", ".h"})
	require.NoError(t, err)
	assert.Len(t, files, 4)
}

func TestGetAllSourceFilesMissingRoot(t *testing.T) {
	_, err := GetAllSourceFiles(filepath.Join(t.TempDir(), "nope"), []string{".c"})
	assert.Error(t, err)
}

func TestHashContent(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", HashContent(""))
	assert.Len(t, HashContent("int main(void) { return 0; }"), 64)
}

func TestNormalizeProjectRoot(t *testing.T) {
	root := t.TempDir()
	got, err := NormalizeProjectRoot(root + string(filepath.Separator) + ".")
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(want), got)

	file := filepath.Join(root, "f.c")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = NormalizeProjectRoot(file)
	assert.Error(t, err)

	_, err = NormalizeProjectRoot(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestComputeProjectID(t *testing.T) {
	a, err := ComputeProjectID("/src/project")
	require.NoError(t, err)
	b, err := ComputeProjectID("/src/project/")
	require.NoError(t, err)
	c, err := ComputeProjectID("/src/other")
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	_, err = ComputeProjectID("  ")
	assert.Error(t, err)
}

func TestUserStateDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	dir, err := UserStateDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".securecode"), dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
