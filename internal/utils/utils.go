package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

var excludedDirs = map[string]bool{
	".git":        true,
	".svn":        true,
	".hg":         true,
	"vendor":      true,
	"build":       true,
	"__pycache__": true,
	".venv":       true,
	".securecode": true,
}

// stateDirName mirrors config.StateDirName; utils sits below config.
const stateDirName = ".securecode"

// IgnoreSet is a compiled list of .gitignore-style patterns.
type IgnoreSet struct {
	dirs  []string
	globs []glob.Glob
	names map[string]bool
}

// CompileIgnore compiles patterns. Directory patterns end in "/", bare names
// match any path segment, anything else is a root-relative glob where "*" does
// not cross "/" and "**" does.
func CompileIgnore(patterns []string) (*IgnoreSet, error) {
	set := &IgnoreSet{names: make(map[string]bool)}
	for _, raw := range patterns {
		p := strings.TrimSpace(filepath.ToSlash(raw))
		p = strings.TrimPrefix(p, "./")
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		if strings.HasSuffix(p, "/") {
			set.dirs = append(set.dirs, strings.TrimSuffix(p, "/"))
			continue
		}
		if !strings.Contains(p, "/") && !strings.ContainsAny(p, "*?[{") {
			set.names[p] = true
			continue
		}
		g, err := glob.Compile(strings.TrimPrefix(p, "/"), '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", raw, err)
		}
		set.globs = append(set.globs, g)
		// "*.o" should also hit nested files.
		if !strings.Contains(p, "/") {
			nested, err := glob.Compile("**/"+p, '/')
			if err != nil {
				return nil, fmt.Errorf("invalid ignore pattern %q: %w", raw, err)
			}
			set.globs = append(set.globs, nested)
		}
	}
	return set, nil
}

// Match reports whether the slash-separated root-relative path is ignored.
func (s *IgnoreSet) Match(relPath string) bool {
	if s == nil {
		return false
	}
	relPath = strings.TrimPrefix(filepath.ToSlash(strings.TrimSpace(relPath)), "./")
	if relPath == "" || relPath == "." {
		return false
	}
	for _, dir := range s.dirs {
		if relPath == dir || strings.HasPrefix(relPath, dir+"/") {
			return true
		}
	}
	for _, seg := range strings.Split(relPath, "/") {
		if s.names[seg] {
			return true
		}
	}
	for _, g := range s.globs {
		if g.Match(relPath) {
			return true
		}
	}
	return false
}

// GetAllSourceFiles walks rootPath and returns the files whose extension is in
// exts (case-insensitive), honouring the root .gitignore plus extra ignore
// patterns. The result is sorted so callers see a stable order.
func GetAllSourceFiles(rootPath string, exts []string, extraIgnore ...string) ([]string, error) {
	patterns := append(loadGitIgnorePatterns(rootPath), extraIgnore...)
	ignore, err := CompileIgnore(patterns)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(exts))
	for _, e := range exts {
		wanted[strings.ToLower(e)] = true
	}

	var files []string
	err = filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, relErr := filepath.Rel(rootPath, path)
		if relErr != nil {
			relPath = path
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if path != rootPath && (excludedDirs[d.Name()] || ignore.Match(relPath)) {
				return filepath.SkipDir
			}
			return nil
		}

		if ignore.Match(relPath) {
			return nil
		}
		if wanted[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

func HashContent(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

func NormalizeQuery(query string) string {
	return strings.TrimSpace(query)
}

// NormalizeProjectRoot returns the absolute, symlink-resolved form of root.
func NormalizeProjectRoot(root string) (string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return filepath.Clean(abs), nil
}

// ComputeProjectID fingerprints a normalized project root.
func ComputeProjectID(normalizedRoot string) (string, error) {
	root := strings.TrimSpace(normalizedRoot)
	if root == "" {
		return "", fmt.Errorf("empty project root")
	}
	key := filepath.ToSlash(filepath.Clean(root))
	if runtime.GOOS == "windows" {
		key = strings.ToLower(key)
	}
	return HashContent(key)[:32], nil
}

// UserStateDir returns ~/.securecode, creating it if needed.
func UserStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, stateDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// loadGitIgnorePatterns reads the root-level .gitignore (if present) and
// returns a list of non-empty, non-comment patterns.
func loadGitIgnorePatterns(rootPath string) []string {
	data, err := os.ReadFile(filepath.Join(rootPath, ".gitignore"))
	if err != nil {
		return nil
	}

	var patterns []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}
