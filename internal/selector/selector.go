// Package selector resolves what a run uploads: local files under an include
// list, or a published package reference.
package selector

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"verifyctl/pkg/api"
)

// MaxFileSize is the largest file that is uploaded; bigger files are skipped.
const MaxFileSize = 500 * 1024

// DependencyDir is never walked into.
const DependencyDir = "node_modules"

// ErrNoFiles is returned when nothing under the include list can be uploaded.
var ErrNoFiles = errors.New("no files matched the include list")

var sourceExtensions = map[string]bool{
	".js": true, ".mjs": true, ".cjs": true, ".jsx": true,
	".ts": true, ".mts": true, ".cts": true, ".tsx": true,
	".py": true, ".go": true, ".rs": true, ".rb": true,
	".java": true, ".kt": true, ".php": true, ".cs": true,
	".json": true, ".toml": true, ".yaml": true, ".yml": true,
}

// Select walks include (paths relative to baseDir, files or directories) and
// returns the files to upload, sorted by path. warn is called once for every
// file skipped for size and may be nil.
func Select(baseDir string, include []string, warn func(string)) ([]api.File, error) {
	if warn == nil {
		warn = func(string) {}
	}
	if len(include) == 0 {
		include = []string{"."}
	}

	root, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", baseDir, err)
	}

	seen := map[string]bool{}
	var files []api.File

	add := func(abs string, size int64) error {
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", abs, err)
		}
		rel = filepath.ToSlash(rel)
		if seen[rel] {
			return nil
		}
		if size > MaxFileSize {
			warn(fmt.Sprintf("skipping %s: %d KB exceeds the %d KB limit", rel, size/1024, MaxFileSize/1024))
			seen[rel] = true
			return nil
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		seen[rel] = true
		files = append(files, api.File{
			Path:    rel,
			Content: base64.StdEncoding.EncodeToString(data),
		})
		return nil
	}

	for _, entry := range include {
		path := entry
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}

		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("include path %q: %w", entry, err)
		}

		if !info.IsDir() {
			if skipName(info.Name()) {
				continue
			}
			if err := add(path, info.Size()); err != nil {
				return nil, err
			}
			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p != path && skipName(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			return add(p, fi.Size())
		})
		if err != nil {
			return nil, fmt.Errorf("walk %q: %w", entry, err)
		}
	}

	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func skipName(name string) bool {
	return strings.HasPrefix(name, ".") || name == DependencyDir
}

// IsPackageRef reports whether arg looks like a package reference rather
// than a file path.
func IsPackageRef(arg string) bool {
	if arg == "" {
		return false
	}
	if strings.HasPrefix(arg, "@") {
		return true
	}
	if arg == "." || arg == ".." {
		return false
	}
	if strings.ContainsAny(arg, `/\`) {
		return false
	}
	return !sourceExtensions[strings.ToLower(filepath.Ext(arg))]
}

// ParseArg validates the positional argument of the run command.
func ParseArg(arg string) (string, error) {
	if !IsPackageRef(arg) {
		return "", fmt.Errorf("%q looks like a file path; select local files with --include instead", arg)
	}
	return arg, nil
}
