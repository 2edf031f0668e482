// Package source turns paths and object-store prefixes into manifest.Source
// values for the engine. The engine itself never touches the disk or network.
package source

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"k8s.io/klog/v2"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/manifest"
)

// StdinPath is the path argument that selects standard input.
const StdinPath = "-"

// StdinSourceID is the source ID given to manifests read from standard input.
const StdinSourceID = "<stdin>"

// manifestExtensions are the file extensions picked up from directories.
// Files named explicitly on the command line are read regardless of extension.
var manifestExtensions = []string{".yaml", ".yml", ".json"}

// IsManifestFile reports whether name carries one of the manifest extensions.
func IsManifestFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range manifestExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Load reads every path in order. A directory contributes all manifest files
// beneath it in lexicographic order; a regular file contributes itself; "-"
// reads stdin once. A path that cannot be read fails the whole load.
func Load(paths []string, stdin io.Reader) ([]manifest.Source, error) {
	var out []manifest.Source
	stdinRead := false
	for _, p := range paths {
		if p == StdinPath {
			if stdinRead {
				return nil, fmt.Errorf("standard input given more than once")
			}
			stdinRead = true
			raw, err := io.ReadAll(stdin)
			if err != nil {
				return nil, fmt.Errorf("read standard input: %w", err)
			}
			out = append(out, manifest.Source{ID: StdinSourceID, Content: raw})
			continue
		}

		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", p, err)
		}
		if !info.IsDir() {
			src, err := readFile(p)
			if err != nil {
				return nil, err
			}
			out = append(out, src)
			continue
		}

		files, err := walkDir(p)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			src, err := readFile(f)
			if err != nil {
				return nil, err
			}
			out = append(out, src)
		}
	}
	return out, nil
}

// walkDir collects manifest files under root, sorted by slash-separated path
// so the order is the same on every platform.
func walkDir(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && IsManifestFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", root, err)
	}
	sort.Slice(files, func(i, j int) bool {
		return filepath.ToSlash(files[i]) < filepath.ToSlash(files[j])
	})
	klog.V(2).InfoS("Scanned manifest directory", "dir", root, "files", len(files))
	return files, nil
}

func readFile(path string) (manifest.Source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return manifest.Source{}, fmt.Errorf("read %q: %w", path, err)
	}
	return manifest.Source{ID: filepath.ToSlash(path), Content: raw}, nil
}
