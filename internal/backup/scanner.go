package backup

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScanDir returns the backup files under path in name order. A path naming
// a file is returned as is.
func ScanDir(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // intentionally skip unreadable entries
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(p), ".jsonl") {
			files = append(files, p)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// FileName returns the default backup file name for a timestamp string.
func FileName(stamp string) string {
	return "fintrack-" + stamp + ".jsonl"
}
