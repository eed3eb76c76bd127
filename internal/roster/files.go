package roster

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// SheetNamesFile lists the sheets of the workbook at path.
func SheetNamesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Source: path, Err: err}
	}
	defer f.Close()
	return SheetNames(f, filepath.Base(path))
}

// Discover returns the spreadsheets under dir, sorted. Office lock files
// ("~$name.xlsx") and hidden directories are skipped.
func Discover(dir string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && len(name) > 1 && name[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if len(name) > 1 && name[:2] == "~$" {
			return nil
		}
		if IsSpreadsheet(name) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(found)
	return found, nil
}
