package scene

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hydrosat/patchseg/internal/fsutil"
)

const (
	dataMarker   = "_data"
	dataSuffix   = "data.tif"
	labelsSuffix = "labels.tif"
	photoSuffix  = "photo.png"
)

// Files names the three files of one scene.
type Files struct {
	Name   string // data file base name
	Data   string
	Labels string
	Photo  string
}

// CompanionPaths derives the labels and photo paths for a data path by
// replacing its trailing "data.tif" (8 characters) with the companion suffixes.
func CompanionPaths(dataPath string) (labels, photo string, err error) {
	if len(dataPath) < len(dataSuffix) {
		return "", "", fmt.Errorf("data path %q shorter than %q", dataPath, dataSuffix)
	}
	stem := dataPath[:len(dataPath)-len(dataSuffix)]
	return stem + labelsSuffix, stem + photoSuffix, nil
}

// Discover lists the scenes in dir: every file whose name contains "_data",
// in filename order.
func Discover(fs fsutil.FileSystem, dir string) ([]Files, error) {
	names, err := fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list scene directory: %w", err)
	}
	var out []Files
	for _, name := range names {
		if !strings.Contains(name, dataMarker) {
			continue
		}
		data := filepath.Join(dir, name)
		labels, photo, err := CompanionPaths(data)
		if err != nil {
			return nil, err
		}
		out = append(out, Files{Name: name, Data: data, Labels: labels, Photo: photo})
	}
	diagf("Discovered %d scenes in %s", len(out), dir)
	return out, nil
}
