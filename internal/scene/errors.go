package scene

import (
	"errors"
	"fmt"
)

// ErrEmptyDataset is returned when no scene in the directory could be used.
var ErrEmptyDataset = errors.New("no usable scenes")

// MissingCompanionFileError reports a data raster without its labels or
// photo file. It is an expected condition in partially downloaded datasets.
type MissingCompanionFileError struct {
	Scene string
	Path  string
}

func (e *MissingCompanionFileError) Error() string {
	return fmt.Sprintf("scene %s: missing companion file %s", e.Scene, e.Path)
}

// UnreadableRasterError reports a raster that could not be opened, decoded
// or calibrated.
type UnreadableRasterError struct {
	Path string
	Err  error
}

func (e *UnreadableRasterError) Error() string {
	return fmt.Sprintf("unreadable raster %s: %v", e.Path, e.Err)
}

func (e *UnreadableRasterError) Unwrap() error { return e.Err }

// ShapeMismatchError reports rasters of one scene, or a scene and the
// composite, whose dimensions disagree.
type ShapeMismatchError struct {
	Scene      string
	What       string
	Rows, Cols int
	WantRows   int
	WantCols   int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("scene %s: %s is %dx%d, want %dx%d", e.Scene, e.What, e.Rows, e.Cols, e.WantRows, e.WantCols)
}

// expected reports whether err is a routine skip rather than a data fault.
func expected(err error) bool {
	var missing *MissingCompanionFileError
	return errors.As(err, &missing)
}
