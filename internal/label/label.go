// Package label turns multi-class ground-truth rasters into binary target
// masks for a named class group.
package label

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hydrosat/patchseg/internal/raster"
)

// Class indices of the SPARCS-style ground truth.
const (
	ClassShadow          = 0
	ClassShadowOverWater = 1
	ClassWater           = 2
	ClassSnow            = 3
	ClassLand            = 4
	ClassCloud           = 5
	ClassFlooded         = 6
)

// ErrUnknownTarget matches any UnknownTargetError.
var ErrUnknownTarget = errors.New("unknown classification target")

// UnknownTargetError reports a class group name that is not in the table.
type UnknownTargetError struct {
	Name string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("unknown classification target %q (known: %s)", e.Name, strings.Join(Names(), ", "))
}

func (e *UnknownTargetError) Is(target error) bool { return target == ErrUnknownTarget }

// Target is a named group of source class indices that map to 1.
type Target struct {
	Name    string
	Classes []int
}

var targets = map[string][]int{
	"snow":   {ClassSnow},
	"cloud":  {ClassCloud},
	"shadow": {ClassShadow, ClassShadowOverWater},
}

// Lookup returns the class group registered under name.
func Lookup(name string) (Target, error) {
	classes, ok := targets[name]
	if !ok {
		return Target{}, &UnknownTargetError{Name: name}
	}
	out := make([]int, len(classes))
	copy(out, classes)
	return Target{Name: name, Classes: out}, nil
}

// Names lists the known class groups, sorted.
func Names() []string {
	names := make([]string, 0, len(targets))
	for n := range targets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Contains reports whether class v belongs to the group.
func (t Target) Contains(v float64) bool {
	for _, c := range t.Classes {
		if v == float64(c) {
			return true
		}
	}
	return false
}

// Binarize maps the raw class raster to {0,1}: 1 where the class belongs to
// t, 0 elsewhere. Values outside the class table, such as fill codes in
// 8- or 16-bit label rasters, are always 0. The input is left untouched.
func Binarize(labels *raster.Grid, t Target) *raster.Grid {
	out := labels.Clone()
	for i, v := range out.Data {
		if t.Contains(v) {
			out.Data[i] = 1
		} else {
			out.Data[i] = 0
		}
	}
	return out
}
