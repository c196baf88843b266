package calib

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hydrosat/patchseg/internal/fsutil"
)

// Coefficients project one sensor band onto the reference sensor's spectral
// response: Offset + Scale*x + Quadratic*x*x. Reflective bands carry no
// quadratic term.
type Coefficients struct {
	Offset    float64
	Scale     float64
	Quadratic float64
}

// Apply evaluates the adjustment polynomial at x.
func (c Coefficients) Apply(x float64) float64 {
	return c.Offset + c.Scale*x + c.Quadratic*x*x
}

// SBAF maps sensor -> band -> adjustment coefficients. It is immutable after
// LoadSBAF or ParseSBAF returns.
type SBAF struct {
	table map[string]map[string]Coefficients
}

// ParseSBAF decodes the sidecar JSON: {"sensor": {"BAND": [offset, scale, quadratic?]}}.
func ParseSBAF(data []byte) (*SBAF, error) {
	var raw map[string]map[string][]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse SBAF JSON: %w", err)
	}
	s := &SBAF{table: make(map[string]map[string]Coefficients, len(raw))}
	for sensor, bands := range raw {
		s.table[sensor] = make(map[string]Coefficients, len(bands))
		for band, vals := range bands {
			var c Coefficients
			switch len(vals) {
			case 2:
				c = Coefficients{Offset: vals[0], Scale: vals[1]}
			case 3:
				c = Coefficients{Offset: vals[0], Scale: vals[1], Quadratic: vals[2]}
			default:
				return nil, fmt.Errorf("SBAF %s/%s: want 2 or 3 coefficients, got %d", sensor, band, len(vals))
			}
			s.table[sensor][band] = c
		}
	}
	return s, nil
}

// LoadSBAF reads and parses the SBAF sidecar file.
func LoadSBAF(fs fsutil.FileSystem, path string) (*SBAF, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read SBAF file: %w", err)
	}
	s, err := ParseSBAF(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	diagf("Loaded SBAF table %s: sensors=%v", path, s.Sensors())
	return s, nil
}

// Coefficients returns the adjustment for sensor/band.
func (s *SBAF) Coefficients(sensor, band string) (Coefficients, error) {
	bands, ok := s.table[sensor]
	if !ok {
		return Coefficients{}, fmt.Errorf("SBAF has no sensor %q", sensor)
	}
	c, ok := bands[band]
	if !ok {
		return Coefficients{}, fmt.Errorf("SBAF sensor %q has no band %q", sensor, band)
	}
	return c, nil
}

// Sensors lists the sensor keys, sorted.
func (s *SBAF) Sensors() []string {
	out := make([]string, 0, len(s.table))
	for k := range s.table {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
