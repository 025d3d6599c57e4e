// Package config loads the zone definition file.
//
// The file is JSON as written by the zone editor, or YAML. Both are decoded
// with the YAML decoder since JSON is a subset of YAML 1.2. Zones may be
// given either as a list or as a map keyed by numeric ids ("1", "2", ...),
// in which case they are ordered by key.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNoZones is returned when the file defines no zones.
	ErrNoZones = errors.New("no zones defined")
	// ErrDuplicateZone is returned when two zones share a name.
	ErrDuplicateZone = errors.New("duplicate zone name")
	// ErrInvalidZone wraps every per-zone validation failure.
	ErrInvalidZone = errors.New("invalid zone")
)

// Point is a boundary vertex in source-resolution pixels.
type Point struct {
	X Number `yaml:"x" json:"x"`
	Y Number `yaml:"y" json:"y"`
}

// Zone is one operator-defined region of interest.
type Zone struct {
	Name         string  `yaml:"name" json:"name"`
	Points       []Point `yaml:"points" json:"points"`
	MinimumX     Number  `yaml:"minimum_x" json:"minimum_x"`
	MinimumY     Number  `yaml:"minimum_y" json:"minimum_y"`
	Warmup       Number  `yaml:"warmup" json:"warmup"`
	Cooldown     Number  `yaml:"cooldown" json:"cooldown"`
	Continuation Number  `yaml:"continuation" json:"continuation"`
	UploadToS3   bool    `yaml:"upload_to_s3" json:"upload_to_s3"`
}

// File is the decoded zone configuration.
type File struct {
	S3Bucket string   `yaml:"s3_bucket" json:"s3_bucket"`
	Zones    ZoneList `yaml:"zones" json:"zones"`
}

// ZoneList accepts a sequence of zones or a mapping of id -> zone.
type ZoneList []Zone

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *ZoneList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var zones []Zone
		if err := node.Decode(&zones); err != nil {
			return err
		}
		*l = zones
		return nil
	case yaml.MappingNode:
		byKey := make(map[string]Zone)
		if err := node.Decode(&byKey); err != nil {
			return err
		}
		keys := make([]string, 0, len(byKey))
		for k := range byKey {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })

		zones := make([]Zone, 0, len(keys))
		for _, k := range keys {
			zones = append(zones, byKey[k])
		}
		*l = zones
		return nil
	default:
		return fmt.Errorf("line %d: zones must be a list or a map", node.Line)
	}
}

// lessKey orders numeric ids numerically and everything else lexically.
func lessKey(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}

// Number is a float that also accepts quoted numeric strings, which the
// zone editor emits for values typed into form fields.
type Number float64

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *Number) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(node.Value), 64)
	if err != nil {
		return fmt.Errorf("line %d: %q is not a number", node.Line, node.Value)
	}
	*n = Number(v)
	return nil
}

// Float returns the value as float64.
func (n Number) Float() float64 { return float64(n) }

// Int returns the value truncated toward zero.
func (n Number) Int() int { return int(n) }

// Load reads, decodes and validates a zone file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zone file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates zone file contents.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse zone file: %w", err)
	}
	if err := Validate(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the zone list for consistency.
func Validate(f *File) error {
	if len(f.Zones) == 0 {
		return ErrNoZones
	}

	seen := make(map[string]bool, len(f.Zones))
	for i, z := range f.Zones {
		name := strings.TrimSpace(z.Name)
		if name == "" {
			return fmt.Errorf("%w: zone #%d has no name", ErrInvalidZone, i+1)
		}
		if seen[name] {
			return fmt.Errorf("%w: %q", ErrDuplicateZone, name)
		}
		seen[name] = true

		if len(z.Points) < 3 {
			return fmt.Errorf("%w: %q: polygon must have at least 3 points, got %d", ErrInvalidZone, name, len(z.Points))
		}
		if z.MinimumX < 0 || z.MinimumY < 0 {
			return fmt.Errorf("%w: %q: minimum size must not be negative", ErrInvalidZone, name)
		}
		if z.Warmup <= 0 {
			return fmt.Errorf("%w: %q: warmup must be > 0", ErrInvalidZone, name)
		}
		if z.Cooldown <= 0 {
			return fmt.Errorf("%w: %q: cooldown must be > 0", ErrInvalidZone, name)
		}
		if z.Continuation < 1 {
			return fmt.Errorf("%w: %q: continuation must be >= 1", ErrInvalidZone, name)
		}
	}
	return nil
}
