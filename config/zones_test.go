package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const editorJSON = `{
  "s3_bucket": "s3://motion-archive/",
  "image": "/snapshot.jpg",
  "zones": {
    "2": {"name": "Driveway", "points": [{"x": 0, "y": 0},{"x": 100, "y": 0},{"x": 100, "y": 100}],
          "minimum_x": "20", "minimum_y": "15", "warmup": "2", "cooldown": "3", "continuation": "4",
          "upload_to_s3": true},
    "10": {"name": "Porch", "points": [{"x": 0, "y": 0},{"x": 50, "y": 0},{"x": 50, "y": 50},{"x": 0, "y": 50}],
          "minimum_x": 5, "minimum_y": 5, "warmup": 1, "cooldown": 2, "continuation": 2},
    "1": {"name": "Gate", "points": [{"x": 10, "y": 10},{"x": 20, "y": 10},{"x": 15, "y": 20}],
          "minimum_x": 1, "minimum_y": 1, "warmup": 0.5, "cooldown": 1, "continuation": 1}
  }
}`

const listYAML = `
zones:
  - name: Yard
    points: [{x: 0, y: 0}, {x: 10, y: 0}, {x: 10, y: 10}]
    minimum_x: 2
    minimum_y: 3
    warmup: 2
    cooldown: 3
    continuation: 5
`

func TestParseEditorJSON(t *testing.T) {
	f, err := Parse([]byte(editorJSON))
	require.NoError(t, err)

	assert.Equal(t, "s3://motion-archive/", f.S3Bucket)
	require.Len(t, f.Zones, 3)
	assert.Equal(t, "Gate", f.Zones[0].Name, "map keys sort numerically")
	assert.Equal(t, "Driveway", f.Zones[1].Name)
	assert.Equal(t, "Porch", f.Zones[2].Name)

	drive := f.Zones[1]
	assert.Equal(t, 20, drive.MinimumX.Int())
	assert.Equal(t, 15, drive.MinimumY.Int())
	assert.Equal(t, 2.0, drive.Warmup.Float())
	assert.Equal(t, 4, drive.Continuation.Int())
	assert.True(t, drive.UploadToS3)
	assert.False(t, f.Zones[2].UploadToS3)
	assert.Equal(t, 0.5, f.Zones[0].Warmup.Float())
}

func TestParseListYAML(t *testing.T) {
	f, err := Parse([]byte(listYAML))
	require.NoError(t, err)
	require.Len(t, f.Zones, 1)
	assert.Equal(t, "Yard", f.Zones[0].Name)
	assert.Equal(t, Number(10), f.Zones[0].Points[1].X)
	assert.Empty(t, f.S3Bucket)
}

func TestValidate(t *testing.T) {
	valid := func() Zone {
		return Zone{
			Name:         "A",
			Points:       []Point{{0, 0}, {1, 0}, {1, 1}},
			Warmup:       1,
			Cooldown:     1,
			Continuation: 1,
		}
	}

	tests := []struct {
		name   string
		mutate func(f *File)
		err    error
	}{
		{"ok", func(f *File) {}, nil},
		{"empty", func(f *File) { f.Zones = nil }, ErrNoZones},
		{"duplicate", func(f *File) { f.Zones = append(f.Zones, valid()) }, ErrDuplicateZone},
		{"no name", func(f *File) { f.Zones[0].Name = " " }, ErrInvalidZone},
		{"two points", func(f *File) { f.Zones[0].Points = f.Zones[0].Points[:2] }, ErrInvalidZone},
		{"negative minimum", func(f *File) { f.Zones[0].MinimumY = -1 }, ErrInvalidZone},
		{"zero warmup", func(f *File) { f.Zones[0].Warmup = 0 }, ErrInvalidZone},
		{"zero cooldown", func(f *File) { f.Zones[0].Cooldown = 0 }, ErrInvalidZone},
		{"zero continuation", func(f *File) { f.Zones[0].Continuation = 0 }, ErrInvalidZone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &File{Zones: ZoneList{valid()}}
			tt.mutate(f)
			err := Validate(f)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParseRejectsBadNumber(t *testing.T) {
	_, err := Parse([]byte(`{"zones": [{"name": "A", "points": [], "warmup": "soon"}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a number")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.json")
	require.NoError(t, os.WriteFile(path, []byte(editorJSON), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Zones, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
