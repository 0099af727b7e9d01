package data

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Point is a fixed spawn slot.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Bounds is the closed interval random positions are drawn from, on both axes.
type Bounds struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// PenStyle is the pen configuration applied to every new entity to hide its
// track.
type PenStyle struct {
	R     uint8 `yaml:"r"`
	G     uint8 `yaml:"g"`
	B     uint8 `yaml:"b"`
	Width uint8 `yaml:"width"`
	Off   bool  `yaml:"off"`
}

// SpawnLayout holds the geometric spawn settings.
type SpawnLayout struct {
	Corners []Point  `yaml:"corners"` // visited round-robin when circular spawn is on
	Random  Bounds   `yaml:"random"`
	Pen     PenStyle `yaml:"pen"`
}

// DefaultSpawnLayout returns the layout used when no file is present.
func DefaultSpawnLayout() *SpawnLayout {
	return &SpawnLayout{
		Corners: []Point{{2.1, 2.1}, {2.1, 8.9}, {8.9, 8.9}, {8.9, 2.1}},
		Random:  Bounds{Min: 2.0, Max: 9.0},
		Pen:     PenStyle{R: 220, G: 0, B: 0, Width: 3, Off: true},
	}
}

// LoadSpawnLayout loads spawn_layout.yaml. A missing file yields the defaults;
// keys absent from the file keep their default values.
func LoadSpawnLayout(path string) (*SpawnLayout, error) {
	l := DefaultSpawnLayout()
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return l, nil
		}
		return nil, fmt.Errorf("read spawn layout: %w", err)
	}
	if err := yaml.Unmarshal(raw, l); err != nil {
		return nil, fmt.Errorf("parse spawn layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("spawn layout %s: %w", path, err)
	}
	return l, nil
}

func (l *SpawnLayout) Validate() error {
	if len(l.Corners) == 0 {
		return errors.New("corners must not be empty")
	}
	if l.Random.Min > l.Random.Max {
		return fmt.Errorf("random.min %.2f exceeds random.max %.2f", l.Random.Min, l.Random.Max)
	}
	return nil
}
