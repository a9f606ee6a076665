package fixture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MartianGreed/dojo.c/internal/schema"
	"github.com/MartianGreed/dojo.c/internal/store"
)

// World is a YAML description of entities to seed into a local indexer.
type World struct {
	// Name identifies the fixture in logs and CLI output.
	Name string `yaml:"name"`

	Description string `yaml:"description,omitempty"`

	// Entities are written in order. A repeated identity overwrites the
	// models it names.
	Entities []schema.WireEntity `yaml:"entities"`
}

// Load reads and parses a fixture file. Unknown fields are rejected.
func Load(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}
	return Parse(data)
}

// Parse decodes fixture YAML and checks every entity converts.
func Parse(data []byte) (*World, error) {
	var w World
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validate(&w); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	return &w, nil
}

func validate(w *World) error {
	if w.Name == "" {
		return errors.New("name is required")
	}
	if len(w.Entities) == 0 {
		return errors.New("entities list is required and must be non-empty")
	}
	_, err := w.Decode()
	return err
}

// Decode converts the fixture entities to typed entities.
func (w *World) Decode() ([]schema.Entity, error) {
	out := make([]schema.Entity, 0, len(w.Entities))
	for i, we := range w.Entities {
		e, err := we.Entity()
		if err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Seed writes the fixture into s and returns the last update sequence.
func (w *World) Seed(ctx context.Context, s *store.Store) (int64, error) {
	entities, err := w.Decode()
	if err != nil {
		return 0, err
	}
	seq, err := s.WriteEntities(ctx, entities)
	if err != nil {
		return 0, fmt.Errorf("seed %s: %w", w.Name, err)
	}
	return seq, nil
}
