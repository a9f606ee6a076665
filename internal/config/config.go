package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/MartianGreed/dojo.c/internal/felt"
	"github.com/MartianGreed/dojo.c/internal/query"
)

//go:embed schema.cue
var schemaSource string

// ClientConfig is what a world client needs to reach a world.
type ClientConfig struct {
	RPCURL       string `yaml:"rpcUrl" json:"rpcUrl"`
	ToriiURL     string `yaml:"toriiUrl,omitempty" json:"toriiUrl,omitempty"`
	WorldAddress string `yaml:"worldAddress" json:"worldAddress"`
}

// FileConfig is the on-disk configuration read by the CLI.
type FileConfig struct {
	ClientConfig `yaml:",inline"`

	// Database is the path of the local SQLite indexer.
	Database string `yaml:"database,omitempty"`

	// Sync lists the models kept up to date when a client starts.
	Sync []query.EntityModel `yaml:"sync,omitempty"`
}

// ValidationError reports a configuration field that failed validation.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid config: %v", e.Err)
	}
	return fmt.Sprintf("invalid config field %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks c against the embedded schema, then parses the world
// address.
func (c ClientConfig) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource).LookupPath(cue.ParsePath("#ClientConfig"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Err: err}
	}

	if _, err := c.World(); err != nil {
		return &ValidationError{Field: "worldAddress", Err: err}
	}
	return nil
}

// World parses the world address.
func (c ClientConfig) World() (felt.Felt, error) {
	return felt.Parse(c.WorldAddress)
}

// Load reads and validates a YAML configuration file. Unknown fields are
// rejected.
func Load(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration bytes.
func Parse(data []byte) (*FileConfig, error) {
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := query.Clauses(cfg.Sync); err != nil {
		return nil, &ValidationError{Field: "sync", Err: err}
	}
	return &cfg, nil
}
