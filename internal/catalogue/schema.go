// Package catalogue reads product catalogue files: products, their
// processes in stage order, and the module graph of each process.
package catalogue

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the top-level YAML structure of a catalogue file.
type File struct {
	Products []ProductImport `yaml:"products"`
}

// ProductImport defines one product. Processes are listed in stage order.
type ProductImport struct {
	Name      string          `yaml:"name"`
	Processes []ProcessImport `yaml:"processes"`
}

// ProcessImport defines a process by its module names and the pairings
// that link them.
type ProcessImport struct {
	Name     string          `yaml:"name"`
	Modules  []string        `yaml:"modules"`
	Pairings []PairingImport `yaml:"pairings"`
}

// PairingImport links two modules by name. An omitted from starts a path;
// an omitted to ends one.
type PairingImport struct {
	From    *string `yaml:"from,omitempty"`
	To      *string `yaml:"to,omitempty"`
	Default bool    `yaml:"default"`
}

// Load reads and parses a catalogue file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes catalogue YAML. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing catalogue file: file is empty")
		}
		return nil, fmt.Errorf("parsing catalogue file: %w", err)
	}
	return &f, nil
}
