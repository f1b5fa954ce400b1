package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is a YAML file of compile defaults. Unset fields leave the base
// options untouched.
//
//	name: hello
//	version: 1.2.0
//	cell_count: 4096
//	intercept_input: false
type Profile struct {
	Name           *string `yaml:"name"`
	Version        *string `yaml:"version"`
	CellCount      *int    `yaml:"cell_count"`
	InterceptInput *bool   `yaml:"intercept_input"`
}

// LoadProfile reads a profile from a YAML file.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}
	return ParseProfile(data)
}

// ParseProfile decodes a profile. Unknown keys are rejected.
func ParseProfile(data []byte) (Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Profile{}, fmt.Errorf("failed to parse profile: %w", err)
	}
	return p, nil
}

// Apply overlays the profile on base.
func (p Profile) Apply(base CompileOptions) CompileOptions {
	if p.Name != nil {
		base.Name = *p.Name
	}
	if p.Version != nil {
		base.Version = *p.Version
	}
	if p.CellCount != nil {
		base.CellCount = *p.CellCount
	}
	if p.InterceptInput != nil {
		base.InterceptInput = *p.InterceptInput
	}
	return base
}
