// Package config provides the options that control compilation and
// decompilation.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultCellCount is the tape length used when none is configured.
const DefaultCellCount = 30000

// DefaultVersion is the assembly version used when none is configured.
const DefaultVersion = "1.0.0"

// ErrInvalidOptions is returned when options fail validation.
var ErrInvalidOptions = errors.New("invalid options")

// CompileOptions controls how a program is compiled. It is a value type; the
// With methods return modified copies.
type CompileOptions struct {
	// Name is the assembly name and the namespace of the Program type.
	Name string
	// Version is the assembly version, "major[.minor[.build[.revision]]]".
	Version string
	// CellCount is the number of cells on the tape.
	CellCount int
	// InterceptInput hides key presses instead of echoing them.
	InterceptInput bool
}

// DefaultCompileOptions returns the standard options for an assembly.
func DefaultCompileOptions(name, version string) CompileOptions {
	return CompileOptions{
		Name:           name,
		Version:        version,
		CellCount:      DefaultCellCount,
		InterceptInput: true,
	}
}

// WithName sets the assembly name.
func (o CompileOptions) WithName(name string) CompileOptions {
	o.Name = name
	return o
}

// WithVersion sets the assembly version.
func (o CompileOptions) WithVersion(version string) CompileOptions {
	o.Version = version
	return o
}

// WithCellCount sets the tape length.
func (o CompileOptions) WithCellCount(n int) CompileOptions {
	o.CellCount = n
	return o
}

// WithInterceptInput sets whether key presses are hidden.
func (o CompileOptions) WithInterceptInput(intercept bool) CompileOptions {
	o.InterceptInput = intercept
	return o
}

// Validate checks that the options can produce a loadable assembly.
func (o CompileOptions) Validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return fmt.Errorf("%w: empty assembly name", ErrInvalidOptions)
	}
	if o.CellCount <= 0 {
		return fmt.Errorf("%w: cell count must be positive, got %d", ErrInvalidOptions, o.CellCount)
	}
	if int64(o.CellCount) > int64(^uint32(0)>>1) {
		return fmt.Errorf("%w: cell count %d does not fit in an int32", ErrInvalidOptions, o.CellCount)
	}
	if _, err := ParseVersion(o.Version); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return nil
}

// Version is a four-part assembly version.
type Version struct {
	Major, Minor, Build, Revision uint16
}

// ParseVersion parses one to four dot-separated components. Missing
// components are zero.
func ParseVersion(s string) (Version, error) {
	var v Version
	s = strings.TrimSpace(s)
	if s == "" {
		return v, fmt.Errorf("empty version")
	}

	parts := strings.Split(s, ".")
	if len(parts) > 4 {
		return v, fmt.Errorf("version %q has more than four components", s)
	}

	fields := []*uint16{&v.Major, &v.Minor, &v.Build, &v.Revision}
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return v, fmt.Errorf("invalid version component %q in %q", p, s)
		}
		*fields[i] = uint16(n)
	}
	return v, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Revision)
}

// DecompileOptions controls how a compiled program is decompiled. It has no
// settings yet.
type DecompileOptions struct{}

// DefaultDecompileOptions returns the standard decompilation options.
func DefaultDecompileOptions() DecompileOptions {
	return DecompileOptions{}
}
