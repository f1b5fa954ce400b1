// Package container packages compiled method bodies into a loadable binary
// module and reads them back.
//
// A module holds one assembly with a single Program type. Method bodies are
// stored as CIL byte code: one-byte opcodes, little-endian inline operands,
// branch displacements relative to the next instruction and metadata tokens
// of the form table<<24 | row.
package container

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sarchlab/bfil/config"
	"github.com/sarchlab/bfil/il"
)

const (
	// ProgramTypeName is the name of the type holding the entry point.
	ProgramTypeName = "Program"
	// EntryPointName is the name of the static entry method.
	EntryPointName = "<Main>$"
	// CtorName is the name of instance constructors.
	CtorName = ".ctor"
)

var (
	// ErrBadMagic is returned when the input is not a module.
	ErrBadMagic = errors.New("bad module magic")
	// ErrUnsupportedFormat is returned for an unknown format version.
	ErrUnsupportedFormat = errors.New("unsupported module format")
	// ErrMalformed is returned when a module is structurally invalid.
	ErrMalformed = errors.New("malformed module")
)

// Module is a compiled assembly.
type Module struct {
	Name    string
	Version config.Version
	MVID    [16]byte
	Types   []*TypeDef

	entry *MethodDef
}

// TypeDef is a type defined by the module.
type TypeDef struct {
	Namespace string
	Name      string
	Extends   il.TypeRef
	Methods   []*MethodDef
}

// FullName returns the namespace-qualified name.
func (t *TypeDef) FullName() string {
	return il.TypeRef{Namespace: t.Namespace, Name: t.Name}.FullName()
}

// MethodDef is a method defined by the module.
type MethodDef struct {
	Name          string
	Static        bool
	Body          *il.MethodBody
	DeclaringType *TypeDef
}

// FullName returns "Type::Method".
func (m *MethodDef) FullName() string {
	if m.DeclaringType == nil {
		return m.Name
	}
	return m.DeclaringType.FullName() + "::" + m.Name
}

// Build wraps an entry method body into a module named after opts.Name.
func Build(body *il.MethodBody, opts config.CompileOptions) (*Module, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := body.CheckTargets(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	version, err := config.ParseVersion(opts.Version)
	if err != nil {
		return nil, err
	}

	program := &TypeDef{
		Namespace: opts.Name,
		Name:      ProgramTypeName,
		Extends:   il.TypeObject,
	}
	program.addMethod(&MethodDef{Name: CtorName, Body: ctorBody()})
	entry := program.addMethod(&MethodDef{Name: EntryPointName, Static: true, Body: body})

	m := &Module{
		Name:    opts.Name,
		Version: version,
		Types:   []*TypeDef{program},
		entry:   entry,
	}

	m.MVID, err = m.computeMVID()
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (t *TypeDef) addMethod(m *MethodDef) *MethodDef {
	m.DeclaringType = t
	t.Methods = append(t.Methods, m)
	return m
}

// ctorBody is the trivial instance constructor: base.ctor(); return.
func ctorBody() *il.MethodBody {
	body := il.NewMethodBody()
	body.Emit(il.Ldarg0)
	body.Append(il.CreateMethod(il.Call, il.MethodObjectCtor))
	body.Emit(il.Nop)
	body.Emit(il.Ret)
	return body
}

// EntryPoint returns the method run when the module is executed, or nil.
func (m *Module) EntryPoint() *MethodDef {
	return m.entry
}

// Methods returns every method of the module in definition order.
func (m *Module) Methods() []*MethodDef {
	var methods []*MethodDef
	for _, t := range m.Types {
		methods = append(methods, t.Methods...)
	}
	return methods
}

// Save encodes the module into a new file at path.
func (m *Module) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := m.Encode(f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// Load reads a module file.
func Load(path string) (*Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f)
}

const runtimeConfig = `{"runtimeOptions": {"tfm": "net7.0","framework": {"name": "Microsoft.NETCore.App","version": "7.0.0"}}}`

// WriteRuntimeConfig writes the runtime configuration side file.
func WriteRuntimeConfig(path string) error {
	return os.WriteFile(path, []byte(runtimeConfig), 0o644)
}

// RuntimeConfigPath returns the side file path belonging to a module file.
func RuntimeConfigPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".runtimeconfig.json"
}
