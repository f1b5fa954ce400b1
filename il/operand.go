package il

import (
	"fmt"
	"strings"
)

// TypeRef names a type of the target runtime.
type TypeRef struct {
	Namespace string
	Name      string
}

// Well-known types.
var (
	TypeVoid           = TypeRef{"System", "Void"}
	TypeObject         = TypeRef{"System", "Object"}
	TypeBoolean        = TypeRef{"System", "Boolean"}
	TypeByte           = TypeRef{"System", "Byte"}
	TypeChar           = TypeRef{"System", "Char"}
	TypeInt32          = TypeRef{"System", "Int32"}
	TypeByteArray      = TypeRef{"System", "Byte[]"}
	TypeConsole        = TypeRef{"System", "Console"}
	TypeConsoleKeyInfo = TypeRef{"System", "ConsoleKeyInfo"}
)

// FullName returns the namespace-qualified name.
func (t TypeRef) FullName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

func (t TypeRef) String() string {
	return t.FullName()
}

// IsZero reports whether the reference is unset.
func (t TypeRef) IsZero() bool {
	return t.Namespace == "" && t.Name == ""
}

// ParseTypeRef splits a full name at its last dot.
func ParseTypeRef(s string) (TypeRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TypeRef{}, fmt.Errorf("empty type name")
	}
	idx := strings.LastIndexByte(s, '.')
	if idx < 0 {
		return TypeRef{Name: s}, nil
	}
	if idx == 0 || idx == len(s)-1 {
		return TypeRef{}, fmt.Errorf("invalid type name %q", s)
	}
	return TypeRef{Namespace: s[:idx], Name: s[idx+1:]}, nil
}

// MethodRef references a method of the target runtime.
type MethodRef struct {
	HasThis       bool
	Return        TypeRef
	DeclaringType TypeRef
	Name          string
	Params        []TypeRef
}

// Well-known methods called by compiled programs.
var (
	MethodObjectCtor = MethodRef{
		HasThis:       true,
		Return:        TypeVoid,
		DeclaringType: TypeObject,
		Name:          ".ctor",
	}
	MethodConsoleWrite = MethodRef{
		Return:        TypeVoid,
		DeclaringType: TypeConsole,
		Name:          "Write",
		Params:        []TypeRef{TypeChar},
	}
	MethodConsoleReadKey = MethodRef{
		Return:        TypeConsoleKeyInfo,
		DeclaringType: TypeConsole,
		Name:          "ReadKey",
		Params:        []TypeRef{TypeBoolean},
	}
	MethodKeyChar = MethodRef{
		HasThis:       true,
		Return:        TypeChar,
		DeclaringType: TypeConsoleKeyInfo,
		Name:          "get_KeyChar",
	}
)

// Pop returns the number of stack slots a call to m consumes.
func (m MethodRef) Pop() int {
	n := len(m.Params)
	if m.HasThis {
		n++
	}
	return n
}

// Push returns the number of stack slots a call to m produces.
func (m MethodRef) Push() int {
	if m.Return.IsZero() || m.Return == TypeVoid {
		return 0
	}
	return 1
}

// Equal compares two references by signature.
func (m MethodRef) Equal(other MethodRef) bool {
	return m.String() == other.String()
}

// String formats the signature as "[instance ]Ret Owner::Name(P1,P2)".
func (m MethodRef) String() string {
	var sb strings.Builder
	if m.HasThis {
		sb.WriteString("instance ")
	}
	ret := m.Return
	if ret.IsZero() {
		ret = TypeVoid
	}
	sb.WriteString(ret.FullName())
	sb.WriteByte(' ')
	sb.WriteString(m.DeclaringType.FullName())
	sb.WriteString("::")
	sb.WriteString(m.Name)
	sb.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(p.FullName())
	}
	sb.WriteByte(')')
	return sb.String()
}

// ParseMethodRef parses the format produced by MethodRef.String.
func ParseMethodRef(s string) (MethodRef, error) {
	var m MethodRef
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "instance "); ok {
		m.HasThis = true
		s = rest
	}

	retText, rest, ok := strings.Cut(s, " ")
	if !ok {
		return m, fmt.Errorf("invalid method signature %q", s)
	}
	ret, err := ParseTypeRef(retText)
	if err != nil {
		return m, err
	}
	m.Return = ret

	owner, rest, ok := strings.Cut(rest, "::")
	if !ok {
		return m, fmt.Errorf("missing declaring type in %q", s)
	}
	if m.DeclaringType, err = ParseTypeRef(owner); err != nil {
		return m, err
	}

	open := strings.IndexByte(rest, '(')
	if open <= 0 || !strings.HasSuffix(rest, ")") {
		return m, fmt.Errorf("invalid parameter list in %q", s)
	}
	m.Name = rest[:open]

	params := rest[open+1 : len(rest)-1]
	if params == "" {
		return m, nil
	}
	for _, p := range strings.Split(params, ",") {
		t, err := ParseTypeRef(p)
		if err != nil {
			return m, err
		}
		m.Params = append(m.Params, t)
	}
	return m, nil
}
