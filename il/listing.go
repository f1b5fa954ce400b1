package il

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Listing is the YAML form of a method body.
type Listing struct {
	Method       string         `yaml:"method"`
	Locals       []string       `yaml:"locals"`
	Instructions []ListingEntry `yaml:"instructions"`
}

// ListingEntry is one instruction of a Listing.
type ListingEntry struct {
	Offset  string `yaml:"offset"`
	Op      string `yaml:"op"`
	Operand string `yaml:"operand,omitempty"`
}

// NewListing converts a body into its listing form.
func NewListing(method string, body *MethodBody) Listing {
	l := Listing{
		Method:       method,
		Locals:       make([]string, 0, len(body.Locals)),
		Instructions: make([]ListingEntry, 0, len(body.Instructions)),
	}
	for _, t := range body.Locals {
		l.Locals = append(l.Locals, t.FullName())
	}

	label := body.LabelFunc()
	offsets := body.Offsets()
	for i, inst := range body.Instructions {
		l.Instructions = append(l.Instructions, ListingEntry{
			Offset:  OffsetLabel(offsets[i]),
			Op:      inst.OpCode.String(),
			Operand: inst.OperandText(label),
		})
	}
	return l
}

// MarshalListing renders a body as a YAML listing.
func MarshalListing(method string, body *MethodBody) ([]byte, error) {
	return yaml.Marshal(NewListing(method, body))
}

// LoadListing parses a YAML listing back into a method body and returns the
// method name recorded in it.
func LoadListing(data []byte) (string, *MethodBody, error) {
	var l Listing
	if err := yaml.Unmarshal(data, &l); err != nil {
		return "", nil, fmt.Errorf("failed to parse listing: %w", err)
	}
	body, err := l.Body()
	if err != nil {
		return "", nil, err
	}
	return l.Method, body, nil
}

// Body resolves the listing into a method body. Branch operands must name
// the offset label of another entry.
func (l Listing) Body() (*MethodBody, error) {
	body := NewMethodBody()
	for _, name := range l.Locals {
		t, err := ParseTypeRef(name)
		if err != nil {
			return nil, fmt.Errorf("local %q: %w", name, err)
		}
		body.Locals = append(body.Locals, t)
	}

	labels := make(map[string]*Instruction, len(l.Instructions))
	type pending struct {
		inst   *Instruction
		target string
	}
	var branches []pending

	for n, e := range l.Instructions {
		op, err := ParseOpCode(e.Op)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", n, err)
		}

		inst := &Instruction{OpCode: op}
		switch op.Info().Operand {
		case InlineNone:
			if e.Operand != "" {
				return nil, fmt.Errorf("entry %d: %s takes no operand", n, op)
			}
		case InlineI:
			v, err := strconv.ParseInt(e.Operand, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("entry %d: invalid literal %q", n, e.Operand)
			}
			inst.Operand = int32(v)
		case ShortInlineVar:
			v, err := strconv.ParseUint(e.Operand, 10, 8)
			if err != nil {
				return nil, fmt.Errorf("entry %d: invalid local slot %q", n, e.Operand)
			}
			inst.Operand = uint8(v)
		case InlineBrTarget:
			branches = append(branches, pending{inst: inst, target: e.Operand})
		case InlineType:
			t, err := ParseTypeRef(e.Operand)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", n, err)
			}
			inst.Operand = t
		case InlineMethod:
			m, err := ParseMethodRef(e.Operand)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", n, err)
			}
			inst.Operand = m
		}

		if e.Offset != "" {
			labels[e.Offset] = inst
		}
		body.Append(inst)
	}

	for _, b := range branches {
		target, ok := labels[b.target]
		if !ok {
			return nil, fmt.Errorf("undefined branch target %q", b.target)
		}
		b.inst.Operand = target
	}

	return body, nil
}
