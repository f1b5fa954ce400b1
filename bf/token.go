// Package bf defines the eight-command tape language that bfil compiles.
package bf

import (
	"fmt"
	"strings"
)

// Token is a single command of the tape language.
type Token uint8

// Commands.
const (
	Illegal   Token = iota
	MoveRight       // >
	MoveLeft        // <
	Increment       // +
	Decrement       // -
	Output          // .
	Input           // ,
	LoopStart       // [
	LoopEnd         // ]
)

var tokenChars = [...]byte{
	MoveRight: '>',
	MoveLeft:  '<',
	Increment: '+',
	Decrement: '-',
	Output:    '.',
	Input:     ',',
	LoopStart: '[',
	LoopEnd:   ']',
}

// Lookup returns the token for a command character. Any other character is a
// comment and yields false.
func Lookup(c byte) (Token, bool) {
	switch c {
	case '>':
		return MoveRight, true
	case '<':
		return MoveLeft, true
	case '+':
		return Increment, true
	case '-':
		return Decrement, true
	case '.':
		return Output, true
	case ',':
		return Input, true
	case '[':
		return LoopStart, true
	case ']':
		return LoopEnd, true
	}
	return Illegal, false
}

// Char returns the command character of the token.
func (t Token) Char() byte {
	if t == Illegal || int(t) >= len(tokenChars) {
		return 0
	}
	return tokenChars[t]
}

func (t Token) String() string {
	if c := t.Char(); c != 0 {
		return string(c)
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Name returns a descriptive name, used in logs and error messages.
func (t Token) Name() string {
	switch t {
	case MoveRight:
		return "MoveRight"
	case MoveLeft:
		return "MoveLeft"
	case Increment:
		return "Increment"
	case Decrement:
		return "Decrement"
	case Output:
		return "Output"
	case Input:
		return "Input"
	case LoopStart:
		return "LoopStart"
	case LoopEnd:
		return "LoopEnd"
	}
	return t.String()
}

// Program is an ordered sequence of tokens. Offsets, when present, holds the
// source byte offset of each token and has the same length as Tokens.
type Program struct {
	Tokens  []Token
	Offsets []int
}

// Parse extracts the command tokens from source text. Parsing never fails:
// characters other than the eight commands are skipped.
func Parse(source string) Program {
	p := Program{
		Tokens:  make([]Token, 0, len(source)),
		Offsets: make([]int, 0, len(source)),
	}

	for i := 0; i < len(source); i++ {
		if tok, ok := Lookup(source[i]); ok {
			p.Tokens = append(p.Tokens, tok)
			p.Offsets = append(p.Offsets, i)
		}
	}

	return p
}

// FromTokens wraps a token slice into a Program without source offsets.
func FromTokens(tokens ...Token) Program {
	return Program{Tokens: tokens}
}

// Len returns the number of tokens.
func (p Program) Len() int {
	return len(p.Tokens)
}

// Offset returns the source offset of the i-th token, or i when the program
// carries no offsets.
func (p Program) Offset(i int) int {
	if i < len(p.Offsets) {
		return p.Offsets[i]
	}
	return i
}

// String formats the program as source text.
func (p Program) String() string {
	var sb strings.Builder
	sb.Grow(len(p.Tokens))
	for _, t := range p.Tokens {
		sb.WriteByte(t.Char())
	}
	return sb.String()
}

// Equal reports whether two programs have the same token sequence. Offsets
// are ignored.
func (p Program) Equal(other Program) bool {
	if len(p.Tokens) != len(other.Tokens) {
		return false
	}
	for i := range p.Tokens {
		if p.Tokens[i] != other.Tokens[i] {
			return false
		}
	}
	return true
}
