package game

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a piece shape. The numeric value is also the cell value
// stamped into a board when a piece of that kind is placed.
type Kind uint8

const (
	KindNone Kind = iota
	I
	O
	T
	J
	L
	S
	Z
	// X is the debug kind: four corner cells of a 3x3 box.
	X
)

// Kinds lists the seven real kinds in id order.
var Kinds = []Kind{I, O, T, J, L, S, Z}

var ErrInvalidKind = errors.New("invalid piece kind")

var kindNames = [...]string{"-", "I", "O", "T", "J", "L", "S", "Z", "X"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid reports whether k has a shape table (the seven real kinds plus X).
func (k Kind) Valid() bool {
	return k >= I && k <= X
}

// ParseKind accepts a single letter, case-insensitive.
func ParseKind(s string) (Kind, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	for i := I; i <= X; i++ {
		if kindNames[i] == up {
			return i, nil
		}
	}
	return KindNone, fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// ParseQueue parses a string such as "TIOL" into kinds.
func ParseQueue(s string) ([]Kind, error) {
	out := make([]Kind, 0, len(s))
	for _, r := range s {
		k, err := ParseKind(string(r))
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// QueueString is the inverse of ParseQueue.
func QueueString(q []Kind) string {
	var sb strings.Builder
	for _, k := range q {
		sb.WriteString(k.String())
	}
	return sb.String()
}

// MarshalText encodes k as its letter so JSON carries "T" rather than 3.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
