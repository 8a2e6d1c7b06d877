// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Location records a position in source code.
type Location struct {
	Text []byte `json:"-"` // The original text fragment from the source.
	File string // The name of the source file (which may be empty).
	Row  int    // The line in the source.
	Col  int    // The column in the row.
}

// NewLocation returns a new Location object.
func NewLocation(text []byte, file string, row int, col int) *Location {
	return &Location{Text: text, File: file, Row: row, Col: col}
}

// Errorf returns a new error value with a message formatted to include the
// location info (e.g., line, column, filename, etc.)
func (loc *Location) Errorf(f string, a ...interface{}) error {
	return errors.New(loc.Format(f, a...))
}

// Format returns a formatted string prefixed with the location information.
func (loc *Location) Format(f string, a ...interface{}) string {
	if loc == nil {
		return fmt.Sprintf(f, a...)
	}
	if len(loc.File) > 0 {
		f = fmt.Sprintf("%v:%v: %v", loc.File, loc.Row, f)
	} else {
		f = fmt.Sprintf("%v:%v: %v", loc.Row, loc.Col, f)
	}
	return fmt.Sprintf(f, a...)
}

// Value declares the common interface for all Term values. Every kind of
// term in the language is represented as a type that implements this
// interface:
//
// - Boolean, Number, String
// - Variables
type Value interface {
	// Equal returns true if this value equals the other value.
	Equal(other Value) bool

	// IsGround returns true if this value is not a variable.
	IsGround() bool

	// String returns a human readable string representation of the value.
	String() string

	// Returns hash code of the value.
	Hash() int
}

// Var represents a variable as defined by the language. Bareword
// identifiers in rule text are variables; constants are always quoted
// strings, numbers, or booleans.
type Var string

// Equal returns true if the other Value is a variable with the same name.
func (v Var) Equal(other Value) bool {
	if other, ok := other.(Var); ok {
		return v == other
	}
	return false
}

// IsGround always returns false.
func (v Var) IsGround() bool {
	return false
}

// Hash returns the hash code for the Value.
func (v Var) Hash() int {
	return int(xxhash.Sum64String(string(v)))
}

func (v Var) String() string {
	return string(v)
}

// String represents a string constant as defined by the language.
type String string

// Equal returns true if the other Value is a string and is equal.
func (str String) Equal(other Value) bool {
	if other, ok := other.(String); ok {
		return str == other
	}
	return false
}

// IsGround always returns true.
func (str String) IsGround() bool {
	return true
}

// Hash returns the hash code for the Value.
func (str String) Hash() int {
	return int(xxhash.Sum64String(string(str)))
}

func (str String) String() string {
	return strconv.Quote(string(str))
}

// Number represents a numeric constant as defined by the language. The
// source rendering is preserved, and numbers compare structurally on it:
// 1 and 1.0 are distinct constants.
type Number string

// Equal returns true if the other Value is a number with the same
// rendering.
func (num Number) Equal(other Value) bool {
	if other, ok := other.(Number); ok {
		return num == other
	}
	return false
}

// IsGround always returns true.
func (num Number) IsGround() bool {
	return true
}

// Hash returns the hash code for the Value.
func (num Number) Hash() int {
	return int(xxhash.Sum64String(string(num)))
}

func (num Number) String() string {
	return string(num)
}

// Boolean represents a boolean constant as defined by the language.
type Boolean bool

// Equal returns true if the other Value is a boolean and is equal.
func (bol Boolean) Equal(other Value) bool {
	if other, ok := other.(Boolean); ok {
		return bol == other
	}
	return false
}

// IsGround always returns true.
func (bol Boolean) IsGround() bool {
	return true
}

// Hash returns the hash code for the Value.
func (bol Boolean) Hash() int {
	if bol {
		return 1
	}
	return 0
}

func (bol Boolean) String() string {
	return strconv.FormatBool(bool(bol))
}

// Term is an argument of a literal.
type Term struct {
	Value    Value     // the value of the Term as represented in the language
	Location *Location `json:"-"` // the location of the Term in the source
}

// NewTerm returns a new Term object.
func NewTerm(v Value) *Term {
	return &Term{Value: v}
}

// VarTerm creates a new Term with a Var value.
func VarTerm(v string) *Term {
	return &Term{Value: Var(v)}
}

// StringTerm creates a new Term with a String value.
func StringTerm(s string) *Term {
	return &Term{Value: String(s)}
}

// NumberTerm creates a new Term with a Number value.
func NumberTerm(n string) *Term {
	return &Term{Value: Number(n)}
}

// IntNumberTerm creates a new Term with an integer Number value.
func IntNumberTerm(i int) *Term {
	return &Term{Value: Number(strconv.Itoa(i))}
}

// BooleanTerm creates a new Term with a Boolean value.
func BooleanTerm(b bool) *Term {
	return &Term{Value: Boolean(b)}
}

// Equal returns true if this term equals the other term. Equality is
// defined on the values only; locations are ignored.
func (term *Term) Equal(other *Term) bool {
	if term == nil && other == nil {
		return true
	}
	if term == nil || other == nil {
		return false
	}
	return term.Value.Equal(other.Value)
}

// IsGround returns true if this term's value is ground.
func (term *Term) IsGround() bool {
	return term.Value.IsGround()
}

// Hash returns the hash code of the term's value.
func (term *Term) Hash() int {
	return term.Value.Hash()
}

// Copy returns a copy of the term sharing the same value.
func (term *Term) Copy() *Term {
	if term == nil {
		return nil
	}
	cpy := *term
	return &cpy
}

func (term *Term) String() string {
	return term.Value.String()
}
