// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

import (
	"fmt"
	"strings"
)

// Errors represents a series of errors encountered during parsing,
// validation, etc.
type Errors []*Error

func (e Errors) Error() string {

	if len(e) == 0 {
		return "no error(s)"
	}

	if len(e) == 1 {
		return fmt.Sprintf("1 error occurred: %v", e[0].Error())
	}

	s := []string{}
	for _, err := range e {
		s = append(s, err.Error())
	}

	return fmt.Sprintf("%d errors occurred:\n%s", len(e), strings.Join(s, "\n"))
}

// ErrCode defines the types of errors returned during parsing,
// validation, etc.
type ErrCode int

const (
	// ParseErr indicates an unclassified parse error occurred.
	ParseErr ErrCode = iota

	// TypeErr indicates a structural error: wrong arity, a reference to
	// an unknown table, or a malformed sentence.
	TypeErr

	// SafetyErr indicates a rule is unsafe: a head or negated-literal
	// variable has no binding in a positive body literal.
	SafetyErr

	// RecursionErr indicates a rule set is recursive or cannot be
	// stratified with respect to negation.
	RecursionErr
)

// IsError returns true if err is an AST error with code.
func IsError(code ErrCode, err error) bool {
	if err, ok := err.(*Error); ok {
		return err.Code == code
	}
	return false
}

// Error represents a single error caught during parsing, validation, etc.
type Error struct {
	Code     ErrCode   `json:"code"`
	Location *Location `json:"location,omitempty"`
	Message  string    `json:"message"`
}

func (e *Error) Error() string {
	if e.Location == nil {
		return e.Message
	}

	prefix := ""

	if len(e.Location.File) > 0 {
		prefix += e.Location.File + ":" + fmt.Sprint(e.Location.Row)
	} else {
		prefix += fmt.Sprint(e.Location.Row) + ":" + fmt.Sprint(e.Location.Col)
	}

	return fmt.Sprintf("%v: %v", prefix, e.Message)
}

// NewError returns a new Error object.
func NewError(code ErrCode, loc *Location, f string, a ...interface{}) *Error {
	return &Error{
		Code:     code,
		Location: loc,
		Message:  fmt.Sprintf(f, a...),
	}
}
