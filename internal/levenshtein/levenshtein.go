// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package levenshtein ranks candidate strings by edit distance for
// did-you-mean hints.
package levenshtein

import (
	"slices"

	"github.com/agnivade/levenshtein"
)

// Closest returns the candidates nearest to input by edit distance,
// ignoring any farther than maxDistance. Ties are returned together,
// sorted.
func Closest(maxDistance int, input string, candidates []string) []string {
	closest := []string{}
	for _, c := range candidates {
		switch d := levenshtein.ComputeDistance(input, c); {
		case d < maxDistance:
			closest = []string{c}
			maxDistance = d
		case d == maxDistance:
			closest = append(closest, c)
		}
	}
	slices.Sort(closest)
	return closest
}
