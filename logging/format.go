// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package logging

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// GetFormatter returns the logrus formatter named by format.
func GetFormatter(format string) logrus.Formatter {
	switch format {
	case "text":
		return &prettyFormatter{}
	case "json-pretty":
		return &logrus.JSONFormatter{PrettyPrint: true}
	default:
		return &logrus.JSONFormatter{}
	}
}

// prettyFormatter provides a simpler, easier-to-read text option than
// the default logrus.TextFormatter.
type prettyFormatter struct{}

func (*prettyFormatter) Format(e *logrus.Entry) ([]byte, error) {
	b := new(bytes.Buffer)
	fmt.Fprintf(b, "[%s] %s\n", strings.ToUpper(e.Level.String()), e.Message)
	for k, v := range e.Data {
		fmt.Fprintf(b, "  %s = %v\n", k, v)
	}
	return b.Bytes(), nil
}
