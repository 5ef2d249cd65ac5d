// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package symbolic

import (
	"strings"

	"github.com/pkg/errors"
)

// Statement is one assignment of tasklet code: `Target = Value`.
type Statement struct {
	Target string
	Value  Expr
}

// String implements fmt.Stringer.
func (s Statement) String() string {
	return s.Target + " = " + s.Value.String()
}

// ParseCode parses tasklet code: a list of assignments separated by ";" or new lines.
// Empty code returns no statements.
func ParseCode(code string) ([]Statement, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil
	}
	g, err := codeParser.ParseString("", code)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse tasklet code %q", code)
	}
	statements := make([]Statement, 0, len(g.Statements))
	for _, sg := range g.Statements {
		value, err := sg.Value.Build()
		if err != nil {
			return nil, errors.WithMessagef(err, "in tasklet code %q", code)
		}
		statements = append(statements, Statement{Target: sg.Target, Value: value})
	}
	return statements, nil
}

// CodeString renders statements back to tasklet code, one per line.
func CodeString(statements []Statement) string {
	lines := make([]string, len(statements))
	for ii, s := range statements {
		lines[ii] = s.String()
	}
	return strings.Join(lines, "\n")
}
