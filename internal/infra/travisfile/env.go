package travisfile

import (
	"bytes"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/snowman2/cimatrix/internal/domain"
)

// ParseEnvEntry parses one env declaration such as
// TRAVIS_PYTHON_VERSION="2.7" or `A=1 B="$HOME/x"`.
// Anything other than plain assignments is rejected.
func ParseEnvEntry(raw string) (domain.EnvEntry, error) {
	entry := domain.EnvEntry{Raw: raw}
	if strings.TrimSpace(raw) == "" {
		return entry, fmt.Errorf("%w: empty entry", domain.ErrInvalidEnvEntry)
	}

	f, err := syntax.NewParser().Parse(strings.NewReader(raw), "")
	if err != nil {
		return entry, fmt.Errorf("%w: %q: %w", domain.ErrInvalidEnvEntry, raw, err)
	}
	if len(f.Stmts) != 1 {
		return entry, fmt.Errorf("%w: %q: expected a single statement", domain.ErrInvalidEnvEntry, raw)
	}

	stmt := f.Stmts[0]
	call, ok := stmt.Cmd.(*syntax.CallExpr)
	if !ok || len(call.Args) > 0 || len(call.Assigns) == 0 || stmt.Negated || stmt.Background || len(stmt.Redirs) > 0 {
		return entry, fmt.Errorf("%w: %q: not an assignment", domain.ErrInvalidEnvEntry, raw)
	}

	printer := syntax.NewPrinter()
	for _, as := range call.Assigns {
		if as.Append || as.Naked || as.Index != nil || as.Array != nil {
			return entry, fmt.Errorf("%w: %q: unsupported assignment to %s", domain.ErrInvalidEnvEntry, raw, as.Name.Value)
		}
		v := domain.EnvVar{Name: as.Name.Value}
		if as.Value != nil {
			var buf bytes.Buffer
			if err := printer.Print(&buf, as.Value); err != nil {
				return entry, fmt.Errorf("print value of %s: %w", v.Name, err)
			}
			v.Expr = buf.String()
			v.Value = wordLiteral(printer, as.Value.Parts)
		}
		entry.Vars = append(entry.Vars, v)
	}
	return entry, nil
}

// wordLiteral removes quoting from a word. Expansions are kept as written.
func wordLiteral(printer *syntax.Printer, parts []syntax.WordPart) string {
	var sb strings.Builder
	for _, part := range parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			sb.WriteString(wordLiteral(printer, p.Parts))
		default:
			var buf bytes.Buffer
			_ = printer.Print(&buf, part)
			sb.WriteString(buf.String())
		}
	}
	return sb.String()
}
