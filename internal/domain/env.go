package domain

import (
	"strings"
)

// EnvVar is a single NAME=VALUE assignment.
// Value is the literal value with quoting removed; Expr is the shell word as
// written, exported verbatim so references such as $HOME expand in the job.
type EnvVar struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
	Expr  string `json:"expr,omitempty" yaml:"expr,omitempty"`
}

// ExportCommand returns the shell command that exports the variable.
func (v EnvVar) ExportCommand() string {
	expr := v.Expr
	if expr == "" {
		expr = ShellQuote(v.Value)
	}
	return "export " + v.Name + "=" + expr
}

// EnvEntry is one declaration of the env list, e.g. TRAVIS_PYTHON_VERSION="2.7".
type EnvEntry struct {
	Raw  string   `json:"raw" yaml:"raw"`
	Vars []EnvVar `json:"vars,omitempty" yaml:"vars,omitempty"`
}

// IsEmpty returns true if the entry declares nothing.
func (e EnvEntry) IsEmpty() bool {
	return len(e.Vars) == 0 && strings.TrimSpace(e.Raw) == ""
}

// Key returns the normalised form used to compare entries, so that
// A="1" and A=1 are the same entry.
func (e EnvEntry) Key() string {
	parts := make([]string, 0, len(e.Vars))
	for _, v := range e.Vars {
		parts = append(parts, v.Name+"="+v.Value)
	}
	return strings.Join(parts, " ")
}

// Display returns the entry as written in the build file.
func (e EnvEntry) Display() string {
	if raw := strings.TrimSpace(e.Raw); raw != "" {
		return raw
	}
	return e.Key()
}

// Lookup returns the literal value of a variable declared by the entry.
func (e EnvEntry) Lookup(name string) (string, bool) {
	for _, v := range e.Vars {
		if v.Name == name {
			return v.Value, true
		}
	}
	return "", false
}

// ShellQuote single-quotes s for POSIX shells when it contains special characters.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=@%+,", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
