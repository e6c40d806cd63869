package rules

import (
	"fmt"
	"strings"
)

// Severity indicates rule importance. Severities are ordered, so findings
// can be sorted and thresholded with the usual comparison operators.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = [...]string{"none", "low", "medium", "high", "critical"}

// Severities returns every severity from lowest to highest.
func Severities() []Severity {
	return []Severity{SeverityNone, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

func (s Severity) String() string {
	if s < SeverityNone || s > SeverityCritical {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity parses a severity name, ignoring case.
func ParseSeverity(name string) (Severity, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range severityNames {
		if n == s {
			return Severity(i), nil
		}
	}
	return SeverityNone, fmt.Errorf("unknown severity %q (want one of %s)", name, strings.Join(severityNames[:], ", "))
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	if s < SeverityNone || s > SeverityCritical {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// CheckerLanguage selects the grammar a check is compiled against.
type CheckerLanguage int

const (
	LanguageC CheckerLanguage = iota
	LanguageCXX
)

func (l CheckerLanguage) String() string {
	if l == LanguageCXX {
		return "c++"
	}
	return "c"
}

// IsCXX reports whether l is C++.
func (l CheckerLanguage) IsCXX() bool {
	return l == LanguageCXX
}

// ParseCheckerLanguage parses "c" or "c++" (and the common C++ spellings),
// ignoring case.
func ParseCheckerLanguage(name string) (CheckerLanguage, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "c":
		return LanguageC, nil
	case "c++", "cpp", "cxx":
		return LanguageCXX, nil
	default:
		return LanguageC, fmt.Errorf("unknown checker language %q (want c or c++)", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l CheckerLanguage) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *CheckerLanguage) UnmarshalText(text []byte) error {
	v, err := ParseCheckerLanguage(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
