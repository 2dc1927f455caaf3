package wipe

import (
	"fmt"
	"strings"

	"minuteman/internal/config"
)

// Pattern is the byte pattern a pass writes
type Pattern int

const (
	PatternZeros Pattern = iota
	PatternOnes
	PatternRandom
	// PatternComplement writes the bitwise complement of the previous pass.
	PatternComplement
)

func (p Pattern) String() string {
	switch p {
	case PatternZeros:
		return "zeros"
	case PatternOnes:
		return "ones"
	case PatternRandom:
		return "random"
	case PatternComplement:
		return "complement"
	default:
		return "unknown"
	}
}

// ParsePattern accepts the names used in the config file.
func ParsePattern(s string) (Pattern, error) {
	switch strings.ToLower(s) {
	case "zeros", "zero", "0x00":
		return PatternZeros, nil
	case "ones", "one", "0xff":
		return PatternOnes, nil
	case "random", "pseudorandom":
		return PatternRandom, nil
	case "complement":
		return PatternComplement, nil
	default:
		return 0, fmt.Errorf("unknown pattern: %s", s)
	}
}

// Pass is one sweep over the device
type Pass struct {
	Pattern Pattern
	// Seed drives PatternRandom so verification can regenerate the stream.
	Seed   uint64
	Verify bool
}

// Method is a named sanitization standard
type Method struct {
	Key    string
	Name   string
	Passes []Pass
}

// Rounds is the number of passes shown to the operator.
func (m Method) Rounds() int {
	return len(m.Passes)
}

// VerifyCount is the number of passes followed by a read-back.
func (m Method) VerifyCount() int {
	n := 0
	for _, p := range m.Passes {
		if p.Verify {
			n++
		}
	}
	return n
}

// Validate checks that the method can be executed.
func (m Method) Validate() error {
	if len(m.Passes) == 0 {
		return fmt.Errorf("method %q has no passes", m.Name)
	}
	if m.Passes[0].Pattern == PatternComplement {
		return fmt.Errorf("method %q: first pass cannot be a complement", m.Name)
	}
	return nil
}

func newMethod(key, name string, passes ...Pass) Method {
	for i := range passes {
		if passes[i].Pattern == PatternRandom {
			passes[i].Seed = uint64(i + 1)
		}
	}
	return Method{Key: key, Name: name, Passes: passes}
}

func zeros(verify bool) Pass  { return Pass{Pattern: PatternZeros, Verify: verify} }
func ones(verify bool) Pass   { return Pass{Pattern: PatternOnes, Verify: verify} }
func random(verify bool) Pass { return Pass{Pattern: PatternRandom, Verify: verify} }

// alternating builds n passes cycling through cycle, verifying only the last
// one. The final pattern can be overridden.
func alternating(n int, cycle []Pattern, last Pattern) []Pass {
	passes := make([]Pass, n)
	for i := range passes {
		passes[i] = Pass{Pattern: cycle[i%len(cycle)]}
	}
	passes[n-1] = Pass{Pattern: last, Verify: true}
	return passes
}

// Catalog returns the built-in methods in display order.
func Catalog() []Method {
	zo := []Pattern{PatternZeros, PatternOnes}
	zor := []Pattern{PatternZeros, PatternOnes, PatternRandom}

	return []Method{
		newMethod("hmg-is5", "British HMG IS5 (1 rewrite and 1 verify)",
			zeros(true)),
		newMethod("gost", "Russian GOST P50739-95 (2 rewrites)",
			zeros(false), random(false)),
		newMethod("navso-rll", "NAVSO P-5239-26 (RLL) (3 rewrites and 1 verify)",
			ones(false), zeros(false), random(true)),
		newMethod("navso-alt", "NAVSO P-5239-26 (ALT) (3 rewrites and 1 verify)",
			zeros(false), ones(false), random(true)),
		newMethod("dod", "DoD 5220.22-M (3 rewrites and 3 verify)",
			zeros(true), ones(true), random(true)),
		newMethod("dod-ece", "DoD 5220.22-M ECE (7 rewrites and 1 verify)",
			alternating(7, zor, PatternZeros)...),
		newMethod("rcmp", "Canadian RCMP TSSIT OPS-II (7 rewrites and 1 verify)",
			alternating(7, zo, PatternRandom)...),
		newMethod("vsitr", "German VSITR (7 rewrites and 1 verify)",
			alternating(7, zo, PatternRandom)...),
	}
}

// CustomMethods converts config entries into methods.
func CustomMethods(specs []config.MethodSpec) ([]Method, error) {
	methods := make([]Method, 0, len(specs))
	for _, spec := range specs {
		passes := make([]Pass, 0, len(spec.Passes))
		for i, ps := range spec.Passes {
			pattern, err := ParsePattern(ps.Pattern)
			if err != nil {
				return nil, fmt.Errorf("method %q pass %d: %w", spec.Name, i+1, err)
			}
			passes = append(passes, Pass{Pattern: pattern, Verify: ps.Verify})
		}
		m := newMethod(slug(spec.Name), spec.Name, passes...)
		if err := m.Validate(); err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	return methods, nil
}

// FindMethod looks a method up by key or by case-insensitive name prefix.
func FindMethod(methods []Method, query string) (Method, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, m := range methods {
		if m.Key == q {
			return m, nil
		}
	}
	var found []Method
	for _, m := range methods {
		if strings.HasPrefix(strings.ToLower(m.Name), q) {
			found = append(found, m)
		}
	}
	switch len(found) {
	case 0:
		return Method{}, fmt.Errorf("unknown sanitization method: %s", query)
	case 1:
		return found[0], nil
	default:
		return Method{}, fmt.Errorf("ambiguous sanitization method %q matches %d methods", query, len(found))
	}
}

func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
