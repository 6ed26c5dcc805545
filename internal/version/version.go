// Package version compares Perl module versions and checks them against
// CPAN::Meta style version ranges.
package version

import (
	"strconv"
	"strings"

	"github.com/frederic-klein/cpanfile/internal/prereqs"
)

// Undef is the version CPAN tooling records for modules without one.
const Undef = "undef"

var operators = []string{">=", "<=", "!=", "==", ">", "<"}

// Satisfies reports whether an installed version meets a constraint such
// as "1.0" (at least 1.0) or ">= 1.0, < 2.0, != 1.5". An undef installed
// version satisfies everything.
func Satisfies(have string, want prereqs.Version) bool {
	if want.IsAny() || have == Undef {
		return true
	}
	if have == "" {
		have = "0"
	}
	for _, clause := range strings.Split(string(want), ",") {
		if !satisfiesClause(have, strings.TrimSpace(clause)) {
			return false
		}
	}
	return true
}

func satisfiesClause(have, clause string) bool {
	if clause == "" || clause == "0" {
		return true
	}

	op := ">="
	for _, candidate := range operators {
		if strings.HasPrefix(clause, candidate) {
			op = candidate
			clause = strings.TrimSpace(clause[len(candidate):])
			break
		}
	}

	cmp := Compare(have, clause)
	switch op {
	case ">":
		return cmp > 0
	case "<=":
		return cmp <= 0
	case "<":
		return cmp < 0
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	default:
		return cmp >= 0
	}
}

// Compare returns -1, 0 or 1 as a is older than, equal to or newer than b.
func Compare(a, b string) int {
	as, bs := parts(a), parts(b)
	for i := 0; i < max(len(as), len(bs)); i++ {
		var x, y int
		if i < len(as) {
			x = as[i]
		}
		if i < len(bs) {
			y = bs[i]
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

// parts splits a version into numeric components. Versions with a v prefix
// or more than one dot are dotted (v1.2.3). Anything else is decimal and its
// fraction is read in groups of three digits: 3.007004 is 3.7.4 and 5.9 is
// 5.900.
func parts(v string) []int {
	v = strings.ReplaceAll(strings.TrimSpace(v), "_", "")
	dotted := strings.HasPrefix(v, "v") || strings.Count(v, ".") > 1
	v = strings.TrimPrefix(v, "v")
	if v == "" {
		return []int{0}
	}

	fields := strings.Split(v, ".")
	if dotted || len(fields) == 1 {
		out := make([]int, len(fields))
		for i, f := range fields {
			out[i] = atoi(f)
		}
		return out
	}

	out := []int{atoi(fields[0])}
	for frac := fields[1]; frac != ""; {
		n := min(3, len(frac))
		out = append(out, atoi(frac[:n]+strings.Repeat("0", 3-n)))
		frac = frac[n:]
	}
	return out
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
