// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package filters evaluates --filter expressions against JSON rows.
package filters

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/tidwall/gjson"
)

// DelimEnv overrides the "," separating filter expressions.
const DelimEnv = "EC2BACKUP_FILTER_DELIM"

// filterRegex splits an expression into key, operator and target. Operators
// are one of = ^ ~ < > @ or /, optionally prefixed with '!'.
var filterRegex = regexp.MustCompile(`^(.*?)(!?[=^~<>@/])(.*)$`)

// Filter is a single parsed expression. Key is a gjson path into the row.
type Filter struct {
	Key     string
	Negate  bool
	Operand string
	Target  string
}

func (f Filter) String() string {
	neg := ""
	if f.Negate {
		neg = "!"
	}
	return f.Key + neg + f.Operand + f.Target
}

// BuildFilters parses spec. Malformed expressions are logged and skipped.
func BuildFilters(spec string) []Filter {
	//nolint:prealloc
	var filters []Filter

	if strings.TrimSpace(spec) == "" {
		return filters
	}

	delim := ","
	if d, ok := os.LookupEnv(DelimEnv); ok && d != "" {
		delim = d
	}

	for _, expr := range strings.Split(spec, delim) {
		parts := filterRegex.FindStringSubmatch(strings.TrimSpace(expr))
		if parts == nil || parts[1] == "" {
			log.Error("invalid filter: " + expr)
			continue
		}

		op := parts[2]
		negate := strings.HasPrefix(op, "!")
		filters = append(filters, Filter{
			Key:     parts[1],
			Negate:  negate,
			Operand: strings.TrimPrefix(op, "!"),
			Target:  parts[3],
		})
	}

	return filters
}

// Apply returns the rows of the JSON array rows that satisfy every filter in
// spec.
func Apply(rows gjson.Result, spec string) []gjson.Result {
	filters := BuildFilters(spec)

	//nolint:prealloc
	var kept []gjson.Result
	for _, row := range rows.Array() {
		if Match(row, filters) {
			kept = append(kept, row)
		}
	}
	return kept
}

// Match reports whether row satisfies every filter. A missing key fails the
// row.
func Match(row gjson.Result, filters []Filter) bool {
	for _, f := range filters {
		value := row.Get(f.Key)
		if !value.Exists() {
			return false
		}

		var ok bool
		switch value.Type {
		case gjson.String:
			ok = checkStringOperand(value.String(), f)
		case gjson.True, gjson.False:
			ok = checkStringOperand(strconv.FormatBool(value.Bool()), f)
		case gjson.Number:
			ok = checkNumericOperand(value.Float(), f)
		case gjson.JSON:
			ok = f.Operand == "@" && checkContainsOperand(value.Value(), f)
		default:
			ok = f.Negate
		}
		if !ok {
			return false
		}
	}
	return true
}

// checkContainsOperand evaluates '@' against an array or object value.
func checkContainsOperand(value any, f Filter) bool {
	switch val := value.(type) {
	case []any:
		for _, item := range val {
			if fmt.Sprint(item) == f.Target {
				return !f.Negate
			}
		}
		return f.Negate
	case map[string]any:
		_, found := val[f.Target]
		return found == !f.Negate
	default:
		log.Errorf("unsupported type for contains filtering: %T", value)
		return false
	}
}

// checkNumericOperand compares numerically. Operands other than = > < fall
// back to string comparison of the formatted value.
func checkNumericOperand(value float64, f Filter) bool {
	switch f.Operand {
	case "=", ">", "<":
	default:
		return checkStringOperand(strconv.FormatFloat(value, 'f', -1, 64), f)
	}

	tgt, err := strconv.ParseFloat(strings.TrimSpace(f.Target), 64)
	if err != nil {
		log.Error("invalid numeric target: " + f.Target)
		return false
	}

	switch f.Operand {
	case "=":
		return (value == tgt) == !f.Negate
	case ">":
		return (value > tgt) == !f.Negate
	default:
		return (value < tgt) == !f.Negate
	}
}

// checkStringOperand evaluates a string comparison.
func checkStringOperand(value string, f Filter) bool {
	switch f.Operand {
	case "=":
		return (value == f.Target) == !f.Negate
	case "~":
		return strings.EqualFold(value, f.Target) == !f.Negate
	case "^":
		return strings.HasPrefix(value, f.Target) == !f.Negate
	case ">":
		return (value > f.Target) == !f.Negate
	case "<":
		return (value < f.Target) == !f.Negate
	case "@":
		return strings.Contains(value, f.Target) == !f.Negate
	case "/":
		matched, err := regexp.MatchString(f.Target, value)
		if err != nil {
			log.Error("invalid regex: " + f.Target)
			return false
		}
		return matched == !f.Negate
	default:
		log.Error("unsupported filtering operand: " + f.Operand)
		return false
	}
}
