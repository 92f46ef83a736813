// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package attrs

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/tidwall/gjson"

	"github.com/oshima/ec2-backup/internal/output"
)

var lengthRe = regexp.MustCompile(`-?\d+`)

// Attr is one entry of the --attrs flag: the gjson path of a row value, the
// column title it is shown under and how it is transformed.
type Attr struct {
	// The gjson path to extract from each row.
	Key string `yaml:"key"`
	// Should this Attr be shown or is it just hidden?
	Include bool `yaml:"include"`
	// The column title when output=text.
	OutputKey string `yaml:"outputKey"`
	// Transformation spec to apply to the output value.
	TransformSpec string `yaml:"transformSpec"`

	format func(gjson.Result) string
}

// Transform applies the transformation spec to value.
func (a *Attr) Transform(value string) string {
	result := value

	// Convert UTC time to the schedule zone.
	if strings.ContainsAny(a.TransformSpec, "tT") {
		if loc := zone(); loc != nil {
			t, err := time.Parse(time.RFC3339Nano, result)
			if err == nil {
				result = t.In(loc).Format("2006-01-02T15:04:05MST")
			} else {
				log.Debugf("not a time: %s", result)
			}
		}
	}

	// The case transformation appearing last wins, so a per-attr spec overrides
	// a global one prepended to it. IOW --attrs '*::U,name::l' is lower case.
	lastL := strings.LastIndexAny(a.TransformSpec, "lL")
	lastU := strings.LastIndexAny(a.TransformSpec, "uU")

	if lastL > lastU {
		result = strings.ToLower(result)
	} else if lastU > lastL {
		result = strings.ToUpper(result)
	}

	// Length-based transformation. Same rule as above re: the last one wins.
	if match := lengthRe.FindAllString(a.TransformSpec, -1); len(match) != 0 {
		l, _ := strconv.Atoi(match[len(match)-1])
		abs := int(math.Abs(float64(l)))
		if len(result) > abs && abs > 0 {
			if l < 0 {
				lr := abs/2 - 1
				if lr < 1 {
					lr = 1
				}
				result = result[:lr] + ".." + result[len(result)-lr:]
			} else {
				result = result[:l]
			}
		}
	}

	return result
}

// zone is the location time values are converted to. Without an explicit
// zone the value is left alone.
func zone() *time.Location {
	tz := os.Getenv("EC2BACKUP_TIMEZONE")
	if tz == "" {
		tz = os.Getenv("TZ")
	}
	if tz == "" {
		return nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warnf("invalid timezone %q", tz)
		return nil
	}
	return loc
}

type AttrList []Attr

// FromColumns seeds an AttrList with a command's default columns.
func FromColumns(cols []output.Column) AttrList {
	list := make(AttrList, 0, len(cols))
	for _, c := range cols {
		list = append(list, Attr{
			Key:       c.Path,
			Include:   true,
			OutputKey: c.Title,
			format:    c.Format,
		})
	}
	return list
}

// String returns the AttrList in the format of the --attrs flag.
func (a *AttrList) String() string {
	result := make([]string, 0, len(*a))
	for _, attr := range *a {
		result = append(result, fmt.Sprintf("%s:%s:%s", attr.Key, attr.OutputKey, attr.TransformSpec))
	}
	return strings.Join(result, ",")
}

// Set parses each spec of the --attrs flag into the AttrList.
func (a *AttrList) Set(value string) error {
	if value == "" || value == "*" {
		return nil
	}

	const (
		keyIdx = iota
		outputIdx
		transformIdx
	)

	// There are three : delimited fields in each spec: the row key, the column
	// title and the transformation spec. The latter two are optional and the
	// title defaults to the upper-cased last segment of the key.
specloop:
	for _, spec := range strings.Split(value, ",") {
		attr := Attr{Include: true}
		fields := strings.Split(spec, ":")

		// A leading ! hides the attribute.
		attr.Key = strings.TrimSpace(fields[keyIdx])
		if strings.HasPrefix(attr.Key, "!") {
			attr.Include = false
			attr.Key = attr.Key[1:]
		}
		if attr.Key == "" {
			return fmt.Errorf("empty attribute in %q", spec)
		}
		if attr.Key == "*" {
			attr.Include = false
		}

		if len(fields) > outputIdx && strings.TrimSpace(fields[outputIdx]) != "" {
			attr.OutputKey = strings.TrimSpace(fields[outputIdx])
		} else {
			segments := strings.Split(attr.Key, ".")
			attr.OutputKey = strings.ToUpper(segments[len(segments)-1])
		}

		if len(fields) > transformIdx {
			attr.TransformSpec = strings.TrimSpace(fields[transformIdx])
		}

		// An attr already in the list, by key or by title, is updated in place.
		for i := range *a {
			if (*a)[i].Key == attr.Key || strings.EqualFold((*a)[i].OutputKey, attr.Key) {
				(*a)[i].Include = attr.Include
				if len(fields) > outputIdx && strings.TrimSpace(fields[outputIdx]) != "" {
					(*a)[i].OutputKey = attr.OutputKey
				}
				(*a)[i].TransformSpec = attr.TransformSpec
				continue specloop
			}
		}

		*a = append(*a, attr)
	}

	return nil
}

// SetGlobalTransformSpec prepends the transform spec of the * entry, if any,
// to every attr in the list.
func (a *AttrList) SetGlobalTransformSpec() {
	spec := ""
	for _, attr := range *a {
		if attr.Key == "*" {
			spec = attr.TransformSpec
			break
		}
	}
	if spec == "" {
		return
	}

	for i := range *a {
		if (*a)[i].Key == "*" {
			continue
		}
		(*a)[i].TransformSpec = spec + "," + (*a)[i].TransformSpec
	}
}

// Columns returns the visible attrs as output columns.
func (a *AttrList) Columns() []output.Column {
	cols := make([]output.Column, 0, len(*a))
	for _, attr := range *a {
		if !attr.Include {
			continue
		}
		attr := attr
		cols = append(cols, output.Column{
			Title: attr.OutputKey,
			Path:  attr.Key,
			Format: func(v gjson.Result) string {
				var s string
				// Time conversion works on the raw value.
				if attr.format != nil && !strings.ContainsAny(attr.TransformSpec, "tT") {
					s = attr.format(v)
				} else {
					s = output.ResultToString(v, "-")
				}
				return attr.Transform(s)
			},
		})
	}
	return cols
}

// Columns applies an --attrs spec to a command's default columns.
func Columns(cols []output.Column, spec string) ([]output.Column, error) {
	if spec == "" {
		return cols, nil
	}
	list := FromColumns(cols)
	if err := list.Set(spec); err != nil {
		return nil, err
	}
	list.SetGlobalTransformSpec()
	return list.Columns(), nil
}
