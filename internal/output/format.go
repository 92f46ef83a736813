// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package output

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/gjson"
)

// Age renders an RFC 3339 timestamp relative to now, e.g. "3 days ago".
func Age(now func() time.Time) func(gjson.Result) string {
	return func(v gjson.Result) string {
		t, err := time.Parse(time.RFC3339Nano, v.String())
		if err != nil || t.IsZero() {
			return "-"
		}
		return humanize.RelTime(t, now(), "ago", "from now")
	}
}

// GiB renders a size given in GiB, e.g. "8.0 GiB".
func GiB(v gjson.Result) string {
	n := v.Int()
	if n <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(n) << 30)
}

// Count renders an integer with thousands separators.
func Count(v gjson.Result) string {
	return humanize.Comma(v.Int())
}
