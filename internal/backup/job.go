// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/oshima/ec2-backup/internal/schedule"
)

// Snapshot tag keys written on every managed snapshot.
const (
	TagType     = "Type"
	TagVolumeID = "VolumeId"
	TagName     = "Name"
)

var (
	ErrInvalidJob = errors.New("invalid backup job")
	ErrInvalidARN = errors.New("invalid snapshot ARN")
)

// Generation is the retention count as carried in the leaf payload. It is
// the raw instance tag value, so it arrives as a string, but numbers are
// accepted too.
type Generation string

// UnmarshalJSON accepts a string, a number or null.
func (g *Generation) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*g = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*g = Generation(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	*g = Generation(n.String())
	return nil
}

// Int parses the generation.
func (g Generation) Int() (int, error) {
	return schedule.ParseGeneration(string(g))
}

// Job is the payload the root function sends to the leaf function.
type Job struct {
	Type       string     `json:"Type"`
	VolumeID   string     `json:"VolumeId"`
	Name       string     `json:"Name"`
	Generation Generation `json:"Generation"`
}

// Validate checks the job and returns its parsed type and generation.
func (j Job) Validate() (schedule.Type, int, error) {
	typ, err := schedule.ParseType(j.Type)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	if strings.TrimSpace(j.VolumeID) == "" {
		return "", 0, fmt.Errorf("%w: missing volume id", ErrInvalidJob)
	}
	gen, err := j.Generation.Int()
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	return typ, gen, nil
}

// Tags returns the tag set written on the job's snapshots.
func (j Job) Tags() map[string]string {
	return map[string]string{
		TagType:     j.Type,
		TagVolumeID: j.VolumeID,
		TagName:     j.Name,
	}
}

func (j Job) String() string {
	return fmt.Sprintf("%s, %s, %s", j.Type, j.VolumeID, j.Name)
}

// SnapshotIDFromARN returns the resource id of a snapshot ARN such as
// arn:aws:ec2::us-east-1:snapshot/snap-0123. A bare snapshot id is returned
// unchanged.
func SnapshotIDFromARN(arn string) (string, error) {
	arn = strings.TrimSpace(arn)
	if strings.HasPrefix(arn, "snap-") {
		return arn, nil
	}
	idx := strings.Index(arn, "/")
	if idx < 0 || idx == len(arn)-1 {
		return "", fmt.Errorf("%w: %q", ErrInvalidARN, arn)
	}
	return arn[idx+1:], nil
}
