// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oshima/ec2-backup/internal/output"
	"github.com/oshima/ec2-backup/internal/schedule"
)

type FlagValidatorType func(any) error

func FlagValidators(value any, validators ...FlagValidatorType) error {
	for _, v := range validators {
		if err := v(value); err != nil {
			return err
		}
	}
	return nil
}

// JammedFlagValidator verifies that the arg following a flag does not begin
// with '--'.  urfave/cli allows this and I don't see how to turn it off.
func JammedFlagValidator(value any) error {
	if s, ok := value.(string); ok && strings.HasPrefix(s, "--") {
		return errors.New("must not begin with '--'")
	}
	return nil
}

func OutputValidator(value any) error {
	return OneOfValidator(output.Formats...)(value)
}

// OneOfValidator accepts only the listed strings.
func OneOfValidator(valid ...string) FlagValidatorType {
	return func(value any) error {
		s, _ := value.(string)
		if !slices.Contains(valid, s) {
			return fmt.Errorf("must be one of %v", valid)
		}
		return nil
	}
}

// PositiveValidator accepts ints and durations greater than zero.
func PositiveValidator(value any) error {
	switch v := value.(type) {
	case int:
		if v < 1 {
			return errors.New("must be positive")
		}
	case time.Duration:
		if v <= 0 {
			return errors.New("must be positive")
		}
	default:
		return fmt.Errorf("unsupported value %T", value)
	}
	return nil
}

// EventTimeValidator accepts the scheduled event time layout.
func EventTimeValidator(value any) error {
	s, _ := value.(string)
	if _, err := time.Parse(schedule.EventTimeLayout, s); err != nil {
		return fmt.Errorf("must look like %s", schedule.EventTimeLayout)
	}
	return nil
}

// GenerationValidator accepts a generation count.
func GenerationValidator(value any) error {
	s, _ := value.(string)
	_, err := schedule.ParseGeneration(s)
	return err
}
