// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package ec2api

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrSnapshotInUse    = errors.New("snapshot in use")
	ErrInstanceNotFound = errors.New("no instance attached to volume")
	ErrThrottled        = errors.New("request throttled")
	ErrAccessDenied     = errors.New("access denied")
)

// classify wraps SDK errors carrying a known EC2 error code with the
// matching sentinel so callers can use errors.Is. The original error stays
// in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.ErrorCode() {
	case "InvalidSnapshot.NotFound", "InvalidSnapshotID.Malformed":
		return fmt.Errorf("%w: %w", ErrSnapshotNotFound, err)
	case "InvalidSnapshot.InUse":
		return fmt.Errorf("%w: %w", ErrSnapshotInUse, err)
	case "RequestLimitExceeded", "SnapshotCreationPerVolumeRateExceeded", "ResourceLimitExceeded":
		return fmt.Errorf("%w: %w", ErrThrottled, err)
	case "UnauthorizedOperation", "AuthFailure":
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	default:
		return err
	}
}
