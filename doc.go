// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// ec2-backup is the entry point of the tag-driven EC2 snapshot scheduler. The
// same binary serves the root, local and remote Lambda functions and drives
// them from the command line or a long-running daemon.
package main
