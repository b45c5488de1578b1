// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"os"
)

// Fatal writes "fedcheck: err" to stderr and exits with code. Codes
// follow the CLI convention: 1 for a failed run, 2 for bad usage or
// configuration.
func Fatal(err error, code int) {
	fmt.Fprintf(os.Stderr, "fedcheck: %v\n", err)
	os.Exit(code)
}
