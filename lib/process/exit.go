// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

// exit is replaced in tests.
var exit = os.Exit

// Fatal reports err from run() on stderr and exits with status 1.
// A --help request has already printed its usage, so only the status
// is set for it.
func Fatal(err error) {
	report(os.Stderr, err)
	exit(1)
}

func report(stderr io.Writer, err error) {
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
}
