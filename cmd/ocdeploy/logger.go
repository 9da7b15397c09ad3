/*
Copyright 2021 Stefan Prodan

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
)

type stderrLogger struct {
	stderr io.Writer
}

// Println writes the values space separated, the first value is
// usually one of the ✗ ► ✔ markers.
func (l stderrLogger) Println(a ...interface{}) {
	fmt.Fprintln(l.stderr, a...)
}

func (l stderrLogger) Actionf(format string, a ...interface{}) {
	l.Println(`►`, fmt.Sprintf(format, a...))
}

func (l stderrLogger) Successf(format string, a ...interface{}) {
	l.Println(`✔`, fmt.Sprintf(format, a...))
}

func (l stderrLogger) Failuref(format string, a ...interface{}) {
	l.Println(`✗`, fmt.Sprintf(format, a...))
}

// Logr returns a logr.Logger that writes to stderr when --verbose is set
// and discards everything otherwise.
func (l stderrLogger) Logr() logr.Logger {
	if !rootArgs.verbose {
		return logr.Discard()
	}
	return funcr.New(func(prefix, args string) {
		msg := strings.TrimSpace(strings.Join([]string{prefix, args}, " "))
		l.Println(`•`, msg)
	}, funcr.Options{Verbosity: 1})
}
