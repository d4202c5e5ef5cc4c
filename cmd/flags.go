// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd contains helpers shared by the binaries.
package cmd

import (
	"errors"
	"flag"
	"os"

	"bitbucket.org/creachadair/shell"
)

// ParseFlagFile parses flags from the file at path into flag.CommandLine, then re-parses the
// command line so that flags given there take precedence over those in the file.
// Environment variables in the file are expanded.
func ParseFlagFile(path string) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return parseFlags(flag.CommandLine, string(contents), os.Args[1:])
}

func parseFlags(fs *flag.FlagSet, contents string, cliArgs []string) error {
	args, valid := shell.Split(contents)
	if !valid {
		return errors.New("flag file contains unclosed quotations")
	}
	for i, arg := range args {
		args[i] = os.ExpandEnv(arg)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	return fs.Parse(cliArgs)
}
