// Copyright 2017-25 the original author or authors.
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

package main

import "github.com/spf13/cobra"

// RootCmd is the pbfinfo entry point; every subcommand attaches to it from
// its own init.
var RootCmd = &cobra.Command{
	Use:   "pbfinfo",
	Short: "Inspect OpenStreetMap PBF files",
	Long:  "pbfinfo prints the header block of an OpenStreetMap PBF file, and optionally scans it for per-kind entity counts.",
}
