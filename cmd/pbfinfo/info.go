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

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"
	pb "gopkg.in/cheggaaa/pb.v1"

	"github.com/spf13/cobra"
	"osmstream.dev/pbf"
	"osmstream.dev/pbf/model"
)

type extendedHeader struct {
	model.Header

	NodeCount     int64
	WayCount      int64
	RelationCount int64
}

func init() {
	RootCmd.AddCommand(infoCmd)

	flags := infoCmd.Flags()
	flags.BoolP("json", "j", false, "format information in JSON")
	flags.BoolP("extended", "e", false, "provide extended information (scans the entire file)")
	flags.IntP("workers", "w", runtime.GOMAXPROCS(-1), "number of goroutines to use for the extended scan")
	flags.BoolP("progress", "p", true, "show a progress bar while scanning (extended mode only)")
}

var infoCmd = &cobra.Command{
	Use:   "info <OSM PBF file or URL>",
	Short: "Print the header block of an OSM PBF file",
	Long:  "Print the header block of an OSM PBF file, and optionally scan the whole file for per-kind entity counts.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()

		jsonfmt, err := flags.GetBool("json")
		if err != nil {
			return err
		}

		extended, err := flags.GetBool("extended")
		if err != nil {
			return err
		}

		workers, err := flags.GetInt("workers")
		if err != nil {
			return err
		}

		progress, err := flags.GetBool("progress")
		if err != nil {
			return err
		}

		info, err := runInfo(cmd.Context(), args[0], workers, extended, progress && !jsonfmt)
		if err != nil {
			return err
		}

		if jsonfmt {
			return renderJSON(cmd.OutOrStdout(), info, extended)
		}

		renderTxt(cmd.OutOrStdout(), info, extended)

		return nil
	},
}

func runInfo(ctx context.Context, location string, workers int, extended, progress bool) (*extendedHeader, error) {
	r, err := pbf.NewReader(ctx, location, pbf.WithWorkers(workers))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	info := &extendedHeader{Header: r.Header()}

	if !extended {
		return info, nil
	}

	var bar *pb.ProgressBar
	if progress {
		bar = pb.New(0)
		bar.ShowBar = false
		bar.ShowSpeed = true
		bar.SetUnits(pb.U_NO)
		bar.Output = os.Stderr
		bar.Start()

		defer func() {
			bar.NotPrint = true
			bar.Finish()
			fmt.Fprint(os.Stderr, "\033[2K\r")
		}()
	}

	for {
		e, err := r.Decode(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return nil, err
		}

		switch e.(type) {
		case *model.Node:
			info.NodeCount++
		case *model.Way:
			info.WayCount++
		case *model.Relation:
			info.RelationCount++
		default:
			log.Fatalf("pbfinfo: unknown entity type %T\n", e)
		}

		if bar != nil {
			bar.Increment()
		}
	}

	return info, nil
}

func renderJSON(w io.Writer, info *extendedHeader, extended bool) error {
	var v interface{}
	if extended {
		v = info
	} else {
		v = info.Header
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))

	return err
}

func renderTxt(w io.Writer, info *extendedHeader, extended bool) {
	bbox := "<none>"
	if info.BoundingBox != nil {
		bbox = info.BoundingBox.String()
	}

	fmt.Fprintf(w, "BoundingBox: %s\n", bbox)
	fmt.Fprintf(w, "RequiredFeatures: %s\n", strings.Join(info.RequiredFeatures, ", "))
	fmt.Fprintf(w, "OptionalFeatures: %s\n", strings.Join(info.OptionalFeatures, ", "))
	fmt.Fprintf(w, "WritingProgram: %s\n", info.WritingProgram)
	fmt.Fprintf(w, "Source: %s\n", info.Source)
	fmt.Fprintf(w, "OsmosisReplicationTimestamp: %s\n", info.OsmosisReplicationTimestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "OsmosisReplicationSequenceNumber: %d\n", info.OsmosisReplicationSequenceNumber)
	fmt.Fprintf(w, "OsmosisReplicationBaseURL: %s\n", info.OsmosisReplicationBaseURL)
	fmt.Fprintf(w, "PBFDenseNodes: %t\n", info.PBFDenseNodes)
	fmt.Fprintf(w, "HasMultipleObjectVersions: %t\n", info.HasMultipleObjectVersions)

	if unsupported := info.Header.UnsupportedFeatures(); len(unsupported) > 0 {
		fmt.Fprintf(w, "UnsupportedFeatures: %s\n", strings.Join(unsupported, ", "))
	}

	if extended {
		fmt.Fprintf(w, "NodeCount: %s\n", humanize.Comma(info.NodeCount))
		fmt.Fprintf(w, "WayCount: %s\n", humanize.Comma(info.WayCount))
		fmt.Fprintf(w, "RelationCount: %s\n", humanize.Comma(info.RelationCount))
	}
}
