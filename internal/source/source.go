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

// Package source opens the byte stream a Reader decodes, whether that is a
// plain local file or a remote URL fetched by forking curl and reading its
// stdout. This mirrors osmium::io::Reader::open_input_file_or_url: a scheme
// of http, https, ftp, or file means "fetch it", a location without a scheme
// means "open it", and any other scheme is rejected.
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Source is an open, readable byte stream plus whatever teardown closing it
// requires.
type Source struct {
	r    io.ReadCloser
	cmd  *exec.Cmd
	g    *errgroup.Group
	done func() error
}

// Open opens location, which is either a local path or a URL with an http,
// https, ftp, or file scheme. A URL is fetched by forking curl; a local path
// is opened directly with os.Open.
func Open(ctx context.Context, location string) (*Source, error) {
	if scheme, ok := urlScheme(location); ok {
		switch scheme {
		case "http", "https", "ftp", "file":
			return openCommand(ctx, location)
		default:
			return nil, fmt.Errorf("source: unsupported URL scheme %q", scheme)
		}
	}

	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}

	return &Source{r: f}, nil
}

func urlScheme(location string) (string, bool) {
	i := strings.Index(location, "://")
	if i <= 0 {
		return "", false
	}

	return location[:i], true
}

// openCommand forks `curl -s -f -g <url>`, dropping stdin and logging
// stderr, and hands back curl's stdout as the stream to read. The -g flag
// disables curl's globbing of characters like [ and ] in the URL, which
// real OSM replication URLs can contain.
func openCommand(ctx context.Context, url string) (*Source, error) {
	cmd := exec.CommandContext(ctx, "curl", "-s", "-f", "-g", url)

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return nil, fmt.Errorf("source: opening %s: %w", os.DevNull, err)
	}

	cmd.Stdin = devNull

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = devNull.Close()

		return nil, fmt.Errorf("source: creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = devNull.Close()

		return nil, fmt.Errorf("source: creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		_ = devNull.Close()

		return nil, fmt.Errorf("source: starting curl: %w", err)
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer devNull.Close()

		buf := make([]byte, 4096)

		for {
			n, err := stderr.Read(buf)
			if n > 0 {
				slog.Warn("curl", "stderr", string(buf[:n]))
			}

			if err != nil {
				return nil
			}
		}
	})

	return &Source{r: stdout, cmd: cmd, g: g}, nil
}

// Read implements io.Reader.
func (s *Source) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// Close releases the underlying file or waits for curl to exit, returning a
// non-nil error if curl exited with a non-zero status.
func (s *Source) Close() error {
	if s.cmd == nil {
		return s.r.Close()
	}

	_ = s.g.Wait()

	if err := s.cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if ok := asExitError(err, &exitErr); ok {
			return fmt.Errorf("source: curl exited with status %d", exitErr.ExitCode())
		}

		return fmt.Errorf("source: waiting for curl: %w", err)
	}

	return nil
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}

	return ok
}
