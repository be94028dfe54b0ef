// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command slabdump opens a slab/ref database file read-only, verifies its
// structural invariants, and prints a diagnostic report. It is not part
// of the slab package's API; it exists the way lldb/lab/1/main.go and
// lldb/db_bench exist alongside package lldb.
package main

import (
	"fmt"
	"os"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/huishuyun/slabdb/mmapfile"
	"github.com/huishuyun/slabdb/slab"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		shared       bool
		serverSync   bool
		skipValidate bool
	)

	cmd := &cobra.Command{
		Use:   "slabdump <path>",
		Short: "Inspect a slab/ref database file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args[0], slab.AttachFileOptions{
				ReadOnly:       true,
				Shared:         shared,
				ServerSyncMode: serverSync,
				SkipValidate:   skipValidate,
			})
		},
	}

	cmd.Flags().BoolVar(&shared, "shared", false, "attach in shared (format-2-compatible) mode")
	cmd.Flags().BoolVar(&serverSync, "server-sync", false, "expect the server-sync bit to be set")
	cmd.Flags().BoolVar(&skipValidate, "skip-validate", false, "skip header validation (dangerous)")

	return cmd
}

func runDump(path string, opts slab.AttachFileOptions) error {
	logger := &log.Logger{
		Level:  log.InfoLevel,
		Writer: &log.ConsoleWriter{ColorOutput: true},
	}

	backend := mmapfile.Open()
	alloc := slab.NewAllocator(slab.PhusluLogger{L: logger})

	top, err := alloc.AttachFile(path, opts, backend)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("attach failed")
		return err
	}
	defer alloc.Detach()

	fmt.Printf("top ref: %d\n", top)

	stats, err := alloc.Verify()
	if err != nil {
		logger.Error().Err(err).Msg("verify failed")
		fmt.Printf("verify: FAILED: %v\n", err)
	} else {
		fmt.Printf("verify: OK (%d slab(s), %d total bytes, %d free mutable, %d free read-only)\n",
			stats.SlabCount, stats.TotalSlabBytes, stats.FreeMutableBytes, stats.FreeReadOnlyBytes)
	}

	alloc.Print(os.Stdout)
	return err
}
