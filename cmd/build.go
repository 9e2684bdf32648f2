// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"io"

	"github.com/featurebasedb/wiki2qid/ctl"
	"github.com/spf13/cobra"
)

// Builder is the command run by "wiki2qid build". It is exported so that
// tests can check the configuration it ended up with.
var Builder *ctl.BuildCommand

func newBuildCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	Builder = ctl.NewBuildCommand(stdin, stdout, stderr)
	cmd := Builder
	ccmd := &cobra.Command{
		Use:   "build",
		Short: "Build the title to Wikidata item mapping.",
		Long: `
Reads the page, page_props and redirect tables of a Wikipedia SQL dump and
writes an Avro object container file with one record per article title in
the main namespace.

Inputs may be local files, s3://bucket/key or http(s):// URLs; names ending
in .gz are decompressed. The output may be a local file or an s3:// URL.
`,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Run(c.Context())
		},
	}

	flags := ccmd.Flags()
	flags.StringVar(&cmd.InputPage, "input-page", "", "page table dump")
	flags.StringVar(&cmd.InputPageProps, "input-page-props", "", "page_props table dump")
	flags.StringVar(&cmd.InputRedirect, "input-redirect", "", "redirect table dump")
	flags.StringVarP(&cmd.Output, "output", "o", "", "Avro file to write")
	flags.BoolVar(&cmd.NormalizeRedirects, "normalize-redirects", cmd.NormalizeRedirects, "NFC-normalize redirect targets before looking them up")
	flags.BoolVar(&cmd.Sorted, "sorted", cmd.Sorted, "write records in title order")
	flags.StringVar(&cmd.Codec, "codec", cmd.Codec, "block compression: null, deflate or snappy")
	flags.IntVar(&cmd.BlockSize, "block-size", cmd.BlockSize, "records per Avro block")
	flags.BoolVar(&cmd.Concurrent, "concurrent", cmd.Concurrent, "load page and page_props concurrently")
	flags.IntVar(&cmd.PageColumns, "page-columns", cmd.PageColumns, "column count of the page table")
	flags.IntVar(&cmd.PagePropsColumns, "page-props-columns", cmd.PagePropsColumns, "column count of the page_props table")
	flags.IntVar(&cmd.RedirectColumns, "redirect-columns", cmd.RedirectColumns, "column count of the redirect table")
	flags.StringVar(&cmd.MetricsPath, "metrics-path", "", "write prometheus metrics to this file when done")
	flags.StringVar(&cmd.LogPath, "log-path", "", "log file (default stderr)")
	flags.BoolVar(&cmd.Verbose, "verbose", false, "enable debug logging")
	flags.StringVar(&cmd.AWSRegion, "aws-region", "", "AWS region for s3:// names (default from the environment)")
	return ccmd
}
