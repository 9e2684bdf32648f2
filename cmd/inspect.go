// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"io"

	"github.com/featurebasedb/wiki2qid/ctl"
	"github.com/spf13/cobra"
)

func newInspectCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	cmd := ctl.NewInspectCommand(stdin, stdout, stderr)
	ccmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the records of an output file.",
		Long: `
Prints the records of a file written by build as a table, followed by the
record count and the digest of the record set. Two files with the same
digest hold the same records, whatever their order or compression.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cmd.Path = args[0]
			return cmd.Run(c.Context())
		},
	}
	ccmd.Flags().IntVarP(&cmd.Limit, "limit", "n", cmd.Limit, "maximum number of records to print; 0 prints all")
	return ccmd
}
