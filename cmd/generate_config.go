// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"io"

	"github.com/featurebasedb/wiki2qid/ctl"
	"github.com/spf13/cobra"
)

var generateConf *ctl.GenerateConfigCommand

func newGenerateConfigCommand(stdin io.Reader, stdout io.Writer, stderr io.Writer) *cobra.Command {
	generateConf = ctl.NewGenerateConfigCommand(stdin, stdout, stderr)
	confCmd := &cobra.Command{
		Use:   "generate-config",
		Short: "Print the default build configuration.",
		Long: `generate-config prints the default build configuration to stdout
in a form accepted by build --config.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateConf.Run(cmd.Context())
		},
	}

	return confCmd
}
