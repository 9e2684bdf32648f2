// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
/*
This is the entrypoint for the wiki2qid binary.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/featurebasedb/wiki2qid/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	rootCmd := cmd.NewRootCommand(os.Stdin, os.Stdout, os.Stderr)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
