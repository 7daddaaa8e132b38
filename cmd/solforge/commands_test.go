// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findCommand(t *testing.T, parent *cobra.Command, name string) *cobra.Command {
	t.Helper()
	for _, cmd := range parent.Commands() {
		if cmd.Name() == name {
			return cmd
		}
	}
	t.Fatalf("command %q not registered under %q", name, parent.Name())
	return nil
}

func TestCommandTree(t *testing.T) {
	translate := findCommand(t, rootCmd, "translate")
	findCommand(t, rootCmd, "scan")

	dataset := findCommand(t, rootCmd, "dataset")
	findCommand(t, dataset, "pull")
	findCommand(t, dataset, "sample")
	findCommand(t, dataset, "stats")

	evalRoot := findCommand(t, rootCmd, "eval")
	findCommand(t, evalRoot, "run")

	runs := findCommand(t, rootCmd, "runs")
	findCommand(t, runs, "list")
	findCommand(t, runs, "show")
	findCommand(t, runs, "export")

	assert.NotNil(t, translate.Flags().Lookup("server"))
	assert.NotNil(t, translate.Flags().Lookup("backend"))
	assert.NotNil(t, translate.Flags().Lookup("max-refinements"))
}

func TestPersonalityFlagIsPersistent(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("personality")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}

func TestArgValidation(t *testing.T) {
	scan := findCommand(t, rootCmd, "scan")
	assert.Error(t, scan.Args(scan, []string{}))
	assert.NoError(t, scan.Args(scan, []string{"a.sol"}))

	translate := findCommand(t, rootCmd, "translate")
	assert.NoError(t, translate.Args(translate, []string{}))
	assert.Error(t, translate.Args(translate, []string{"a", "b"}))

	runs := findCommand(t, rootCmd, "runs")
	show := findCommand(t, runs, "show")
	assert.Error(t, show.Args(show, []string{}))
}
