// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License.
// See the LICENSE.txt file for the full license text.
//
// NOTE: Additional terms apply under AGPL v3 Section 7. See NOTICE.txt.

package solc

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestStripVersionPragma(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "strips pragma line",
			source: "// SPDX-License-Identifier: MIT\npragma solidity ^0.8.20;\n\ncontract A {}",
			want:   "// SPDX-License-Identifier: MIT\n\ncontract A {}",
		},
		{
			name:   "strips indented pragma",
			source: "  pragma solidity >=0.8.0 <0.9.0;\ncontract A {}",
			want:   "contract A {}",
		},
		{
			name:   "keeps other pragmas",
			source: "pragma abicoder v2;\ncontract A {}",
			want:   "pragma abicoder v2;\ncontract A {}",
		},
		{
			name:   "no pragma",
			source: "contract A {}",
			want:   "contract A {}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripVersionPragma(tt.source); got != tt.want {
				t.Errorf("StripVersionPragma() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want string
	}{
		{
			name: "solc two line banner",
			out:  "solc, the solidity compiler commandline interface\nVersion: 0.8.24+commit.e11b9ed9.Linux.g++\n",
			want: "0.8.24+commit.e11b9ed9.Linux.g++",
		},
		{
			name: "solcjs bare version",
			out:  "0.8.24+commit.e11b9ed9.Emscripten.clang\n",
			want: "0.8.24+commit.e11b9ed9.Emscripten.clang",
		},
		{
			name: "empty output",
			out:  "\n",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseVersion(tt.out); got != tt.want {
				t.Errorf("parseVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCollectLines(t *testing.T) {
	stderr := "Warning: Unused local variable.\n  --> contract.sol:10:5\n\nError: Expected ';' but got '}'\n"

	warnings := collectLines(stderr, true)
	if len(warnings) != 1 || !strings.Contains(warnings[0], "Unused local variable") {
		t.Errorf("warnings = %v, want single unused-variable warning", warnings)
	}

	errs := collectLines(stderr, false)
	if len(errs) != 2 {
		t.Fatalf("errors = %v, want 2 non-warning lines", errs)
	}
	if !strings.Contains(errs[1], "Expected ';'") {
		t.Errorf("errors[1] = %q, want the Expected ';' diagnostic", errs[1])
	}
}

func TestCheckUnavailable(t *testing.T) {
	var nilChecker *Checker
	if nilChecker.Available() {
		t.Error("nil checker should not be available")
	}

	c := &Checker{}
	result := c.Check(context.Background(), "contract A {}")
	if result.Available {
		t.Error("zero checker should report Available=false")
	}
	if result.Compiles || len(result.Errors) != 0 {
		t.Errorf("unavailable result should be empty, got %+v", result)
	}
}

// writeFakeCompiler installs a shell script named solc ahead of the real
// PATH so NewChecker resolves it.
func writeFakeCompiler(t *testing.T, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler scripts require a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "solc")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestCheckWithFakeCompiler(t *testing.T) {
	writeFakeCompiler(t, `#!/bin/sh
if [ "$1" = "--version" ]; then
  echo "solc, the solidity compiler commandline interface"
  echo "Version: 0.8.24+commit.fake"
  exit 0
fi
for a in "$@"; do src="$a"; done
if grep -q "pragma solidity" "$src"; then
  echo "Error: version pragma should have been stripped" >&2
  exit 1
fi
echo "Warning: Unused local variable." >&2
exit 0
`)

	c := NewChecker()
	if !c.Available() {
		t.Fatal("fake solc not picked up from PATH")
	}
	if c.version != "0.8.24+commit.fake" {
		t.Errorf("version = %q, want fake banner version", c.version)
	}

	result := c.Check(context.Background(), "pragma solidity ^0.8.20;\ncontract A {}\n")
	if !result.Available {
		t.Fatal("result should be available")
	}
	if !result.Compiles {
		t.Fatalf("compile should succeed, errors: %v", result.Errors)
	}
	if result.Compiler != "solc" || result.CompilerVersion != "0.8.24+commit.fake" {
		t.Errorf("compiler identity = %q %q", result.Compiler, result.CompilerVersion)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "Unused local variable") {
		t.Errorf("warnings = %v", result.Warnings)
	}
}

func TestCheckCompileFailure(t *testing.T) {
	writeFakeCompiler(t, `#!/bin/sh
if [ "$1" = "--version" ]; then
  echo "Version: 0.8.24+commit.fake"
  exit 0
fi
echo "Error: Expected ';' but got '}'" >&2
exit 1
`)

	c := NewChecker()
	if !c.Available() {
		t.Fatal("fake solc not picked up from PATH")
	}

	result := c.Check(context.Background(), "contract A {}\n")
	if result.Compiles {
		t.Error("compile should fail")
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "Expected ';'") {
		t.Errorf("errors = %v, want the Expected ';' diagnostic", result.Errors)
	}
}
