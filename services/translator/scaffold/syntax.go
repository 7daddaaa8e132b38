// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scaffold

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// checkPythonSyntax parses the source with tree-sitter's Python grammar and
// returns a description of the first syntax problem, or "" when the parse is
// clean. Parser construction is per call; tree-sitter parsers are not safe
// for concurrent use.
func checkPythonSyntax(ctx context.Context, source string) string {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, []byte(source))
	if err != nil {
		return fmt.Sprintf("syntax check did not run: %v", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !hasSyntaxError(root) {
		return ""
	}

	line := 0
	if errNode := findFirstError(root); errNode != nil {
		line = int(errNode.StartPoint().Row) + 1
	}
	return fmt.Sprintf("generated source has a syntax error near line %d", line)
}

// hasSyntaxError walks the AST for error or missing nodes.
func hasSyntaxError(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	if node.IsError() || node.IsMissing() {
		return true
	}
	for i := uint32(0); i < node.ChildCount(); i++ {
		if hasSyntaxError(node.Child(int(i))) {
			return true
		}
	}
	return false
}

// findFirstError returns the first error node in document order.
func findFirstError(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := uint32(0); i < node.ChildCount(); i++ {
		if err := findFirstError(node.Child(int(i))); err != nil {
			return err
		}
	}
	return nil
}
