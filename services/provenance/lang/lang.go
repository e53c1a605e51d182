// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lang describes the source languages the extractors understand.
//
// A Profile maps language-neutral concepts (branch, handler, function,
// type definition, comment, doc string) onto a tree-sitter grammar and a
// few lexical conventions.
package lang

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
)

// Kinds is a set of tree-sitter node types.
type Kinds map[string]struct{}

// Has reports whether kind is in the set.
func (k Kinds) Has(kind string) bool {
	_, ok := k[kind]
	return ok
}

func kinds(names ...string) Kinds {
	k := make(Kinds, len(names))
	for _, n := range names {
		k[n] = struct{}{}
	}
	return k
}

// Profile is the per-language configuration shared by the extractors.
type Profile struct {
	// Name is the config value selecting this profile.
	Name string

	// Grammar returns the tree-sitter language.
	Grammar func() *sitter.Language

	// Complexity counts as one decision point each.
	Complexity Kinds
	// ErrorHandling marks the presence of exception handling.
	ErrorHandling Kinds
	// Functions are function or method definitions.
	Functions Kinds
	// Classes are class or named type definitions.
	Classes Kinds
	// Ignored node types are skipped with their subtrees.
	Ignored Kinds

	// HandlesError is consulted for nodes not in ErrorHandling, for
	// languages whose error handling is not a dedicated construct.
	HandlesError func(n *sitter.Node, src []byte) bool

	// CommentPrefix starts a full-line comment.
	CommentPrefix string
	// Keywords are excluded from identifier statistics.
	Keywords Kinds
	// HasDocs reports whether code contains documentation strings.
	HasDocs func(code string) bool
}

// IsKeyword reports whether word is excluded from identifier statistics.
func (p *Profile) IsKeyword(word string) bool {
	return p.Keywords.Has(word)
}

var profiles = map[string]*Profile{
	"python": {
		Name:          "python",
		Grammar:       python.GetLanguage,
		Complexity:    kinds("if_statement", "elif_clause", "while_statement", "for_statement", "except_clause", "except_group_clause"),
		ErrorHandling: kinds("try_statement", "except_clause", "except_group_clause"),
		Functions:     kinds("function_definition"),
		Classes:       kinds("class_definition"),
		Ignored:       kinds("comment"),
		CommentPrefix: "#",
		Keywords:      kinds("if", "for", "while", "def", "class", "return", "import"),
		HasDocs: func(code string) bool {
			return strings.Contains(code, `"""`) || strings.Contains(code, "'''")
		},
	},
	"javascript": {
		Name:          "javascript",
		Grammar:       javascript.GetLanguage,
		Complexity:    kinds("if_statement", "while_statement", "do_statement", "for_statement", "for_in_statement", "catch_clause"),
		ErrorHandling: kinds("try_statement", "catch_clause"),
		Functions: kinds("function_declaration", "generator_function_declaration", "function",
			"function_expression", "arrow_function", "method_definition"),
		Classes:       kinds("class_declaration", "class"),
		Ignored:       kinds("comment"),
		CommentPrefix: "//",
		Keywords: kinds("if", "for", "while", "function", "class", "return",
			"import", "const", "let", "var"),
		HasDocs: func(code string) bool {
			return strings.Contains(code, "/**")
		},
	},
	"go": {
		Name:          "go",
		Grammar:       golang.GetLanguage,
		Complexity:    kinds("if_statement", "for_statement", "expression_case", "type_case", "communication_case"),
		ErrorHandling: kinds(),
		HandlesError:  goHandlesError,
		Functions:     kinds("function_declaration", "method_declaration", "func_literal"),
		Classes:       kinds("type_spec"),
		Ignored:       kinds("comment"),
		CommentPrefix: "//",
		Keywords: kinds("if", "for", "func", "type", "return", "import",
			"package", "var"),
		HasDocs: goDocComment.MatchString,
	},
}

// goDocComment matches a line comment directly above a declaration.
var goDocComment = regexp.MustCompile(`(?m)^//\s*\S.*\n(func|type|var|const)\b`)

// goHandlesError treats `if err != nil` style checks as error handling.
func goHandlesError(n *sitter.Node, src []byte) bool {
	if n.Type() != "if_statement" {
		return false
	}
	cond := n.ChildByFieldName("condition")
	if cond == nil {
		return false
	}
	text := cond.Content(src)
	return strings.Contains(text, "err") && strings.Contains(text, "nil")
}

// Lookup returns the profile registered under name.
func Lookup(name string) (*Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unsupported language %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return p, nil
}

// Names lists the supported languages in sorted order.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
