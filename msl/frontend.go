// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package msl

import (
	"fmt"

	"github.com/shaderlab/ssair/ir"
	"github.com/shaderlab/ssair/wgsl"
)

// Stage mirrors the glsl package's re-export for callers that want to
// inspect or assert a parsed entry point's stage. Unlike GLSL, MSL source
// declares its own vertex/fragment/kernel qualifier per function, so
// Parse and Lower take no explicit stage parameter — topLevelDecl reads
// it straight off the keyword, the same way it already appears in the
// source.
type Stage = ir.ShaderStage

// Stage values, re-exported from ir for callers that only import msl.
const (
	StageVertex   = ir.StageVertex
	StageFragment = ir.StageFragment
	StageCompute  = ir.StageCompute
)

// Parse lexes and parses Metal Shading Language source into a
// *wgsl.Module. Resource parameters ([[buffer]]/[[texture]]/[[sampler]])
// are synthesized as module-scope globals; [[stage_in]] struct
// parameters and builtin-tagged parameters pass through as ordinary
// function parameters since their bindings already live on the struct
// member or parameter attribute list.
func Parse(source string) (*wgsl.Module, error) {
	toks, err := newLexer(source).tokenize()
	if err != nil {
		return nil, err
	}
	module, err := newParser(toks).parseModule()
	if err != nil {
		return nil, fmt.Errorf("msl: %w", err)
	}
	return module, nil
}

// Lower parses and lowers MSL source straight to the IR.
func Lower(source string) (*ir.Module, error) {
	module, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return wgsl.LowerWithSource(module, source)
}
