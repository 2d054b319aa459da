// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package ssair is the top-level facade over the Shader SSA IR toolchain:
// a language-neutral intermediate representation plus the front ends that
// lower WGSL into it and the back ends that emit SPIR-V, WGSL, and MSL from
// it. Most callers only need this package and the target back end they
// want (spirv, wgsl, msl, glsl); ir is exposed for callers that build or
// inspect modules directly.
package ssair

import (
	"fmt"

	"github.com/shaderlab/ssair/glsl"
	"github.com/shaderlab/ssair/ir"
	"github.com/shaderlab/ssair/msl"
	"github.com/shaderlab/ssair/spirv"
	"github.com/shaderlab/ssair/wgsl"
)

// SourceDialect selects which front end parses an input source string.
type SourceDialect string

const (
	DialectWGSL SourceDialect = "wgsl"
	DialectGLSL SourceDialect = "glsl"
	DialectMSL  SourceDialect = "msl"
)

// TargetDialect selects which back end emits a compiled IR module.
type TargetDialect string

const (
	TargetSPIRV TargetDialect = "spirv"
	TargetWGSL  TargetDialect = "wgsl"
	TargetMSL   TargetDialect = "msl"
	TargetGLSL  TargetDialect = "glsl"
)

// LowerFrom parses source with the front end named by from and lowers it
// straight to the IR. GLSL has no way to spell its own pipeline stage, so
// stage is required whenever from is DialectGLSL and ignored otherwise.
func LowerFrom(source string, from SourceDialect, stage ir.ShaderStage) (*ir.Module, error) {
	switch from {
	case DialectWGSL, "":
		ast, err := Parse(source)
		if err != nil {
			return nil, err
		}
		return LowerWithSource(ast, source)
	case DialectGLSL:
		mod, err := glsl.Lower(source, stage)
		if err != nil {
			return nil, fmt.Errorf("ssair: glsl: %w", err)
		}
		return mod, nil
	case DialectMSL:
		mod, err := msl.Lower(source)
		if err != nil {
			return nil, fmt.Errorf("ssair: msl: %w", err)
		}
		return mod, nil
	default:
		return nil, fmt.Errorf("ssair: unknown source dialect %q", from)
	}
}

// Parse lexes and parses WGSL source into an AST, ready for Lower.
func Parse(source string) (*wgsl.Module, error) {
	lexer := wgsl.NewLexer(source)
	tokens, err := lexer.Tokenize()
	if err != nil {
		return nil, fmt.Errorf("ssair: lex: %w", err)
	}
	parser := wgsl.NewParser(tokens)
	module, err := parser.Parse()
	if err != nil {
		return nil, fmt.Errorf("ssair: parse: %w", err)
	}
	return module, nil
}

// LowerWithSource lowers a parsed WGSL AST to the IR, attributing
// diagnostics to source.
func LowerWithSource(module *wgsl.Module, source string) (*ir.Module, error) {
	mod, err := wgsl.LowerWithSource(module, source)
	if err != nil {
		return nil, fmt.Errorf("ssair: lower: %w", err)
	}
	return mod, nil
}

// CompileOptions configures the WGSL-to-SPIR-V convenience pipeline.
type CompileOptions struct {
	// SPIRVVersion is the target SPIR-V version.
	SPIRVVersion spirv.Version

	// Debug includes OpName/OpSource debug information in the output.
	Debug bool

	// Validate runs the structural validator over the IR before emission
	// and fails compilation if it reports any error-severity finding.
	Validate bool
}

// DefaultCompileOptions returns sensible defaults: SPIR-V 1.3, no debug
// info, validation enabled.
func DefaultCompileOptions() CompileOptions {
	return CompileOptions{
		SPIRVVersion: spirv.Version1_3,
		Validate:     true,
	}
}

// CompileWithOptions parses, lowers, optionally validates, and emits WGSL
// source as a SPIR-V binary in one call.
func CompileWithOptions(source string, opts CompileOptions) ([]byte, error) {
	ast, err := Parse(source)
	if err != nil {
		return nil, err
	}
	module, err := LowerWithSource(ast, source)
	if err != nil {
		return nil, err
	}
	if opts.Validate {
		if errs, err := ir.Validate(module); err != nil {
			return nil, fmt.Errorf("ssair: validate: %w", err)
		} else if len(errs) > 0 {
			return nil, fmt.Errorf("ssair: validation failed: %s", errs[0].Message)
		}
	}
	backend := spirv.NewBackend(spirv.Options{
		Version:    opts.SPIRVVersion,
		Debug:      opts.Debug,
		Validation: opts.Validate,
	})
	spirvBytes, err := backend.Compile(module)
	if err != nil {
		return nil, fmt.Errorf("ssair: spirv: %w", err)
	}
	return spirvBytes, nil
}

// Compile is CompileWithOptions with DefaultCompileOptions.
func Compile(source string) ([]byte, error) {
	return CompileWithOptions(source, DefaultCompileOptions())
}

// TranslateOptions configures the multi-dialect parse-lower-emit
// pipeline driven by the ssc CLI's -from/-to/-stage flags.
type TranslateOptions struct {
	From  SourceDialect
	To    TargetDialect
	Stage ir.ShaderStage

	Validate     bool
	Debug        bool
	SPIRVVersion spirv.Version
}

// DefaultTranslateOptions returns wgsl-to-spirv with validation enabled,
// the same defaults CompileWithOptions uses.
func DefaultTranslateOptions() TranslateOptions {
	return TranslateOptions{
		From:         DialectWGSL,
		To:           TargetSPIRV,
		SPIRVVersion: spirv.Version1_3,
		Validate:     true,
	}
}

// Translate parses source with opts.From, lowers it to the IR, optionally
// validates it, and emits it through opts.To's back end. Text-emitting
// targets (wgsl, glsl, msl) return their result UTF-8 encoded in the byte
// slice; spirv returns its binary module.
func Translate(source string, opts TranslateOptions) ([]byte, error) {
	module, err := LowerFrom(source, opts.From, opts.Stage)
	if err != nil {
		return nil, err
	}
	if opts.Validate {
		if errs, verr := ir.Validate(module); verr != nil {
			return nil, fmt.Errorf("ssair: validate: %w", verr)
		} else if len(errs) > 0 {
			return nil, fmt.Errorf("ssair: validation failed: %s", errs[0].Message)
		}
	}
	switch opts.To {
	case TargetSPIRV, "":
		version := opts.SPIRVVersion
		if version == (spirv.Version{}) {
			version = spirv.Version1_3
		}
		backend := spirv.NewBackend(spirv.Options{
			Version:    version,
			Debug:      opts.Debug,
			Validation: opts.Validate,
		})
		out, err := backend.Compile(module)
		if err != nil {
			return nil, fmt.Errorf("ssair: spirv: %w", err)
		}
		return out, nil
	case TargetWGSL:
		out, err := wgsl.Compile(module, wgsl.Options{})
		if err != nil {
			return nil, fmt.Errorf("ssair: wgsl: %w", err)
		}
		return []byte(out), nil
	case TargetMSL:
		out, _, err := msl.Compile(module, msl.Options{})
		if err != nil {
			return nil, fmt.Errorf("ssair: msl: %w", err)
		}
		return []byte(out), nil
	case TargetGLSL:
		out, _, err := glsl.Compile(module, glsl.Options{})
		if err != nil {
			return nil, fmt.Errorf("ssair: glsl: %w", err)
		}
		return []byte(out), nil
	default:
		return nil, fmt.Errorf("ssair: unknown target dialect %q", opts.To)
	}
}
