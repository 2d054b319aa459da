// Command ssc is the shader SSA IR compiler CLI.
//
// Usage:
//
//	ssc [options] <input>
//
// Examples:
//
//	ssc shader.wgsl                              # Compile WGSL to SPIR-V
//	ssc -o shader.spv shader.wgsl                # Compile to SPIR-V, to a file
//	ssc -from glsl -stage fragment shader.frag   # Compile GLSL to SPIR-V
//	ssc -from msl -to wgsl shader.metal          # Translate MSL to WGSL text
//	ssc -debug shader.wgsl                       # Compile with debug info
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/shaderlab/ssair"
	"github.com/shaderlab/ssair/ir"
)

var (
	output      = flag.String("o", "", "output file (default: stdout)")
	fromFlag    = flag.String("from", "wgsl", "source dialect: wgsl, glsl, msl")
	toFlag      = flag.String("to", "spirv", "target dialect: spirv, wgsl, msl, glsl")
	stageFlag   = flag.String("stage", "", "pipeline stage for -from glsl: vertex, fragment, compute")
	debugFlag   = flag.Bool("debug", false, "include debug info")
	validate    = flag.Bool("validate", true, "validate IR")
	versionFlag = flag.Bool("version", false, "print version")
)

// version returns the module version from build info.
func version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

func parseStage(s string) (ir.ShaderStage, error) {
	switch s {
	case "vertex":
		return ir.StageVertex, nil
	case "fragment":
		return ir.StageFragment, nil
	case "compute":
		return ir.StageCompute, nil
	case "":
		return ir.StageFragment, nil
	default:
		return 0, fmt.Errorf("unknown -stage %q (want vertex, fragment, or compute)", s)
	}
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *versionFlag {
		fmt.Printf("ssc version %s\n", version())
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: no input file specified")
		usage()
		os.Exit(1)
	}

	inputPath := args[0]

	source, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	stage, err := parseStage(*stageFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts := ssair.DefaultTranslateOptions()
	opts.From = ssair.SourceDialect(*fromFlag)
	opts.To = ssair.TargetDialect(*toFlag)
	opts.Stage = stage
	opts.Debug = *debugFlag
	opts.Validate = *validate

	out, err := ssair.Translate(string(source), opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compilation error: %v\n", err)
		os.Exit(1)
	}

	if *output != "" {
		err = os.WriteFile(*output, out, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Successfully compiled %s to %s (%d bytes)\n", inputPath, *output, len(out))
	} else {
		_, err = os.Stdout.Write(out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			os.Exit(1)
		}
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: ssc [options] <input>\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  ssc shader.wgsl                            Compile WGSL to SPIR-V\n")
	fmt.Fprintf(os.Stderr, "  ssc -o shader.spv shader.wgsl              Compile to a file\n")
	fmt.Fprintf(os.Stderr, "  ssc -from glsl -stage fragment shader.frag Compile GLSL to SPIR-V\n")
	fmt.Fprintf(os.Stderr, "  ssc -from msl -to wgsl shader.metal        Translate MSL to WGSL text\n")
	fmt.Fprintf(os.Stderr, "  ssc -debug shader.wgsl                     Include debug info\n")
}
