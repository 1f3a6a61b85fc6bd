package jsembed

import (
	"fmt"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
)

// TranspileOptions controls source preprocessing before evaluation.
type TranspileOptions struct {
	// TypeScript strips type annotations so .ts sources can run directly.
	TypeScript bool
	// Minify shrinks the output, useful for scripts stored or shipped
	// after preprocessing.
	Minify bool
	// SourceName appears in transform error messages.
	SourceName string
}

// Transpile lowers a script to ES2020 so modern syntax runs on the engine
// regardless of which features it supports natively.
func Transpile(source string, opts TranspileOptions) (string, error) {
	topts := esbuild.TransformOptions{
		Target:     esbuild.ES2020,
		Loader:     esbuild.LoaderJS,
		Sourcefile: opts.SourceName,
	}
	if opts.TypeScript {
		topts.Loader = esbuild.LoaderTS
	}
	if opts.Minify {
		topts.MinifyWhitespace = true
		topts.MinifyIdentifiers = true
		topts.MinifySyntax = true
	}

	result := esbuild.Transform(source, topts)
	if len(result.Errors) > 0 {
		var msgs []string
		for _, e := range result.Errors {
			msgs = append(msgs, e.Text)
		}
		return "", fmt.Errorf("transpiling script: %s", strings.Join(msgs, "; "))
	}
	return string(result.Code), nil
}
