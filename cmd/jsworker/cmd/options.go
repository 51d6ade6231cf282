package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/jsworker/internal/imports"
	"github.com/GriffinCanCode/jsworker/internal/serializer"
	"github.com/GriffinCanCode/jsworker/internal/worker"
)

// buildOptions turns name=file.js and name=json assignments into options.
func buildOptions(js, values []string) (worker.Options, error) {
	opts := worker.Options{}

	for _, a := range js {
		name, path, err := assignment(a)
		if err != nil {
			return nil, fmt.Errorf("--js: %w", err)
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("--js %s: %w", name, err)
		}
		if err := set(opts, name, worker.JS(strings.TrimSpace(string(src)))); err != nil {
			return nil, err
		}
	}

	for _, a := range values {
		name, raw, err := assignment(a)
		if err != nil {
			return nil, fmt.Errorf("--value: %w", err)
		}
		var v any
		if err := sonic.ConfigStd.UnmarshalFromString(raw, &v); err != nil {
			return nil, fmt.Errorf("--value %s: %w", name, err)
		}
		if err := set(opts, name, v); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

func assignment(s string) (string, string, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", "", fmt.Errorf("expected name=value, got %q", s)
	}
	if !serializer.IsIdentifier(name) {
		return "", "", fmt.Errorf("option name %q is not an identifier", name)
	}
	return name, value, nil
}

func set(opts worker.Options, name string, v any) error {
	if _, exists := opts[name]; exists {
		return fmt.Errorf("option %q given twice", name)
	}
	opts[name] = v
	return nil
}

// loadTable builds the module table from a manifest or a module directory.
// It returns nil when neither is given.
func loadTable(dir, pattern, manifest string) (imports.Table, error) {
	switch {
	case manifest != "":
		return imports.LoadManifest(manifest)
	case dir != "":
		return imports.LoadDir(dir, pattern)
	default:
		return nil, nil
	}
}

// getenv is a capability exposing the allowed environment variables.
func getenv(allowed []string) worker.Func {
	set := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		set[name] = true
	}

	return func(_ context.Context, args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("getenv takes one argument, got %d", len(args))
		}
		name, ok := args[0].(string)
		if !ok || !set[name] {
			return nil, fmt.Errorf("environment variable %v is not allowed", args[0])
		}
		v, ok := os.LookupEnv(name)
		if !ok {
			return nil, nil
		}
		return v, nil
	}
}
