package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasm-expand/expand"
	"github.com/wippyai/wasm-expand/wasm"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to wasm module")
		outFile     = flag.String("o", "", "Output path (default: overwrite input)")
		keysStr     = flag.String("keys", "", "Key slot values (0=111,3=0xdead,...)")
		namespace   = flag.String("namespace", "", "Marker import namespace (default: codegen)")
		strip       = flag.Bool("strip", true, "Remove marker imports after expansion")
		list        = flag.Bool("list", false, "List marker imports and exit")
		runFunc     = flag.String("run", "", "Execute an exported function after expansion")
		runArgs     = flag.String("args", "", "Arguments for -run (comma-separated integers)")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: expand -wasm <file.wasm> [-o out.wasm] [-keys 0=111,...]")
		fmt.Fprintln(os.Stderr, "       expand -wasm <file.wasm> -list")
		fmt.Fprintln(os.Stderr, "       expand -wasm <file.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		expand.SetLogger(logger)
	}

	keys, err := parseKeys(*keysStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: -i requires a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*wasmFile, *namespace, keys); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*wasmFile, *outFile, *namespace, keys, *strip, *list, *runFunc, *runArgs); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(wasmFile, outFile, namespace string, keys map[expand.KeySlot]uint32, strip, listOnly bool, runFunc, runArgs string) error {
	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	mod, err := wasm.DecodeModule(data)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	ns := namespace
	if ns == "" {
		ns = expand.DefaultNamespace
	}
	fmt.Printf("Module: %s\n", wasmFile)
	fmt.Printf("Imports: %d\n", len(mod.Imports))
	fmt.Printf("Functions: %d\n", len(mod.Code))

	markers := markerImports(mod, ns)
	fmt.Printf("\nMarker imports (%s):\n", ns)
	if len(markers) == 0 {
		fmt.Println("  (none)")
	}
	for _, m := range markers {
		fmt.Printf("  %s\n", m)
	}
	if listOnly {
		return nil
	}

	p := expand.New(mod, expand.Config{
		Namespace:   namespace,
		Keys:        keys,
		Placeholder: expand.PassthroughPlaceholder,
		Crypt:       expand.InlineXorCrypt,
	})
	if err := p.Expand(); err != nil {
		return fmt.Errorf("expand: %w", err)
	}
	if strip {
		if err := p.StripImports(); err != nil {
			return fmt.Errorf("strip: %w", err)
		}
	}
	out := wasm.EncodeModule(mod)

	target := outFile
	if target == "" {
		target = wasmFile
	}
	if err := os.WriteFile(target, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	fmt.Printf("\nWrote %s (%d bytes)\n", target, len(out))

	if runFunc != "" {
		return execute(out, runFunc, runArgs)
	}
	return nil
}

// execute instantiates the rewritten module and calls one export.
func execute(bin []byte, funcName, argsStr string) error {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	inst, err := rt.Instantiate(ctx, bin)
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}
	fn := inst.ExportedFunction(funcName)
	if fn == nil {
		return fmt.Errorf("export %q not found", funcName)
	}

	var args []uint64
	if argsStr != "" {
		for _, s := range strings.Split(argsStr, ",") {
			v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
			if err != nil {
				return fmt.Errorf("argument %q: %w", s, err)
			}
			args = append(args, v)
		}
	}

	fmt.Printf("\nCalling %s(%s)...\n", funcName, argsStr)
	results, err := fn.Call(ctx, args...)
	if err != nil {
		return fmt.Errorf("call %s: %w", funcName, err)
	}
	fmt.Printf("Result: %v\n", results)
	return nil
}

// parseKeys parses "0=111,3=0xdead" into a key slot mapping.
func parseKeys(s string) (map[expand.KeySlot]uint32, error) {
	keys := make(map[expand.KeySlot]uint32)
	if s == "" {
		return keys, nil
	}
	for _, kv := range strings.Split(s, ",") {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("key mapping %q: want slot=value", kv)
		}
		slot, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 8)
		if err != nil || slot >= expand.NumKeySlots {
			return nil, fmt.Errorf("key slot %q: want 0..%d", parts[0], expand.NumKeySlots-1)
		}
		value, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 0, 32)
		if err != nil {
			return nil, fmt.Errorf("key value %q: %w", parts[1], err)
		}
		keys[expand.KeySlot(slot)] = uint32(value)
	}
	return keys, nil
}

// markerImports renders the namespace's imports for display.
func markerImports(mod *wasm.Module, namespace string) []string {
	var out []string
	for _, imp := range mod.Imports {
		if imp.Module != namespace {
			continue
		}
		switch imp.Desc.Kind {
		case wasm.KindFunc:
			sig := "?"
			if int(imp.Desc.TypeIdx) < len(mod.Types) {
				sig = signatureString(mod.Types[imp.Desc.TypeIdx])
			}
			out = append(out, fmt.Sprintf("func   %s %s", imp.Name, sig))
		case wasm.KindGlobal:
			out = append(out, fmt.Sprintf("global %s %s", imp.Name, imp.Desc.Global.ValType))
		}
	}
	return out
}

func signatureString(ft wasm.FuncType) string {
	params := make([]string, len(ft.Params))
	for i, p := range ft.Params {
		params[i] = p.String()
	}
	results := make([]string, len(ft.Results))
	for i, r := range ft.Results {
		results[i] = r.String()
	}
	s := "(" + strings.Join(params, ", ") + ")"
	if len(results) > 0 {
		s += " -> " + strings.Join(results, ", ")
	}
	return s
}
