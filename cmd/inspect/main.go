// Command inspect shows how host classes look from the dynamic runtime:
// their mirrored MRO, fields and methods, and which overload a call
// would select.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/embed-runtime/bridge"
	"github.com/wippyai/embed-runtime/config"
	"github.com/wippyai/embed-runtime/host"
	"github.com/wippyai/embed-runtime/telemetry"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to a TOML config file")
		typeName    = flag.String("type", "", "Fully-qualified class to describe")
		method      = flag.String("method", "", "Method to resolve (requires -type)")
		args        = flag.String("args", "", "Comma-separated call arguments: 1, 2.5, true, None, \"text\"")
		list        = flag.Bool("list", false, "List mirrorable classes and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if !*list && !*interactive && *typeName == "" {
		fmt.Fprintln(os.Stderr, "Usage: inspect -type <class> [-method name -args a,b]")
		fmt.Fprintln(os.Stderr, "       inspect -list")
		fmt.Fprintln(os.Stderr, "       inspect -i  (interactive mode)")
		os.Exit(1)
	}

	if err := run(*configFile, *typeName, *method, *args, *list, *interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, typeName, method, argStr string, listOnly, interactive bool) error {
	ctx := context.Background()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := telemetry.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	tp, shutdown, err := telemetry.SetupTracing(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	classes := host.Standard()
	b, err := bridge.New(classes,
		bridge.WithConfig(cfg),
		bridge.WithLogger(logger),
		bridge.WithTracerProvider(tp),
	)
	if err != nil {
		return fmt.Errorf("create bridge: %w", err)
	}
	defer b.Close()
	ctx = b.Attach(ctx)

	if interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("interactive mode needs a terminal")
		}
		return runInteractive(ctx, b)
	}

	if listOnly {
		for _, name := range mirrorable(classes) {
			fmt.Println(name)
		}
		return nil
	}

	mt, err := b.LookupClass(ctx, typeName)
	if err != nil {
		return err
	}

	if method == "" {
		title, section, item := plainStyles()
		fmt.Print(describe(mt).render(title, section, item))
		return nil
	}

	callArgs, err := parseArgs(argStr)
	if err != nil {
		return err
	}
	out, err := invoke(ctx, b, mt, method, callArgs)
	if err != nil {
		return fmt.Errorf("call %s.%s: %w", typeName, method, err)
	}
	fmt.Println(out)
	return nil
}

// plainStyles styles output only when stdout is a terminal.
func plainStyles() (title, section, item styler) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return plain, plain, plain
	}
	return titleStyle.Render, lipgloss.NewStyle().Bold(true).Render, funcStyle.Render
}
