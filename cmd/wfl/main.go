// Command wfl runs WebFirst Language scripts: lexing, parsing, analyzing,
// type-checking, and interpreting a single .wfl source file (§6).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/aledsdavies/wfl/internal/analyzer"
	"github.com/aledsdavies/wfl/internal/config"
	"github.com/aledsdavies/wfl/internal/diag"
	"github.com/aledsdavies/wfl/internal/dump"
	"github.com/aledsdavies/wfl/internal/interpreter"
	"github.com/aledsdavies/wfl/internal/lexer"
	"github.com/aledsdavies/wfl/internal/parser"
	"github.com/aledsdavies/wfl/internal/types"
)

// exit codes per §6: 0 success, 1 runtime error or analyzer warnings,
// 2 parse/type errors or CLI misuse.
const (
	exitOK            = 0
	exitRuntimeOrWarn = 1
	exitCompile       = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		lexOnly     bool
		astOnly     bool
		analyzeOnly bool
		step        bool
		timeout     int
		configPath  string
	)
	exitCode := exitOK

	root := &cobra.Command{
		Use:           "wfl <file>",
		Short:         "Run a WebFirst Language script",
		Version:       "0.1.0",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			source, err := os.ReadFile(cmdArgs[0])
			if err != nil {
				exitCode = exitCompile
				return err
			}
			src := string(source)

			if lexOnly {
				toks, err := lexer.Tokenize(src)
				if err != nil {
					fmt.Fprintln(os.Stderr, "error:", err)
					exitCode = exitCompile
					return nil
				}
				dump.Tokens(os.Stdout, toks)
				return nil
			}

			prog, errs := parser.Parse(src)
			if len(errs) > 0 {
				reportParseErrors(errs, src)
				exitCode = exitCompile
				return nil
			}

			if astOnly {
				dump.AST(os.Stdout, prog)
				return nil
			}

			result, diags := analyzer.Analyze(prog)
			hadError, hadWarning := reportSemanticDiagnostics(diags, src)
			if hadError || !result.OK {
				exitCode = exitCompile
				return nil
			}
			if analyzeOnly {
				if hadWarning {
					exitCode = exitRuntimeOrWarn
				}
				return nil
			}

			if typeErrs := types.Check(prog, result.ActionReturnTypes()); len(typeErrs) > 0 {
				reportTypeErrors(typeErrs, src)
				exitCode = exitCompile
				return nil
			}

			cfgPath := configPath
			if cfgPath == "" {
				cfgPath = filepath.Join(filepath.Dir(cmdArgs[0]), "wfl.config")
			}
			cfg := config.Default()
			if _, statErr := os.Stat(cfgPath); statErr == nil {
				loaded, warnings, err := config.Load(cfgPath)
				if err != nil {
					fmt.Fprintln(os.Stderr, "error: invalid configuration:", err)
					exitCode = exitCompile
					return nil
				}
				for _, w := range warnings {
					fmt.Fprintln(os.Stderr, "warning:", w.Message)
				}
				cfg = loaded
			}
			if !cmd.Flags().Changed("timeout") {
				timeout = cfg.TimeoutSeconds
			}

			opts := []interpreter.Option{interpreter.WithTimeout(time.Duration(timeout) * time.Second)}
			if step {
				opts = append(opts, interpreter.WithStepMode(os.Stdin))
				if _, statErr := os.Stat(cfgPath); statErr == nil {
					watcher, err := config.WatchFile(cfgPath, func(err error) {
						fmt.Fprintln(os.Stderr, "warning: config reload failed:", err)
					})
					if err == nil {
						defer watcher.Close()
					}
				}
			}
			in := interpreter.New(opts...)
			if _, err := in.Run(prog); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				exitCode = exitRuntimeOrWarn
				return nil
			}
			if hadWarning {
				exitCode = exitRuntimeOrWarn
			}
			return nil
		},
	}

	root.Flags().BoolVar(&lexOnly, "lex", false, "print the token stream and exit")
	root.Flags().BoolVar(&astOnly, "ast", false, "print the parsed AST and exit")
	root.Flags().BoolVar(&analyzeOnly, "analyze", false, "run only the analyzer")
	root.Flags().BoolVar(&step, "step", false, "interactive single-step execution")
	root.Flags().IntVar(&timeout, "timeout", 60, "wall-clock timeout in seconds (capped at 300)")
	root.Flags().StringVar(&configPath, "config", "", "path to a key=value config file (§6; defaults to wfl.config next to the script)")
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if exitCode == exitOK {
			exitCode = exitCompile
		}
	}
	return exitCode
}

func reportParseErrors(errs []*parser.ParseError, source string) {
	for _, e := range errs {
		diag.Report(os.Stderr, diag.Diagnostic{
			Severity: "error",
			Message:  e.Message,
			Line:     e.Line,
			Column:   e.Column,
		}, source)
	}
}

// reportSemanticDiagnostics prints every analyzer diagnostic and reports
// whether any was Error-severity and whether any was Warning-severity.
func reportSemanticDiagnostics(diags []analyzer.Diagnostic, source string) (hadError, hadWarning bool) {
	for _, d := range diags {
		severity := "warning"
		if d.Severity == analyzer.Error {
			severity = "error"
			hadError = true
		} else {
			hadWarning = true
		}
		diag.Report(os.Stderr, diag.Diagnostic{
			Severity: severity,
			Message:  d.Message,
			Line:     d.Line,
			Column:   d.Column,
		}, source)
	}
	return hadError, hadWarning
}

func reportTypeErrors(errs []*types.TypeError, source string) {
	for _, e := range errs {
		diag.Report(os.Stderr, diag.Diagnostic{
			Severity: "error",
			Message:  e.Error(),
			Line:     e.Line,
			Column:   e.Column,
		}, source)
	}
}
