package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/frederic-klein/cpanfile/internal/cpanfile"
	"github.com/frederic-klein/cpanfile/internal/meta"
	"github.com/frederic-klein/cpanfile/internal/prereqs"
	"github.com/frederic-klein/cpanfile/internal/snapshot"
)

var (
	cpanfilePath string
	verbose      bool
	format       string
	strict       bool
	writeBack    bool
	snapshotPath string
	phaseNames   []string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "cpanfile",
		Short:        "Read, format and check cpanfile dependency declarations",
		Long:         "cpanfile parses Perl cpanfile declarations into a phase/relation/module model, re-renders them, converts META files and checks them against a Carton snapshot.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cpanfilePath, "cpanfile", "f", "./cpanfile", "Input cpanfile path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	parseCmd := &cobra.Command{
		Use:   "parse",
		Short: "Print the requirements declared in a cpanfile",
		Args:  cobra.NoArgs,
		RunE:  runParse,
	}
	parseCmd.Flags().StringVar(&format, "format", "json", "Output format: json, yaml or text")
	parseCmd.Flags().BoolVar(&strict, "strict", false, "Fail when any text was skipped")

	fmtCmd := &cobra.Command{
		Use:   "fmt",
		Short: "Re-render a cpanfile in canonical layout",
		Args:  cobra.NoArgs,
		RunE:  runFmt,
	}
	fmtCmd.Flags().BoolVarP(&writeBack, "write", "w", false, "Write result to the cpanfile instead of stdout")

	fromMetaCmd := &cobra.Command{
		Use:   "from-meta <META.json|META.yml|dist.tar.gz>",
		Short: "Generate a cpanfile from distribution metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  runFromMeta,
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check cpanfile requirements against a cpanfile.snapshot",
		Args:  cobra.NoArgs,
		RunE:  runCheck,
	}
	checkCmd.Flags().StringVarP(&snapshotPath, "snapshot", "s", "./cpanfile.snapshot", "Snapshot path")
	checkCmd.Flags().StringSliceVar(&phaseNames, "phase", nil, "Phases to check (default runtime)")

	rootCmd.AddCommand(parseCmd, fmtCmd, fromMetaCmd, checkCmd)
	return rootCmd
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// parseCpanfile reads cpanfilePath. The parser logs every skipped
// construct as a warning.
func parseCpanfile(logger *slog.Logger) (*cpanfile.Result, error) {
	return cpanfile.NewParser(cpanfile.WithLogger(logger)).ParseFile(cpanfilePath)
}

func runParse(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd.ErrOrStderr())

	result, err := parseCpanfile(logger)
	if err != nil {
		return err
	}
	if strict {
		if err := result.Err(); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Model); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
	case "yaml":
		data, err := yaml.Marshal(result.Model)
		if err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		fmt.Fprint(out, string(data))
	case "text":
		for _, req := range result.Model.All() {
			fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", req.Phase, req.Relation, req.Module, req.Version)
		}
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	logger.Debug("parsed cpanfile",
		slog.Int("requirements", result.Model.Len()),
		slog.Int("skipped", len(result.Diagnostics)))
	return nil
}

func runFmt(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd.ErrOrStderr())

	result, err := parseCpanfile(logger)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := cpanfile.NewEmitter(&buf).Emit(result.Model); err != nil {
		return fmt.Errorf("rendering cpanfile: %w", err)
	}

	if !writeBack {
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}
	if len(result.Diagnostics) > 0 {
		logger.Warn("skipped text is dropped from the rewritten file", slog.Int("count", len(result.Diagnostics)))
	}
	if err := os.WriteFile(cpanfilePath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing cpanfile: %w", err)
	}
	logger.Info("formatted cpanfile", slog.String("path", cpanfilePath))
	return nil
}

func runFromMeta(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd.ErrOrStderr())

	m, err := meta.ReadFile(args[0])
	if err != nil {
		return err
	}
	logger.Debug("read distribution metadata",
		slog.String("name", m.Name),
		slog.String("version", m.Version),
		slog.Int("requirements", m.Prereqs.Len()))

	if err := cpanfile.NewEmitter(cmd.OutOrStdout()).Emit(m.Prereqs); err != nil {
		return fmt.Errorf("rendering cpanfile: %w", err)
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd.ErrOrStderr())

	var phases []prereqs.Phase
	for _, name := range phaseNames {
		phase, ok := prereqs.ParsePhase(name)
		if !ok {
			return fmt.Errorf("unknown phase %q", name)
		}
		phases = append(phases, phase)
	}

	result, err := parseCpanfile(logger)
	if err != nil {
		return err
	}

	logger.Debug("reading snapshot", slog.String("path", snapshotPath))
	dists, err := snapshot.ParseFile(snapshotPath)
	if err != nil {
		return err
	}

	problems := snapshot.Check(result.Model, dists, phases...)
	out := cmd.OutOrStdout()
	for _, p := range problems {
		fmt.Fprintln(out, p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d requirement(s) not satisfied by %s", len(problems), snapshotPath)
	}

	fmt.Fprintf(out, "All requirements satisfied by %s (%d distributions)\n", snapshotPath, len(dists))
	return nil
}
