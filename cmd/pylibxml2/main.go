package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/frederic-klein/pylibxml2/internal/collector"
	"github.com/frederic-klein/pylibxml2/internal/config"
	"github.com/frederic-klein/pylibxml2/internal/downloader"
	"github.com/frederic-klein/pylibxml2/internal/pipeline"
	"github.com/frederic-klein/pylibxml2/internal/project"
	"github.com/frederic-klein/pylibxml2/internal/runner"
)

var (
	pyprojectPath string
	libVersion    string
	outputDir     string
	configPath    string
	mirror        string
	keepWorkspace bool
	verbose       bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.Danger.Printf("error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pylibxml2",
		Short:         "Build the libxml2 Python bindings against the installed libxml2",
		Long:          "pylibxml2 downloads the libxml2 release matching the installed headers, builds its Python bindings with the same features, and collects the resulting modules for wheel packaging.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build the bindings into the output directory",
		Args:  cobra.NoArgs,
		RunE:  runBuild,
	}
	buildCmd.Flags().StringVar(&pyprojectPath, "pyproject", "./pyproject.toml", "Project metadata holding the requested version")
	buildCmd.Flags().StringVar(&libVersion, "lib-version", "", "Requested libxml2 version (overrides --pyproject)")
	buildCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default from config, \"lib\")")
	buildCmd.Flags().StringVar(&mirror, "mirror", "", "libxml2 release mirror URL")
	buildCmd.Flags().BoolVar(&keepWorkspace, "keep-workspace", false, "Keep the temporary workspace for inspection")

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Show the version and features of the installed libxml2 headers",
		Args:  cobra.NoArgs,
		RunE:  runProbe,
	}

	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Empty the output directory, keeping .gitignore",
		Args:  cobra.NoArgs,
		RunE:  runClean,
	}
	cleanCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default from config, \"lib\")")

	rootCmd.AddCommand(buildCmd, probeCmd, cleanCmd)
	return rootCmd
}

func newLogger() *log.Logger {
	logger := &log.Logger{Handler: cli.New(os.Stderr), Level: log.InfoLevel}
	if verbose {
		logger.Level = log.DebugLevel
	}
	return logger
}

// loadConfig applies defaults, the config file, the environment and then
// the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if f := cmd.Flags().Lookup("output"); f != nil && f.Changed {
		cfg.OutputDir = outputDir
	}
	if f := cmd.Flags().Lookup("mirror"); f != nil && f.Changed {
		cfg.Mirror = mirror
	}
	if f := cmd.Flags().Lookup("keep-workspace"); f != nil && f.Changed {
		cfg.KeepWorkspace = keepWorkspace
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func requestedVersion() (string, error) {
	if libVersion != "" {
		return libVersion, nil
	}
	return project.ReadVersion(pyprojectPath)
}

func runBuild(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	requested, err := requestedVersion()
	if err != nil {
		return fmt.Errorf("reading requested version: %w", err)
	}
	logger.WithField("version", requested).Info("building libxml2 bindings")

	home, _ := os.UserHomeDir()
	p := pipeline.New(cfg, runner.NewExec(logger, verbose), downloader.NewDownloader(), home, logger)
	set, err := p.Run(requested)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Collected %d files into %s: %s\n", len(set), cfg.OutputDir, strings.Join(set.Names(), ", "))
	return nil
}

func runProbe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	scratch, err := os.MkdirTemp("", "python-libxml2-probe.")
	if err != nil {
		return fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	home, _ := os.UserHomeDir()
	p := pipeline.New(cfg, runner.NewExec(logger, verbose), downloader.NewDownloader(), home, logger)
	includeRoot, bc, err := p.Inspect(scratch)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "include: %s\n", includeRoot)
	fmt.Fprintf(out, "version: %s\n", bc.Version)
	for _, f := range bc.Features() {
		state := "without"
		if f.Enabled {
			state = "with"
		}
		fmt.Fprintf(out, "  %s-%s\n", state, f.Name)
	}
	return nil
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	removed, err := collector.Clean(cfg.OutputDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries from %s\n", len(removed), cfg.OutputDir)
	return nil
}
