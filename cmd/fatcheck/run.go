package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aligator/fatcheck"
	"github.com/aligator/fatcheck/mount"
	"github.com/aligator/fatcheck/report"
	"github.com/aligator/fatcheck/runner"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// caseConfig is a test case as written in the config file.
type caseConfig struct {
	Path        string   `mapstructure:"path"`
	Kind        string   `mapstructure:"kind"`
	Expect      []string `mapstructure:"expect"`
	Description string   `mapstructure:"description"`
}

// runSuite runs all configured cases and returns the exit code.
func runSuite(ctx context.Context, out io.Writer) (int, error) {
	root, err := resolveRoot(viper.GetString("project-root"))
	if err != nil {
		return 1, err
	}

	cases, err := loadCases(viper.GetViper(), root)
	if err != nil {
		return 1, err
	}

	mounter, err := newMounter(viper.GetString("backend"), viper.GetBool("sudo"))
	if err != nil {
		return 1, err
	}

	fs := afero.NewOsFs()
	printer := report.NewPrinter(out, viper.GetBool("verbose"))
	r := &runner.Runner{
		Fs:         fs,
		Mounts:     mount.NewManager(mounter, fs, mountTimeout()),
		MountPoint: viper.GetString("mount-point"),
		Verbose:    viper.GetBool("verbose"),
		Printer:    printer,
	}

	summary := r.Run(ctx, cases).Summary()
	printer.Summary(summary)
	return summary.ExitCode(), nil
}

func resolveRoot(root string) (string, error) {
	if root == "" {
		return os.Getwd()
	}
	return filepath.Abs(root)
}

func newMounter(name string, sudo bool) (mount.Mounter, error) {
	switch name {
	case "", "exec":
		return &mount.ExecMounter{Sudo: sudo}, nil
	case "loop":
		return mount.NewLoopMounter(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q, must be one of exec|loop", name)
	}
}

// loadCases returns the cases of the config file or the default cases if
// none are configured. Relative paths are resolved against root.
func loadCases(v *viper.Viper, root string) ([]runner.TestCase, error) {
	var configs []caseConfig
	if err := v.UnmarshalKey("cases", &configs); err != nil {
		return nil, fmt.Errorf("invalid cases: %w", err)
	}
	if len(configs) == 0 {
		return runner.DefaultCases(root), nil
	}

	cases := make([]runner.TestCase, 0, len(configs))
	for i, c := range configs {
		if c.Path == "" {
			return nil, fmt.Errorf("case %d: missing path", i)
		}

		kind := fatcheck.ParseKind(c.Kind)
		if kind == fatcheck.Unknown {
			return nil, fmt.Errorf("case %d (%s): unknown kind %q", i, c.Path, c.Kind)
		}

		path := c.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}

		description := c.Description
		if description == "" {
			description = filepath.Base(path)
		}

		cases = append(cases, runner.TestCase{
			Path:        path,
			Kind:        kind,
			Expect:      c.Expect,
			Description: description,
		})
	}
	return cases, nil
}
