// Command build cross-compiles sensi for the boards it usually runs on.
package main

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var availableTargets = []target{
	{goos: "linux", goarch: "arm", goarm: "6"}, // raspberry pi zero
	{goos: "linux", goarch: "arm", goarm: "7"},
	{goos: "linux", goarch: "arm64"},
	{goos: "linux", goarch: "amd64"},
}

type target struct {
	goos   string
	goarch string
	goarm  string
}

func (t target) String() string {
	if t.goarm != "" {
		return fmt.Sprintf("%s-%s-v%s", t.goos, t.goarch, t.goarm)
	}
	return fmt.Sprintf("%s-%s", t.goos, t.goarch)
}

type options struct {
	platforms string
	project   string
	basename  string
	output    string
	race      bool
}

type buildError struct {
	target target
	stderr string
	err    error
}

func (e *buildError) Error() string {
	return fmt.Sprintf("target %s: %v\n%s", e.target, e.err, e.stderr)
}

func (e *buildError) Unwrap() error {
	return e.err
}

// selectTargets resolves a comma separated platform list, "all" selects every known target.
func selectTargets(selection string) ([]target, error) {
	if selection == "all" {
		return append([]target(nil), availableTargets...), nil
	}

	var selected []target
	for _, name := range strings.Split(selection, ",") {
		name = strings.TrimSpace(name)
		var found bool
		for _, t := range availableTargets {
			if t.String() == name {
				selected = append(selected, t)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("target not found: \"%s\"", name)
		}
	}
	return selected, nil
}

// command returns go arguments and extra environment for building one target.
func command(t target, opts options) ([]string, []string) {
	binary := filepath.Join(opts.output, fmt.Sprintf("%s-%s", opts.basename, t))

	env := []string{"GOOS=" + t.goos, "GOARCH=" + t.goarch}
	if t.goarm != "" {
		env = append(env, "GOARM="+t.goarm)
	}
	// race detector needs cgo
	if opts.race {
		env = append(env, "CGO_ENABLED=1")
	} else {
		env = append(env, "CGO_ENABLED=0")
	}

	args := []string{"build", "-o", binary}
	if opts.race {
		args = append(args, "-race")
	}
	args = append(args, opts.project)
	return args, env
}

func build(t target, opts options) error {
	args, env := command(t, opts)
	cmd := exec.Command("go", args...)
	cmd.Env = append(os.Environ(), env...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &buildError{target: t, stderr: stderr.String(), err: err}
	}
	return nil
}

func run(opts options) error {
	targets, err := selectTargets(opts.platforms)
	if err != nil {
		return err
	}

	var names []string
	for _, t := range targets {
		names = append(names, t.String())
	}
	fmt.Printf("building %s for: %s\n", opts.project, strings.Join(names, ", "))

	var errs error
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, t := range targets {
		wg.Add(1)
		go func(t target) {
			defer wg.Done()
			err := build(t, opts)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fmt.Printf("%s failed\n", t)
				errs = multierr.Append(errs, err)
				return
			}
			fmt.Printf("%s success\n", t)
		}(t)
	}
	wg.Wait()
	return errs
}

func main() {
	var opts options

	var names []string
	for _, t := range availableTargets {
		names = append(names, t.String())
	}

	cmd := &cobra.Command{
		Use:          "build",
		Short:        "cross-compile sensi binaries",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	cmd.Flags().StringVar(&opts.platforms, "platforms", "all",
		fmt.Sprintf("comma-separated target platform list\navailable: %s", strings.Join(names, ",")))
	cmd.Flags().StringVar(&opts.project, "project", "./cmd/sensi/", "project directory")
	cmd.Flags().StringVar(&opts.basename, "base", "sensi", "base filename for output binaries")
	cmd.Flags().StringVar(&opts.output, "output", "./builds", "output directory")
	cmd.Flags().BoolVar(&opts.race, "race", false, "include race detector")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
