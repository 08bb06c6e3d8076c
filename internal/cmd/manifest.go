package cmd

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/savingsbot/internal/manifest"
	"github.com/cameronsjo/savingsbot/internal/ui"
)

const secretMask = "********"

var (
	manifestReveal  bool
	manifestService string
	manifestForce   bool
)

// manifestCmd groups the render.yaml commands.
var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Work with the deployment manifest (render.yaml)",
}

var manifestValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check the manifest against the platform schema",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := manifestPath(args)
		if err != nil {
			return err
		}

		b, err := manifest.Load(path)
		if err != nil {
			return err
		}
		if err := manifest.Validate(b); err != nil {
			ui.Error("%s is invalid:", path)
			for _, line := range strings.Split(err.Error(), "\n") {
				ui.Plain("  - %s", line)
			}
			return errors.New("manifest validation failed")
		}

		ui.Success("%s is valid (%d service(s))", path, len(b.Services))
		return nil
	},
}

var manifestShowCmd = &cobra.Command{
	Use:   "show [file]",
	Short: "Summarize services, env vars and disks",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := manifestPath(args)
		if err != nil {
			return err
		}
		b, err := manifest.Load(path)
		if err != nil {
			return err
		}

		for i, svc := range b.Services {
			if i > 0 {
				ui.Plain("")
			}
			ui.Header("%s", svc.Name)
			ui.Field("type", svc.Type)
			ui.Field("env", svc.Env)
			if svc.BuildCommand != "" {
				ui.Field("build", svc.BuildCommand)
			}
			if svc.StartCommand != "" {
				ui.Field("start", svc.StartCommand)
			}
			for _, ev := range svc.EnvVars {
				if ev.FromSecret {
					ui.Field(ev.Key, "(secret)")
				} else {
					ui.Field(ev.Key, ev.Value)
				}
			}
			for _, d := range svc.Disks {
				ui.Disk("%s mounted at %s (%d GB)", d.Name, d.MountPath, d.SizeGB)
			}
		}
		return nil
	},
}

var manifestEnvCmd = &cobra.Command{
	Use:   "env [file]",
	Short: "Show the environment a service would receive",
	Long: `Resolve a service's envVars the way the platform would: literal values as
written, secret-backed keys from the process environment or the .env file.
Secret values are masked unless --reveal is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := manifestPath(args)
		if err != nil {
			return err
		}
		b, err := manifest.Load(path)
		if err != nil {
			return err
		}

		svc, ok := b.Service(manifestService)
		if !ok {
			return fmt.Errorf("service %q not found in %s", manifestService, path)
		}

		lookup, err := manifest.EnvLookup(dotenvPath())
		if err != nil {
			return err
		}
		env, resolveErr := manifest.ResolveEnv(svc, lookup)

		secret := make(map[string]bool)
		for _, k := range svc.Secrets() {
			secret[k] = true
		}

		keys := make([]string, 0, len(env))
		for k := range env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := env[k]
			if secret[k] && !manifestReveal {
				v = secretMask
			}
			ui.Plain("%s=%s", k, v)
		}

		if resolveErr != nil {
			ui.Warning("%v", resolveErr)
			return resolveErr
		}
		return nil
	},
}

var manifestInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write the default manifest for this bot",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := manifestPath(args)
		if err != nil {
			return err
		}

		if _, err := os.Stat(path); err == nil && !manifestForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := manifest.Write(path, manifest.Default()); err != nil {
			return err
		}
		ui.Success("Wrote %s", path)
		return nil
	},
}

// manifestPath returns the file argument or the configured MANIFEST_PATH.
func manifestPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.ManifestPath, nil
}

func init() {
	manifestEnvCmd.Flags().BoolVar(&manifestReveal, "reveal", false, "print secret values")
	manifestEnvCmd.Flags().StringVarP(&manifestService, "service", "s", manifest.DefaultServiceName, "service to resolve")
	manifestInitCmd.Flags().BoolVarP(&manifestForce, "force", "f", false, "overwrite an existing file")

	manifestCmd.AddCommand(manifestValidateCmd, manifestShowCmd, manifestEnvCmd, manifestInitCmd)
	rootCmd.AddCommand(manifestCmd)
}
