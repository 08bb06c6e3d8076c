// Package preflight runs the checks behind `savingsbot doctor`: can this
// machine (or the platform instance) start the worker as configured?
package preflight

import (
	"errors"
	"fmt"
	"os"

	"github.com/cameronsjo/savingsbot/internal/config"
	"github.com/cameronsjo/savingsbot/internal/lock"
	"github.com/cameronsjo/savingsbot/internal/manifest"
)

// Check is one diagnostic.
type Check struct {
	Name     string
	Required bool   // false = warning only
	Hint     string // how to fix a failure
	Run      func() error
}

// Result is a check and its outcome.
type Result struct {
	Check
	Err error
}

// OK reports whether the check passed.
func (r Result) OK() bool {
	return r.Err == nil
}

// Run executes every check in order.
func Run(checks []Check) []Result {
	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		results = append(results, Result{Check: c, Err: c.Run()})
	}
	return results
}

// Summarize splits failures into errors (required checks) and warnings.
// Each line is "name: error (hint)".
func Summarize(results []Result) (warnings []string, errs []string) {
	for _, r := range results {
		if r.OK() {
			continue
		}
		line := fmt.Sprintf("%s: %v", r.Name, r.Err)
		if r.Hint != "" {
			line += " (" + r.Hint + ")"
		}
		if r.Required {
			errs = append(errs, line)
		} else {
			warnings = append(warnings, line)
		}
	}
	return warnings, errs
}

// Standard returns the checks doctor runs for cfg. envFile feeds secret
// resolution for the manifest's service.
func Standard(cfg *config.Config, envFile string) []Check {
	return []Check{
		WorkerConfig(cfg),
		DataDirWritable(cfg.DataDir),
		LockFree(cfg.LockPath()),
		ManifestValid(cfg.ManifestPath),
		SecretsResolvable(cfg.ManifestPath, envFile),
	}
}

// WorkerConfig checks the settings the worker refuses to start without.
func WorkerConfig(cfg *config.Config) Check {
	return Check{
		Name:     "config",
		Required: true,
		Hint:     "set TELEGRAM_BOT_TOKEN and ALLOWED_USER_ID in the environment or .env",
		Run:      cfg.ValidateWorker,
	}
}

// DataDirWritable checks that dir exists (or can be created) and accepts writes.
func DataDirWritable(dir string) Check {
	return Check{
		Name:     "data dir",
		Required: true,
		Hint:     "mount the persistent disk or point DATA_DIR somewhere writable",
		Run: func() error {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
			f, err := os.CreateTemp(dir, ".doctor-*")
			if err != nil {
				return err
			}
			name := f.Name()
			f.Close()
			return os.Remove(name)
		},
	}
}

// LockFree warns when a worker already holds the data directory.
func LockFree(path string) Check {
	return Check{
		Name: "lock",
		Hint: "a worker is running; stop it before restoring backups",
		Run: func() error {
			l := lock.New(path)
			if err := l.Acquire(); err != nil {
				return err
			}
			return l.Release()
		},
	}
}

// ManifestValid checks the deployment blueprint.
func ManifestValid(path string) Check {
	return Check{
		Name:     "manifest",
		Required: true,
		Hint:     "run `savingsbot manifest init` or fix the reported fields",
		Run: func() error {
			b, err := manifest.Load(path)
			if err != nil {
				return err
			}
			return manifest.Validate(b)
		},
	}
}

// SecretsResolvable warns when secret-backed variables of the bot's service
// have no local value. On the platform they come from its secret store.
func SecretsResolvable(manifestPath, envFile string) Check {
	return Check{
		Name: "secrets",
		Hint: "secrets are set on the platform; locally put them in .env",
		Run: func() error {
			b, err := manifest.Load(manifestPath)
			if err != nil {
				return err
			}
			svc, ok := b.Service(manifest.DefaultServiceName)
			if !ok {
				return errors.New("service " + manifest.DefaultServiceName + " not in manifest")
			}
			lookup, err := manifest.EnvLookup(envFile)
			if err != nil {
				return err
			}
			_, err = manifest.ResolveEnv(svc, lookup)
			return err
		},
	}
}
