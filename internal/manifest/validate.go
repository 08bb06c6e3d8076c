package manifest

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"slices"
)

// Validation errors. Validate wraps these with the location of the problem.
var (
	// ErrNoServices indicates a blueprint without any service.
	ErrNoServices = errors.New("no services defined")

	// ErrMissingName indicates a service or disk without a name.
	ErrMissingName = errors.New("missing name")

	// ErrDuplicateService indicates two services share a name.
	ErrDuplicateService = errors.New("duplicate service name")

	// ErrInvalidServiceType indicates an unknown service type.
	ErrInvalidServiceType = errors.New("invalid service type")

	// ErrInvalidRuntime indicates an unknown env value.
	ErrInvalidRuntime = errors.New("invalid runtime")

	// ErrMissingCommand indicates a build or start command is required but empty.
	ErrMissingCommand = errors.New("missing command")

	// ErrInvalidEnvVar indicates a malformed environment variable.
	ErrInvalidEnvVar = errors.New("invalid env var")

	// ErrInvalidDisk indicates a malformed disk.
	ErrInvalidDisk = errors.New("invalid disk")
)

var envKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the blueprint and reports every problem at once.
func Validate(b *Blueprint) error {
	if b == nil || len(b.Services) == 0 {
		return ErrNoServices
	}

	var errs []error
	seen := make(map[string]bool)
	for i := range b.Services {
		svc := &b.Services[i]
		where := fmt.Sprintf("services[%d]", i)
		if svc.Name != "" {
			where = fmt.Sprintf("services[%d] (%s)", i, svc.Name)
		}

		if svc.Name == "" {
			errs = append(errs, fmt.Errorf("%s: %w", where, ErrMissingName))
		} else if seen[svc.Name] {
			errs = append(errs, fmt.Errorf("%s: %w", where, ErrDuplicateService))
		}
		seen[svc.Name] = true

		for _, err := range validateService(svc) {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
	}
	return errors.Join(errs...)
}

func validateService(svc *Service) []error {
	var errs []error

	if !slices.Contains(SupportedTypes, svc.Type) {
		errs = append(errs, fmt.Errorf("%w: %q (supported: %v)", ErrInvalidServiceType, svc.Type, SupportedTypes))
	}
	if !slices.Contains(SupportedRuntimes, svc.Env) {
		errs = append(errs, fmt.Errorf("%w: %q (supported: %v)", ErrInvalidRuntime, svc.Env, SupportedRuntimes))
	}

	if !prebuiltRuntimes[svc.Env] {
		if svc.BuildCommand == "" {
			errs = append(errs, fmt.Errorf("%w: buildCommand", ErrMissingCommand))
		}
		if svc.StartCommand == "" && svc.Type != TypeStatic {
			errs = append(errs, fmt.Errorf("%w: startCommand", ErrMissingCommand))
		}
	}

	keys := make(map[string]bool)
	for j, ev := range svc.EnvVars {
		switch {
		case ev.Key == "":
			errs = append(errs, fmt.Errorf("%w: envVars[%d] has no key", ErrInvalidEnvVar, j))
		case !envKeyPattern.MatchString(ev.Key):
			errs = append(errs, fmt.Errorf("%w: %q is not a valid variable name", ErrInvalidEnvVar, ev.Key))
		case keys[ev.Key]:
			errs = append(errs, fmt.Errorf("%w: %q declared twice", ErrInvalidEnvVar, ev.Key))
		}
		keys[ev.Key] = true

		if ev.FromSecret && ev.Value != "" {
			errs = append(errs, fmt.Errorf("%w: %q has both a value and fromSecret", ErrInvalidEnvVar, ev.Key))
		}
		if !ev.FromSecret && ev.Value == "" {
			errs = append(errs, fmt.Errorf("%w: %q needs a value or fromSecret", ErrInvalidEnvVar, ev.Key))
		}
	}

	if len(svc.Disks) > 0 && (svc.Type == TypeStatic || svc.Type == TypeCron) {
		errs = append(errs, fmt.Errorf("%w: %s services cannot mount disks", ErrInvalidDisk, svc.Type))
	}
	for j, d := range svc.Disks {
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("%w: disks[%d]: %w", ErrInvalidDisk, j, ErrMissingName))
		}
		if !path.IsAbs(d.MountPath) {
			errs = append(errs, fmt.Errorf("%w: disks[%d] mountPath %q must be absolute", ErrInvalidDisk, j, d.MountPath))
		}
		if d.SizeGB < 1 {
			errs = append(errs, fmt.Errorf("%w: disks[%d] sizeGB must be at least 1", ErrInvalidDisk, j))
		}
	}

	return errs
}
