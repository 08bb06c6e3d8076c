package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// ErrMissingSecret indicates secret-backed variables with no value available.
var ErrMissingSecret = errors.New("missing secret")

// LookupFunc finds the value of a secret by key.
type LookupFunc func(key string) (string, bool)

// EnvLookup reads secrets from the process environment, falling back to the
// dotenv file at envFile. Empty process values fall through to the file. A
// missing file is not an error.
func EnvLookup(envFile string) (LookupFunc, error) {
	fileVars := map[string]string{}
	if envFile != "" {
		vars, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
		if vars != nil {
			fileVars = vars
		}
	}

	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}, nil
}

// ResolveEnv builds the environment svc would receive: literals as written,
// secrets from lookup. Secrets lookup cannot find are left out of the map and
// reported in the error.
func ResolveEnv(svc *Service, lookup LookupFunc) (map[string]string, error) {
	env := make(map[string]string, len(svc.EnvVars))
	var missing []string

	for _, ev := range svc.EnvVars {
		if !ev.FromSecret {
			env[ev.Key] = ev.Value
			continue
		}
		v, ok := lookup(ev.Key)
		if !ok || v == "" {
			missing = append(missing, ev.Key)
			continue
		}
		env[ev.Key] = v
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return env, fmt.Errorf("%w: %s", ErrMissingSecret, strings.Join(missing, ", "))
	}
	return env, nil
}
