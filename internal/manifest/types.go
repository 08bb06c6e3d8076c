package manifest

// Service types the platform accepts.
const (
	TypeWeb    = "web"
	TypeWorker = "worker"
	TypePServ  = "pserv"
	TypeCron   = "cron"
	TypeStatic = "static"
)

// SupportedTypes lists all valid service types.
var SupportedTypes = []string{TypeWeb, TypeWorker, TypePServ, TypeCron, TypeStatic}

// SupportedRuntimes lists all valid values for a service's env.
var SupportedRuntimes = []string{
	"python", "python3", "node", "go", "ruby", "rust", "elixir", "docker", "image", "static",
}

// prebuiltRuntimes build without buildCommand/startCommand.
var prebuiltRuntimes = map[string]bool{"docker": true, "image": true, "static": true}

// Blueprint is the whole render.yaml document.
type Blueprint struct {
	Services []Service `yaml:"services"`
}

// Service is one deployable unit.
type Service struct {
	// Type is the service kind (e.g., "worker").
	Type string `yaml:"type"`

	// Name identifies the service on the platform.
	Name string `yaml:"name"`

	// Env is the runtime the platform builds with (e.g., "go", "python").
	Env string `yaml:"env"`

	// BuildCommand runs once per deploy.
	BuildCommand string `yaml:"buildCommand,omitempty"`

	// StartCommand runs the process.
	StartCommand string `yaml:"startCommand,omitempty"`

	// EnvVars are injected into the process environment.
	EnvVars []EnvVar `yaml:"envVars,omitempty"`

	// Disks are persistent volumes mounted into the instance.
	Disks []Disk `yaml:"disks,omitempty"`
}

// EnvVar is either a literal value or a reference to a secret set on the platform.
type EnvVar struct {
	Key        string `yaml:"key"`
	Value      string `yaml:"value,omitempty"`
	FromSecret bool   `yaml:"fromSecret,omitempty"`
}

// Disk is a persistent volume.
type Disk struct {
	Name      string `yaml:"name"`
	MountPath string `yaml:"mountPath"`
	SizeGB    int    `yaml:"sizeGB"`
}

// Service returns the service called name.
func (b *Blueprint) Service(name string) (*Service, bool) {
	for i := range b.Services {
		if b.Services[i].Name == name {
			return &b.Services[i], true
		}
	}
	return nil, false
}

// Secrets returns the keys whose values come from the platform's secret store.
func (s *Service) Secrets() []string {
	var keys []string
	for _, ev := range s.EnvVars {
		if ev.FromSecret {
			keys = append(keys, ev.Key)
		}
	}
	return keys
}
