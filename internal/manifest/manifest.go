package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cameronsjo/savingsbot/internal/fileutil"
)

// DefaultFile is the blueprint file name the platform looks for.
const DefaultFile = "render.yaml"

// DefaultServiceName is the worker this repository deploys.
const DefaultServiceName = "snarky-savings-bot"

// Parse decodes a blueprint. Unknown keys are an error.
func Parse(data []byte) (*Blueprint, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var b Blueprint
	if err := dec.Decode(&b); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoServices
		}
		return nil, fmt.Errorf("parse blueprint: %w", err)
	}
	return &b, nil
}

// Load reads and parses the blueprint at path.
func Load(path string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blueprint: %w", err)
	}
	return Parse(data)
}

// Marshal encodes the blueprint with two-space indentation.
func Marshal(b *Blueprint) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(b); err != nil {
		return nil, fmt.Errorf("marshal blueprint: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal blueprint: %w", err)
	}
	return buf.Bytes(), nil
}

// Write validates b and atomically replaces the file at path.
func Write(path string, b *Blueprint) error {
	if err := Validate(b); err != nil {
		return err
	}
	data, err := Marshal(b)
	if err != nil {
		return err
	}
	return fileutil.WriteFile(path, data, 0644)
}

// Default returns the blueprint for this bot: one Go worker with its data
// directory on a 1 GB persistent disk.
func Default() *Blueprint {
	return &Blueprint{
		Services: []Service{
			{
				Type:         TypeWorker,
				Name:         DefaultServiceName,
				Env:          "go",
				BuildCommand: "go build -o bin/savingsbot ./cmd/savingsbot",
				StartCommand: "./bin/savingsbot run",
				EnvVars: []EnvVar{
					{Key: "DATA_DIR", Value: "/data"},
					{Key: "TELEGRAM_BOT_TOKEN", FromSecret: true},
					{Key: "ALLOWED_USER_ID", FromSecret: true},
				},
				Disks: []Disk{
					{Name: "savings-data", MountPath: "/data", SizeGB: 1},
				},
			},
		},
	}
}
