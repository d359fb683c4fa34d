package environment

import (
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Manifest files that indicate an environment manager is in use.
const (
	condaManifest    = "environment.yml"
	condaManifestAlt = "environment.yaml"
	poetryManifest   = "pyproject.toml"
	pipenvManifest   = "Pipfile"
	venvMarker       = "pyvenv.cfg"
)

// condaFile is the part of environment.yml the detector reads.
type condaFile struct {
	Name   string `yaml:"name"`
	Prefix string `yaml:"prefix"`
}

func readCondaFile(path string) (*condaFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var def condaFile
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &def, nil
}

// pyproject is the part of pyproject.toml the detector reads.
type pyproject struct {
	Project struct {
		Name string `toml:"name"`
	} `toml:"project"`
	Tool struct {
		Poetry *struct {
			Name string `toml:"name"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func readPyproject(path string) (*pyproject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc pyproject
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &doc, nil
}

// usesPoetry reports whether the project is managed by poetry.
func (p *pyproject) usesPoetry() bool {
	return p.Tool.Poetry != nil
}

// condaEnvList is the output of `conda env list --json`.
type condaEnvList struct {
	Envs []string `json:"envs"`
}

func parseCondaEnvList(out string) ([]string, error) {
	var list condaEnvList
	if err := sonic.UnmarshalString(out, &list); err != nil {
		return nil, fmt.Errorf("parse conda env list: %w", err)
	}
	return list.Envs, nil
}

// lastLine returns the last non-empty line of tool output. Tools such as
// pipenv print warnings before the path.
func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
