//go:build integration

package integration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Project is a fixture PHP project under testdata.
type Project struct {
	Name     string   `yaml:"name"`
	Dir      string   `yaml:"dir"`
	Scanners []string `yaml:"scanners"`
	// Command replays recorded runner output from the project root.
	Command string `yaml:"command"`
	Expect  Expect `yaml:"expect"`
}

// Expect holds the outcome of running the whole project.
type Expect struct {
	Passed int `yaml:"passed"`
	Failed int `yaml:"failed"`
}

// ProjectsConfig holds the fixture projects.
type ProjectsConfig struct {
	Projects []Project `yaml:"projects"`
}

// LoadProjects loads project definitions from projects.yaml.
func LoadProjects() (*ProjectsConfig, error) {
	integrationDir, err := getIntegrationDir()
	if err != nil {
		return nil, err
	}
	return loadProjectsFromPath(filepath.Join(integrationDir, "projects.yaml"))
}

func loadProjectsFromPath(path string) (*ProjectsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read projects config from %s: %w", path, err)
	}

	var config ProjectsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshal projects config: %w", err)
	}

	if err := validateProjectsConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid projects config: %w", err)
	}

	return &config, nil
}

func validateProjectsConfig(config *ProjectsConfig) error {
	if len(config.Projects) == 0 {
		return errors.New("no projects defined")
	}

	for i, p := range config.Projects {
		if p.Name == "" {
			return fmt.Errorf("project %d: name is required", i)
		}
		if p.Dir == "" {
			return fmt.Errorf("project %s: dir is required", p.Name)
		}
		if len(p.Scanners) == 0 {
			return fmt.Errorf("project %s: at least one scanner is required", p.Name)
		}
	}
	return nil
}

// Root returns the absolute fixture directory of p.
func (p Project) Root() (string, error) {
	testDataDir, err := getTestDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(testDataDir, p.Dir), nil
}

func getTestDataDir() (string, error) {
	integrationDir, err := getIntegrationDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(integrationDir, "testdata"), nil
}

func getIntegrationDir() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return wd, nil
}
