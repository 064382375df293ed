package harness

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult aggregates the outcome of running every scenario in a
// directory.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure describes one failed scenario run.
type ScenarioFailure struct {
	ScenarioPath string   `json:"scenario_path"`
	ScenarioName string   `json:"scenario_name,omitempty"`
	Errors       []string `json:"errors"`
}

// RunDir loads and runs every scenario file under dir, in path order,
// and aggregates the results. Load and execution failures count as
// scenario failures rather than aborting the suite, so one broken file
// still lets the rest of the suite report.
func RunDir(dir string, opts ...RunOption) (*SuiteResult, error) {
	paths, err := findScenarios(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files under %s", dir)
	}

	result := &SuiteResult{}
	for _, path := range paths {
		result.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{
				ScenarioPath: path,
				Errors:       []string{fmt.Sprintf("failed to load scenario: %v", err)},
			})
			continue
		}

		runResult, err := Run(scenario, opts...)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{
				ScenarioPath: path,
				ScenarioName: scenario.Name,
				Errors:       []string{fmt.Sprintf("scenario execution failed: %v", err)},
			})
			continue
		}

		if !runResult.Pass {
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{
				ScenarioPath: path,
				ScenarioName: scenario.Name,
				Errors:       runResult.Errors,
			})
			continue
		}

		result.Passed++
	}

	return result, nil
}

// findScenarios returns every .yaml or .yml file under dir, sorted so
// suite order is stable across platforms.
func findScenarios(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan scenarios: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}
