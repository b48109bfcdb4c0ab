package scenario

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/intentest/intentest/internal/model"
	interrors "github.com/intentest/intentest/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// document is one scenario file. A file carries either a list of
// scenarios or a single inline one.
type document struct {
	Name       string           `yaml:"name"`
	Tags       []string         `yaml:"tags"`
	Background []string         `yaml:"background"`
	Steps      []string         `yaml:"steps"`
	Scenarios  []model.Scenario `yaml:"scenarios"`
}

// Load reads the scenarios from one YAML file.
func Load(path string) ([]model.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, interrors.NewParseError(path, 0, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, interrors.NewParseError(path, extractLine(err), err)
	}

	scenarios := doc.Scenarios
	if len(scenarios) == 0 && len(doc.Steps) > 0 {
		name := doc.Name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		scenarios = []model.Scenario{{
			Name:       name,
			Tags:       doc.Tags,
			Background: doc.Background,
			Steps:      doc.Steps,
		}}
	}

	for i, sc := range scenarios {
		if sc.Name == "" {
			return nil, interrors.NewValidationError("scenarios", "scenario without a name", nil)
		}
		if len(sc.Steps) == 0 {
			return nil, interrors.NewValidationError("scenarios", "scenario "+sc.Name+" has no steps", nil)
		}
		// A file-level background applies to scenarios that declare none.
		if len(sc.Background) == 0 && len(doc.Background) > 0 {
			scenarios[i].Background = doc.Background
		}
	}
	return scenarios, nil
}

// LoadDir loads every .yaml/.yml file under dir, in lexical order so
// runs are reproducible.
func LoadDir(dir string) ([]model.Scenario, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, interrors.NewParseError(dir, 0, err)
	}
	sort.Strings(paths)

	var scenarios []model.Scenario
	for _, path := range paths {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, loaded...)
	}
	return scenarios, nil
}

// FilterByTags keeps the scenarios carrying at least one of the wanted
// tags. An empty filter keeps everything.
func FilterByTags(scenarios []model.Scenario, tags []string) []model.Scenario {
	if len(tags) == 0 {
		return scenarios
	}

	var kept []model.Scenario
	for _, sc := range scenarios {
		for _, tag := range tags {
			if sc.HasTag(tag) {
				kept = append(kept, sc)
				break
			}
		}
	}
	return kept
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}
	match := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(match) != 2 {
		return 0
	}
	line := 0
	for _, r := range match[1] {
		line = line*10 + int(r-'0')
	}
	return line
}
