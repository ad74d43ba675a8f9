package definition

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ringihq/ringi/model"
)

// Loader scans directories for YAML workflow definition files, parses them,
// and computes SHA-256 checksums.
type Loader struct{}

// NewLoader creates a new definition Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// definitionFile is the YAML document shape: one or more workflow definitions
// per file.
type definitionFile struct {
	Workflows []model.WorkflowDefinition `yaml:"workflows"`
}

// LoadAll recursively scans directories for *.yaml and *.yml files and parses
// each into workflow definitions.
func (l *Loader) LoadAll(directories []string) ([]model.WorkflowDefinition, error) {
	var defs []model.WorkflowDefinition

	for _, dir := range directories {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".yaml" && ext != ".yml" {
				return nil
			}

			fileDefs, err := l.LoadFile(path)
			if err != nil {
				return fmt.Errorf("loading %s: %w", path, err)
			}
			defs = append(defs, fileDefs...)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning directory %s: %w", dir, err)
		}
	}

	return defs, nil
}

// LoadFile loads and parses a single YAML definition file. It computes the
// SHA-256 checksum and records the source file path on each definition.
func (l *Loader) LoadFile(path string) ([]model.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc definitionFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	checksum := fmt.Sprintf("%x", sha256.Sum256(data))
	for i := range doc.Workflows {
		doc.Workflows[i].Checksum = checksum
		doc.Workflows[i].SourceFile = path
	}

	return doc.Workflows, nil
}
