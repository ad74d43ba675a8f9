// Package definition loads workflow definitions from YAML files, validates
// them, and provides a fast-lookup registry with atomic pointer swap.
package definition

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/ringihq/ringi/model"
)

// snapshot is an immutable collection of definitions indexed by workflow type.
type snapshot struct {
	workflows map[string]model.WorkflowDefinition
	checksum  string
}

// Registry is a read-optimized, thread-safe store of loaded workflow
// definitions. It uses atomic pointer swap for lock-free concurrent reads.
type Registry struct {
	snap atomic.Pointer[snapshot]
}

// NewRegistry creates a Registry from the given definitions.
func NewRegistry(defs []model.WorkflowDefinition) *Registry {
	r := &Registry{}
	r.Replace(defs)
	return r
}

// Replace atomically swaps the registry contents with a new snapshot built
// from the given definitions. Later definitions win on duplicate types, which
// lets file-based definitions override builtins.
func (r *Registry) Replace(defs []model.WorkflowDefinition) {
	s := &snapshot{
		workflows: make(map[string]model.WorkflowDefinition, len(defs)),
	}

	var checksumParts []string
	for _, def := range defs {
		s.workflows[def.Type] = def
		if def.Checksum != "" {
			checksumParts = append(checksumParts, def.Checksum)
		}
	}

	sort.Strings(checksumParts)
	combined := strings.Join(checksumParts, ":")
	s.checksum = fmt.Sprintf("%x", sha256.Sum256([]byte(combined)))

	r.snap.Store(s)
}

// GetWorkflow returns the definition for a workflow type.
func (r *Registry) GetWorkflow(workflowType string) (model.WorkflowDefinition, bool) {
	s := r.snap.Load()
	def, ok := s.workflows[workflowType]
	return def, ok
}

// WorkflowTypes returns the sorted list of registered workflow types.
func (r *Registry) WorkflowTypes() []string {
	s := r.snap.Load()
	types := make([]string, 0, len(s.workflows))
	for t := range s.workflows {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Len returns the number of registered workflow types.
func (r *Registry) Len() int {
	return len(r.snap.Load().workflows)
}

// Checksum returns the combined checksum of all file-based definitions.
func (r *Registry) Checksum() string {
	return r.snap.Load().checksum
}
