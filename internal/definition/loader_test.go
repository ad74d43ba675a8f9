package definition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ringihq/ringi/model"
)

const sampleYAML = `
workflows:
  - type: purchase_approval
    name: Purchase Approval
    steps:
      - when: {field: amount, op: "<=", kind: numeric, value: 500000}
        level: manager
      - when: {field: amount, op: ">", kind: numeric, value: 500000}
        level: director
    auto_approve: {field: amount, op: "<=", kind: numeric, value: 10000}
  - type: vendor_approval
    name: Vendor Approval
    steps:
      - when: {field: category, op: "==", kind: string, string_value: preferred}
        level: manager
`

func writeDefinitionFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestLoader_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeDefinitionFile(t, dir, "purchasing.yaml", sampleYAML)

	loader := NewLoader()
	defs, err := loader.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("definitions = %d, want 2", len(defs))
	}

	def := defs[0]
	if def.Type != "purchase_approval" {
		t.Errorf("Type = %q", def.Type)
	}
	if len(def.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(def.Steps))
	}
	if def.Steps[0].Level != model.LevelManager {
		t.Errorf("Steps[0].Level = %q", def.Steps[0].Level)
	}
	if def.Steps[0].When.Op != model.OpLE || def.Steps[0].When.Value != 500000 {
		t.Errorf("Steps[0].When = %+v", def.Steps[0].When)
	}
	if def.AutoApprove == nil || def.AutoApprove.Value != 10000 {
		t.Errorf("AutoApprove = %+v", def.AutoApprove)
	}
	if def.Checksum == "" {
		t.Error("expected checksum to be set")
	}
	if def.SourceFile != path {
		t.Errorf("SourceFile = %q", def.SourceFile)
	}

	if defs[1].Steps[0].When.Kind != model.PredicateString {
		t.Errorf("string predicate kind = %q", defs[1].Steps[0].When.Kind)
	}
	if defs[1].Steps[0].When.StringValue != "preferred" {
		t.Errorf("string predicate value = %q", defs[1].Steps[0].When.StringValue)
	}
}

func TestLoader_LoadAll_skipsNonYAML(t *testing.T) {
	dir := t.TempDir()
	writeDefinitionFile(t, dir, "purchasing.yaml", sampleYAML)
	writeDefinitionFile(t, dir, "notes.txt", "not a definition")

	loader := NewLoader()
	defs, err := loader.LoadAll([]string{dir})
	if err != nil {
		t.Fatalf("LoadAll error: %v", err)
	}
	if len(defs) != 2 {
		t.Errorf("definitions = %d, want 2", len(defs))
	}
}

func TestLoader_LoadAll_badYAML(t *testing.T) {
	dir := t.TempDir()
	writeDefinitionFile(t, dir, "broken.yaml", "workflows: [")

	loader := NewLoader()
	if _, err := loader.LoadAll([]string{dir}); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}
