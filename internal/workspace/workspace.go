// Package workspace owns the shared code directory: it materializes
// per-job artifact sets on disk and cleans them up afterward.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"

	"github.com/iamjoytank/docker-code-runner/internal/catalog"
	"github.com/iamjoytank/docker-code-runner/internal/logging"
	"github.com/iamjoytank/docker-code-runner/pkg/models"
)

// javaClassPattern extracts the first public class name from a Java
// source file. Anchored on identifier characters only — this is the
// one place user input reaches a shell-adjacent value (the expanded
// {classname} placeholder), so the pattern must never be widened.
var javaClassPattern = regexp.MustCompile(`public\s+class\s+([A-Za-z_][A-Za-z0-9_]*)`)

// Manager owns the shared workspace directory.
type Manager struct {
	root string
}

// New returns a Manager rooted at dir, creating it if necessary.
// Per §4.2, the workspace must exist and be writable before any job
// is accepted.
func New(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create root %s: %w", dir, err)
	}
	return &Manager{root: dir}, nil
}

// Root returns the workspace's root directory.
func (m *Manager) Root() string {
	return m.root
}

// Prepare materializes the job's source under a dedicated
// <root>/<jobID> subdirectory and returns the artifact set that will
// exist once the sandbox has run. Every job gets its own subdirectory
// so concurrent jobs can never collide on artifact names, even when
// two Java submissions both declare "public class Main".
func (m *Manager) Prepare(d catalog.Descriptor, code, jobID string) (models.ArtifactSet, error) {
	jobDir := filepath.Join(m.root, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return models.ArtifactSet{}, fmt.Errorf("workspace: create job dir: %w", err)
	}

	artifactName := deriveArtifactName(d, code)
	sourcePath := filepath.Join(jobDir, artifactName)

	if err := os.WriteFile(sourcePath, []byte(code), 0o644); err != nil {
		return models.ArtifactSet{}, fmt.Errorf("workspace: write source: %w", err)
	}

	set := models.ArtifactSet{
		JobID:      jobID,
		Dir:        jobDir,
		SourcePath: sourcePath,
	}

	switch d.Tag {
	case "java":
		className := artifactName[:len(artifactName)-len(filepath.Ext(artifactName))]
		set.ClassFile = filepath.Join(jobDir, className+".class")
	case "c", "cpp":
		set.BinaryPath = filepath.Join(jobDir, uuid.New().String()+".out")
	}

	return set, nil
}

// deriveArtifactName implements §4.2 step 1: for Java, extract the
// public class name (falling back to "Main" with a logged warning);
// for everything else, a random UUID with the language's extension.
func deriveArtifactName(d catalog.Descriptor, code string) string {
	if d.Tag != "java" {
		return uuid.New().String() + "." + d.Ext
	}

	if m := javaClassPattern.FindStringSubmatch(code); len(m) == 2 {
		return m[1] + ".java"
	}

	logging.S().Warnw("workspace: no public class found in Java source, falling back to Main",
		"jobDetail", "artifact name defaults to Main.java; compilation may still fail")
	return "Main.java"
}

// Cleanup best-effort removes every artifact and the job's
// subdirectory. Missing files are not errors; I/O errors are logged
// but not propagated, per §4.2.
func (m *Manager) Cleanup(set models.ArtifactSet) {
	if set.Dir == "" {
		return
	}
	if err := os.RemoveAll(set.Dir); err != nil {
		logging.S().Warnw("workspace: cleanup failed", "dir", set.Dir, "error", err)
	}
}
