package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//
// -----------------------------------------------------------------------------
// Fixtures
// -----------------------------------------------------------------------------

// minimalValidSpecJSON returns a minimal wire spec that passes validateSpec
// and allows run() to generate output.
func minimalValidSpecJSON() []byte {
	return []byte(`{
  "package": "app",
  "values": [
    { "name": "Config", "token": "config", "type": "*Config" }
  ],
  "services": [
    {
      "name": "Store", "token": "store", "type": "*Store",
      "constructor": "NewStore", "lifetime": "singleton",
      "deps": ["Config"], "returnsError": true
    },
    {
      "name": "Reviewer", "token": "reviewer", "type": "*Reviewer",
      "constructor": "NewReviewer", "deps": ["Store"]
    }
  ]
}`)
}

// writeSpecAndOwner writes a spec file plus an owner Go file carrying the
// go:generate directive and some imports, returning the dir and spec path.
func writeSpecAndOwner(t *testing.T) (dir, specPath, outPath string) {
	t.Helper()

	dir = t.TempDir()
	specPath = filepath.Join(dir, "graph.wire.json")
	outPath = filepath.Join(dir, "wiring.gen.go")
	require.NoError(t, os.WriteFile(specPath, minimalValidSpecJSON(), 0o644))

	owner := `package app

//go:generate go run github.com/sghaida/codi/cmd/digen -spec ./graph.wire.json -out ./wiring.gen.go

import (
	storage "example.com/project/storage"

	"github.com/sghaida/codi/di"
)

var _ = di.Key
var _ storage.Store
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wiring.go"), []byte(owner), 0o644))
	return dir, specPath, outPath
}

// requirePanicContains asserts fn panics and the panic message contains wantSub.
func requirePanicContains(t *testing.T, wantSub string, fn func()) {
	t.Helper()

	defer func() {
		recovered := recover()
		require.NotNil(t, recovered)

		var message string
		switch v := recovered.(type) {
		case error:
			message = v.Error()
		case string:
			message = v
		default:
			message = fmt.Sprintf("%v", v)
		}
		require.Contains(t, message, wantSub)
	}()

	fn()
}

func specFromJSON(t *testing.T, raw []byte) *Spec {
	t.Helper()
	var spec Spec
	require.NoError(t, json.Unmarshal(raw, &spec))
	return &spec
}

//
// -----------------------------------------------------------------------------
// validateSpec
// -----------------------------------------------------------------------------

// TestValidateSpec_Valid verifies a complete spec passes.
func TestValidateSpec_Valid(t *testing.T) {
	t.Parallel()

	spec := specFromJSON(t, minimalValidSpecJSON())
	assert.NotPanics(t, func() { validateSpec(spec) })
}

// TestValidateSpec_MissingPackage verifies the missing-fields panic lists the
// field name.
func TestValidateSpec_MissingPackage(t *testing.T) {
	t.Parallel()

	spec := specFromJSON(t, minimalValidSpecJSON())
	spec.Package = " "
	requirePanicContains(t, "package", func() { validateSpec(spec) })
}

// TestValidateSpec_NoServices verifies at least one service is required.
func TestValidateSpec_NoServices(t *testing.T) {
	t.Parallel()

	spec := specFromJSON(t, minimalValidSpecJSON())
	spec.Services = nil
	requirePanicContains(t, "services", func() { validateSpec(spec) })
}

// TestValidateSpec_DuplicateName verifies name collisions across values and
// services are rejected.
func TestValidateSpec_DuplicateName(t *testing.T) {
	t.Parallel()

	spec := specFromJSON(t, minimalValidSpecJSON())
	spec.Services[1].Name = "Config"
	requirePanicContains(t, "duplicate name", func() { validateSpec(spec) })
}

// TestValidateSpec_DuplicateToken verifies token collisions are rejected.
func TestValidateSpec_DuplicateToken(t *testing.T) {
	t.Parallel()

	spec := specFromJSON(t, minimalValidSpecJSON())
	spec.Services[1].Token = "store"
	requirePanicContains(t, "duplicate token", func() { validateSpec(spec) })
}

// TestValidateSpec_UnknownLifetime verifies the lifetime enum is enforced.
func TestValidateSpec_UnknownLifetime(t *testing.T) {
	t.Parallel()

	spec := specFromJSON(t, minimalValidSpecJSON())
	spec.Services[0].Lifetime = "per-call"
	requirePanicContains(t, "unknown lifetime", func() { validateSpec(spec) })
}

// TestValidateSpec_UndeclaredDep verifies dep references must resolve.
func TestValidateSpec_UndeclaredDep(t *testing.T) {
	t.Parallel()

	spec := specFromJSON(t, minimalValidSpecJSON())
	spec.Services[1].Deps = []string{"Ghost"}
	requirePanicContains(t, "undeclared name", func() { validateSpec(spec) })
}

// TestValidateSpec_ServiceMissingType verifies service shape validation.
func TestValidateSpec_ServiceMissingType(t *testing.T) {
	t.Parallel()

	spec := specFromJSON(t, minimalValidSpecJSON())
	spec.Services[0].Type = ""
	requirePanicContains(t, "must have type and constructor", func() { validateSpec(spec) })
}

//
// -----------------------------------------------------------------------------
// run() end to end
// -----------------------------------------------------------------------------

// TestRun_GeneratesWiringFile verifies the full pipeline: spec + owner file in,
// compilable-looking wiring file out.
func TestRun_GeneratesWiringFile(t *testing.T) {
	_, specPath, outPath := writeSpecAndOwner(t)

	var stderr bytes.Buffer
	code := run([]string{"-spec", specPath, "-out", outPath}, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())

	generated, err := os.ReadFile(outPath)
	require.NoError(t, err)
	src := string(generated)

	assert.Contains(t, src, "// Code generated by digen; DO NOT EDIT.")
	assert.Contains(t, src, "package app")

	// Tokens for value and services. Output is gofmt-formatted, so the var
	// block aligns the assignments.
	assert.Regexp(t, `TokenConfig\s+= di\.Key\("config"\)`, src)
	assert.Regexp(t, `TokenStore\s+= di\.Key\("store"\)`, src)
	assert.Regexp(t, `TokenReviewer\s+= di\.Key\("reviewer"\)`, src)

	// Registrations funnel through Construct with the declared deps.
	assert.Contains(t, src, "func RegisterGraph(scope *di.Scope) error {")
	assert.Contains(t, src, "scope.Construct(TokenStore, di.Singleton, []di.Token{TokenConfig}")
	assert.Contains(t, src, "return NewStore(deps[0].(*Config))")
	assert.Contains(t, src, "return NewReviewer(deps[0].(*Store)), nil")

	// Typed accessors.
	assert.Contains(t, src, "func ResolveStore(scope *di.Scope) (*Store, error) {")
	assert.Contains(t, src, "return di.Resolve[*Store](scope, TokenStore)")

	// Owner imports carried over; di import present exactly once.
	assert.Contains(t, src, `storage "example.com/project/storage"`)
	assert.Equal(t, 1, strings.Count(src, `"github.com/sghaida/codi/di"`))
}

// TestRun_NoOwnerFile verifies generation still succeeds without an owner
// file, importing only the di package.
func TestRun_NoOwnerFile(t *testing.T) {
	dir := t.TempDir()
	specPath := filepath.Join(dir, "graph.wire.json")
	outPath := filepath.Join(dir, "wiring.gen.go")
	require.NoError(t, os.WriteFile(specPath, minimalValidSpecJSON(), 0o644))

	var stderr bytes.Buffer
	code := run([]string{"-spec", specPath, "-out", outPath}, &stderr)
	require.Equal(t, 0, code)

	generated, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(generated), `"github.com/sghaida/codi/di"`)
	assert.NotContains(t, string(generated), "example.com/project/storage")
}

// TestRun_CustomDIImport verifies diImport overrides the container path.
func TestRun_CustomDIImport(t *testing.T) {
	dir := t.TempDir()
	specPath := filepath.Join(dir, "graph.wire.json")
	outPath := filepath.Join(dir, "wiring.gen.go")

	spec := strings.Replace(string(minimalValidSpecJSON()),
		`"package": "app",`,
		`"package": "app", "diImport": "example.com/fork/di",`, 1)
	require.NoError(t, os.WriteFile(specPath, []byte(spec), 0o644))

	var stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"-spec", specPath, "-out", outPath}, &stderr))

	generated, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(generated), `"example.com/fork/di"`)
	assert.NotContains(t, string(generated), `"github.com/sghaida/codi/di"`)
}

// TestRun_UsageErrors verifies flag handling exits 2 without touching disk.
func TestRun_UsageErrors(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	assert.Equal(t, 2, run(nil, &stderr))
	assert.Contains(t, stderr.String(), "usage: digen")

	stderr.Reset()
	assert.Equal(t, 2, run([]string{"-nope"}, &stderr))
}

// TestRun_InvalidSpecPanics verifies spec errors surface as panics (callers
// run digen via go:generate; a loud failure is the right behavior).
func TestRun_InvalidSpecPanics(t *testing.T) {
	dir := t.TempDir()
	specPath := filepath.Join(dir, "graph.wire.json")
	require.NoError(t, os.WriteFile(specPath, []byte(`{"package":"app"}`), 0o644))

	var stderr bytes.Buffer
	requirePanicContains(t, "services", func() {
		_ = run([]string{"-spec", specPath, "-out", filepath.Join(dir, "out.gen.go")}, &stderr)
	})
}

//
// -----------------------------------------------------------------------------
// Owner-file discovery and import resolution
// -----------------------------------------------------------------------------

// TestFindOwnerGoGenerateFile verifies discovery picks the directive-carrying
// file and skips tests and generated files.
func TestFindOwnerGoGenerateFile(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.go"),
		[]byte("package app\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "owner_test.go"),
		[]byte("package app\n//go:generate go run ./cmd/digen\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.gen.go"),
		[]byte("package app\n//go:generate go run ./cmd/digen\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "owner.go"),
		[]byte("package app\n//go:generate go run ./cmd/digen\n"), 0o644))

	got, err := findOwnerGoGenerateFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "owner.go"), got)
}

// TestFindOwnerGoGenerateFile_NotFound verifies the miss error names the dir.
func TestFindOwnerGoGenerateFile_NotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := findOwnerGoGenerateFile(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), dir)
}

// TestResolveImports_KeepsOwnerAliases verifies owner imports (with aliases)
// survive and the di import is appended once.
func TestResolveImports_KeepsOwnerAliases(t *testing.T) {
	dir := t.TempDir()
	owner := filepath.Join(dir, "owner.go")
	require.NoError(t, os.WriteFile(owner, []byte(`package app

import (
	storage "example.com/project/storage"
	"example.com/project/config"
)

var _ = storage.Store{}
var _ = config.Config{}
`), 0o644))

	got := resolveImports(owner, &Spec{})
	require.Len(t, got, 3)
	assert.Equal(t, ImportSpec{Alias: "storage", Path: "example.com/project/storage"}, got[0])
	assert.Equal(t, ImportSpec{Alias: "", Path: "example.com/project/config"}, got[1])
	assert.Equal(t, ImportSpec{Alias: "", Path: defaultDIImport}, got[2])
}

// TestResolveImports_DIAlreadyImported verifies no duplicate di import when
// the owner already has it.
func TestResolveImports_DIAlreadyImported(t *testing.T) {
	dir := t.TempDir()
	owner := filepath.Join(dir, "owner.go")
	require.NoError(t, os.WriteFile(owner, []byte(`package app

import "github.com/sghaida/codi/di"

var _ = di.Key
`), 0o644))

	got := resolveImports(owner, &Spec{})
	require.Len(t, got, 1)
	assert.Equal(t, defaultDIImport, got[0].Path)
}

//
// -----------------------------------------------------------------------------
// writeFileAtomic() seam helpers
// -----------------------------------------------------------------------------

// fakeTempFile is a controllable file-like object for writeFileAtomic tests.
// It lets us force errors on Write and Close without using a real file.
type fakeTempFile struct {
	fileName string
	writeErr error
	closeErr error
}

func (f *fakeTempFile) Name() string { return f.fileName }

func (f *fakeTempFile) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return len(p), nil
}

func (f *fakeTempFile) Close() error { return f.closeErr }

// withWriteFileSeams swaps the file-op seams for the duration of a test.
func withWriteFileSeams(t *testing.T,
	create func(string, string) (tempFile, error),
	remove func(string) error,
) {
	t.Helper()

	origCreate, origRemove := createTempFile, removeFile
	t.Cleanup(func() {
		createTempFile, removeFile = origCreate, origRemove
	})
	if create != nil {
		createTempFile = create
	}
	if remove != nil {
		removeFile = remove
	}
}

// TestWriteFileAtomic_Success verifies the rename lands the exact content.
func TestWriteFileAtomic_Success(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.gen.go")

	require.NoError(t, writeFileAtomic(target, []byte("package app\n"), 0o644))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "package app\n", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not survive a successful write")
}

// TestWriteFileAtomic_WriteErrorCleansUp verifies the temp file is removed on
// write failure.
func TestWriteFileAtomic_WriteErrorCleansUp(t *testing.T) {
	removed := ""
	withWriteFileSeams(t,
		func(dir, pattern string) (tempFile, error) {
			return &fakeTempFile{fileName: filepath.Join(dir, "x.tmp"), writeErr: errors.New("disk full")}, nil
		},
		func(name string) error {
			removed = name
			return nil
		},
	)

	err := writeFileAtomic(filepath.Join(t.TempDir(), "out.gen.go"), []byte("x"), 0o644)
	require.ErrorContains(t, err, "disk full")
	assert.NotEmpty(t, removed)
}

// TestWriteFileAtomic_CreateError verifies temp-file creation failures are
// returned as-is.
func TestWriteFileAtomic_CreateError(t *testing.T) {
	withWriteFileSeams(t,
		func(string, string) (tempFile, error) { return nil, errors.New("no temp dir") },
		nil,
	)

	err := writeFileAtomic(filepath.Join(t.TempDir(), "out.gen.go"), []byte("x"), 0o644)
	require.ErrorContains(t, err, "no temp dir")
}
