// cmd/digen/main.go
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"go/format"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// This binary is a code-generation tool.
//
// It reads a JSON specification describing a dependency graph (services, their
// constructors, and their dependency tokens), then generates explicit
// registration code for the di container: token constants, a RegisterGraph
// function issuing Construct registrations, and typed accessors per service.
//
// The generated code contains no reflection; every registration funnels
// through the container's normal resolver, so cycle detection and child-scope
// overrides apply to generated wiring exactly as to hand-written wiring.
//
// Key behaviors:
// - Reads spec JSON: package, values (externally registered tokens), services
// - Locates the "owner" Go file (the file containing the go:generate for
//   cmd/digen) in the output directory and reuses its imports, so generated
//   code matches local style
// - Ensures the di package import is present (aliased `di` if needed)
// - Writes output atomically (temp file + rename) to avoid partial writes

// defaultDIImport is the import path of the container package referenced by
// generated code.
const defaultDIImport = "github.com/sghaida/codi/di"

// Value describes a token the generated graph depends on but does not
// construct: the caller registers it (usually as a constant) before calling
// RegisterGraph.
type Value struct {
	// Name is used for the token constant (Token<Name>) and for dep references.
	Name string `json:"name"`

	// Token is the string key passed to di.Key.
	Token string `json:"token"`

	// Type is the Go type of the value, used by generated dep assertions.
	Type string `json:"type"`
}

// Service describes one constructable node of the graph.
type Service struct {
	// Name is used for the token constant, the accessor function, and dep
	// references from other services.
	Name string `json:"name"`

	// Token is the string key passed to di.Key.
	Token string `json:"token"`

	// Type is the Go type produced by the constructor.
	Type string `json:"type"`

	// Constructor is the (possibly package-qualified) constructor to call.
	Constructor string `json:"constructor"`

	// Lifetime is one of "singleton", "scoped", "transient".
	// Empty defaults to "singleton".
	Lifetime string `json:"lifetime"`

	// Deps lists the Names (not tokens) of values/services the constructor
	// takes, in parameter order.
	Deps []string `json:"deps"`

	// ReturnsError marks constructors with a (T, error) signature.
	ReturnsError bool `json:"returnsError"`
}

// Spec is the full input schema consumed by the generator.
type Spec struct {
	Package string `json:"package"`

	// DIImport optionally overrides the container import path (useful for
	// forks and vendoring). Empty means defaultDIImport.
	DIImport string `json:"diImport"`

	Values   []Value   `json:"values"`
	Services []Service `json:"services"`
}

// ImportSpec models one Go import: optional alias and full import path.
type ImportSpec struct {
	Alias string
	Path  string
}

// depRef is a resolved dependency reference used by the template: the token
// constant to resolve plus the type to assert the resolved instance to.
type depRef struct {
	TokenConst string
	Type       string
}

// serviceData is one service prepared for the template.
type serviceData struct {
	Service
	TokenConst    string
	LifetimeConst string
	DepRefs       []depRef
}

// templateData is the input passed to the Go template.
type templateData struct {
	Package     string
	ImportsList []ImportSpec
	Values      []Value
	Services    []serviceData
}

// run executes the generator logic and returns an exit code.
// It exists separately from main to allow unit testing without os.Exit.
func run(args []string, stderr io.Writer) int {
	flags := flag.NewFlagSet("digen", flag.ContinueOnError)
	flags.SetOutput(stderr)

	specPath := flags.String("spec", "", "path to graph.wire.json")
	outPath := flags.String("out", "", "output .gen.go file path")

	if err := flags.Parse(args); err != nil {
		return 2
	}

	if strings.TrimSpace(*specPath) == "" || strings.TrimSpace(*outPath) == "" {
		_, _ = fmt.Fprintln(stderr, "usage: digen -spec <graph.wire.json> -out <file.gen.go>")
		return 2
	}

	specBytes, err := os.ReadFile(*specPath)
	must(err)

	var spec Spec
	must(json.Unmarshal(specBytes, &spec))

	validateSpec(&spec)

	generatedFilePath := filepath.Clean(*outPath)
	packageDir := filepath.Dir(generatedFilePath)

	ownerGoFilePath, err := findOwnerGoGenerateFile(packageDir)
	if err != nil {
		// Not fatal: without an owner file we still generate, importing only
		// the di package. Types referenced by the spec must then be local.
		ownerGoFilePath = ""
	}

	importsList := resolveImports(ownerGoFilePath, &spec)

	data, err := buildTemplateData(&spec, importsList)
	must(err)

	var out strings.Builder
	must(genTemplate.Execute(&out, data))

	formatted, err := format.Source([]byte(out.String()))
	must(err)

	must(writeFileAtomic(generatedFilePath, formatted, 0o644))
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// validateSpec validates semantic correctness of the input specification.
func validateSpec(spec *Spec) {
	var missingFields []string

	if strings.TrimSpace(spec.Package) == "" {
		missingFields = append(missingFields, "package")
	}
	if len(spec.Services) == 0 {
		missingFields = append(missingFields, "services (must have at least 1)")
	}
	if len(missingFields) > 0 {
		panic(fmt.Errorf("spec missing required fields: %v", missingFields))
	}

	names := make(map[string]struct{}, len(spec.Values)+len(spec.Services))
	tokens := make(map[string]struct{}, len(spec.Values)+len(spec.Services))

	claim := func(name, tok string, kind string) {
		if name == "" || tok == "" {
			panic(fmt.Errorf("each %s must have name and token; got name=%q token=%q", kind, name, tok))
		}
		if _, ok := names[name]; ok {
			panic(fmt.Errorf("duplicate name: %s", name))
		}
		if _, ok := tokens[tok]; ok {
			panic(fmt.Errorf("duplicate token: %s", tok))
		}
		names[name] = struct{}{}
		tokens[tok] = struct{}{}
	}

	for _, v := range spec.Values {
		if v.Type == "" {
			panic(fmt.Errorf("value %q missing type", v.Name))
		}
		claim(v.Name, v.Token, "value")
	}
	for _, s := range spec.Services {
		if s.Type == "" || s.Constructor == "" {
			panic(fmt.Errorf("service %q must have type and constructor; got: %+v", s.Name, s))
		}
		switch s.Lifetime {
		case "", "singleton", "scoped", "transient":
		default:
			panic(fmt.Errorf("service %q has unknown lifetime %q", s.Name, s.Lifetime))
		}
		claim(s.Name, s.Token, "service")
	}

	// Dep references must point at a declared value or service.
	for _, s := range spec.Services {
		for _, dep := range s.Deps {
			if _, ok := names[dep]; !ok {
				panic(fmt.Errorf("service %q depends on undeclared name %q", s.Name, dep))
			}
		}
	}
}

// buildTemplateData resolves dep references and lifetimes into template form.
func buildTemplateData(spec *Spec, importsList []ImportSpec) (templateData, error) {
	typeByName := make(map[string]string, len(spec.Values)+len(spec.Services))
	for _, v := range spec.Values {
		typeByName[v.Name] = v.Type
	}
	for _, s := range spec.Services {
		typeByName[s.Name] = s.Type
	}

	services := make([]serviceData, 0, len(spec.Services))
	for _, s := range spec.Services {
		sd := serviceData{
			Service:       s,
			TokenConst:    "Token" + s.Name,
			LifetimeConst: lifetimeConst(s.Lifetime),
		}
		for _, dep := range s.Deps {
			sd.DepRefs = append(sd.DepRefs, depRef{
				TokenConst: "Token" + dep,
				Type:       typeByName[dep],
			})
		}
		services = append(services, sd)
	}

	return templateData{
		Package:     spec.Package,
		ImportsList: importsList,
		Values:      spec.Values,
		Services:    services,
	}, nil
}

func lifetimeConst(lifetime string) string {
	switch lifetime {
	case "scoped":
		return "di.Scoped"
	case "transient":
		return "di.Transient"
	default:
		return "di.Singleton"
	}
}

// findOwnerGoGenerateFile finds the Go source file in packageDir that contains
// a go:generate directive invoking cmd/digen.
//
// This is used to discover the owner file's imports so generated code matches
// local style.
func findOwnerGoGenerateFile(packageDir string) (string, error) {
	dirEntries, err := os.ReadDir(packageDir)
	if err != nil {
		return "", err
	}

	for _, entry := range dirEntries {
		if entry.IsDir() {
			continue
		}

		fileName := entry.Name()
		if !strings.HasSuffix(fileName, ".go") ||
			strings.HasSuffix(fileName, "_test.go") ||
			strings.HasSuffix(fileName, ".gen.go") {
			continue
		}

		filePath := filepath.Join(packageDir, fileName)
		fileBytes, err := os.ReadFile(filePath)
		if err != nil {
			// Best-effort: unreadable file shouldn't break generation.
			continue
		}

		if bytes.Contains(fileBytes, []byte("go:generate")) && bytes.Contains(fileBytes, []byte("cmd/digen")) {
			return filePath, nil
		}
	}

	return "", fmt.Errorf("could not find owner file with go:generate invoking cmd/digen in %s", packageDir)
}

// readImportsFromFile parses imports from a Go file.
func readImportsFromFile(goFilePath string) ([]ImportSpec, error) {
	fileSet := token.NewFileSet()
	parsedFile, err := parser.ParseFile(fileSet, goFilePath, nil, parser.ImportsOnly)
	if err != nil {
		return nil, err
	}

	var imports []ImportSpec
	for _, importDecl := range parsedFile.Imports {
		importPath := strings.Trim(importDecl.Path.Value, `"`)
		importAlias := ""
		if importDecl.Name != nil {
			importAlias = importDecl.Name.Name
		}
		imports = append(imports, ImportSpec{Alias: importAlias, Path: importPath})
	}

	return imports, nil
}

func ensureImport(imports *[]ImportSpec, required ImportSpec) {
	for _, existing := range *imports {
		if existing.Path == required.Path {
			// Don't duplicate the path; keep existing alias as-is.
			return
		}
	}
	*imports = append(*imports, required)
}

// resolveImports builds the final imports list for the generated file.
//
// Rules:
// - Prefer imports from the owner file, if available
// - Always ensure the di package is importable as identifier `di`: keep an
//   existing import of the path as-is, otherwise append one without alias
//   (the path base is already "di")
func resolveImports(ownerFilePath string, spec *Spec) []ImportSpec {
	var importsFromOwner []ImportSpec
	if strings.TrimSpace(ownerFilePath) != "" {
		parsedOwnerImports, err := readImportsFromFile(ownerFilePath)
		if err == nil {
			importsFromOwner = parsedOwnerImports
		}
		// If parsing fails, fall back to just the di import.
	}

	finalImports := make([]ImportSpec, 0, len(importsFromOwner)+1)
	finalImports = append(finalImports, importsFromOwner...)

	diImport := strings.TrimSpace(spec.DIImport)
	if diImport == "" {
		diImport = defaultDIImport
	}
	ensureImport(&finalImports, ImportSpec{Path: diImport})

	return finalImports
}

// genTemplate is the Go source template used to generate the wiring code.
var genTemplate = template.Must(
	template.New("digen").Parse(`// Code generated by digen; DO NOT EDIT.

package {{.Package}}

import (
{{- range .ImportsList}}
	{{if .Alias}}{{.Alias}} {{end}}"{{.Path}}"
{{- end}}
)

// Tokens of the generated wiring graph.
var (
{{- range .Values}}
	Token{{.Name}} = di.Key("{{.Token}}")
{{- end}}
{{- range .Services}}
	{{.TokenConst}} = di.Key("{{.Token}}")
{{- end}}
)

// RegisterGraph registers the declared services on scope.
{{- if .Values}}
//
// Value tokens ({{range $i, $v := .Values}}{{if $i}}, {{end}}Token{{$v.Name}}{{end}}) are not registered here:
// the caller provides them (typically via scope.Constant) before resolving.
{{- end}}
func RegisterGraph(scope *di.Scope) error {
{{- range .Services}}
	if err := scope.Construct({{.TokenConst}}, {{.LifetimeConst}}, []di.Token{ {{- range $i, $d := .DepRefs}}{{if $i}}, {{end}}{{$d.TokenConst}}{{end -}} },
		func(deps []any) (any, error) {
{{- if .ReturnsError}}
			return {{.Constructor}}({{range $i, $d := .DepRefs}}{{if $i}}, {{end}}deps[{{$i}}].({{$d.Type}}){{end}})
{{- else}}
			return {{.Constructor}}({{range $i, $d := .DepRefs}}{{if $i}}, {{end}}deps[{{$i}}].({{$d.Type}}){{end}}), nil
{{- end}}
		}); err != nil {
		return err
	}
{{- end}}
	return nil
}
{{range .Services}}
// Resolve{{.Name}} resolves the {{.TokenConst}} service from scope.
func Resolve{{.Name}}(scope *di.Scope) ({{.Type}}, error) {
	return di.Resolve[{{.Type}}](scope, {{.TokenConst}})
}
{{end -}}
`),
)

// tempFile abstracts an os.File for testability.
type tempFile interface {
	Name() string
	Write([]byte) (int, error)
	Close() error
}

// File operation hooks, overridden in tests.
var (
	createTempFile = func(dir, pattern string) (tempFile, error) { return os.CreateTemp(dir, pattern) }
	chmodFile      = os.Chmod
	renameFile     = os.Rename
	removeFile     = os.Remove
)

// writeFileAtomic writes a file atomically.
//
// It writes to a temporary file in the same directory and then renames it over
// the target path, ensuring readers never observe partial writes.
func writeFileAtomic(targetPath string, data []byte, perm os.FileMode) (err error) {
	targetDir := filepath.Dir(targetPath)

	tmpFile, err := createTempFile(targetDir, filepath.Base(targetPath)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if err != nil {
			_ = removeFile(tmpPath)
		}
	}()

	if _, err = tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err = tmpFile.Close(); err != nil {
		return err
	}
	if err = chmodFile(tmpPath, perm); err != nil {
		return err
	}
	if err = renameFile(tmpPath, targetPath); err != nil {
		return err
	}
	return nil
}

// must panics if err is non-nil.
func must(err error) {
	if err != nil {
		panic(err)
	}
}
