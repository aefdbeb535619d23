// Package declfile reads workflow declarations from YAML and compiles
// them.
//
// A declaration file names tasks and workflows. Each workflow is a set
// of named declarations that becomes a compiler.Surface:
//
//	project: genomics            # optional, overrides the compile context
//	domain: dev
//	version: v3
//	main: pipeline               # optional when there is one workflow
//	tasks:
//	  double:
//	    type: container
//	    retries: 2
//	    timeout: 5m
//	    custom: {image: "doubler:1"}
//	    inputs: {a: int}
//	    outputs: {y: {type: int, description: "2a"}}
//	  remote:
//	    id: task:shared:prod:remote:v9   # explicit identifier
//	    inputs: {a: int}
//	workflows:
//	  pipeline:
//	    on_failure: FAIL_AFTER_EXECUTABLE_NODES_COMPLETE
//	    interruptible: true
//	    declarations:
//	      x:      {input: {type: int, default: 3, help: "seed"}}
//	      n1:     {node: {task: double, args: {a: {input: x}}, retries: 1}}
//	      sub:    {node: {workflow: child, args: {v: {node: n1, output: y}}}}
//	      pick:   {branch: {cases: [{when: "x > 1", then: {task: double, args: {a: 1}}}], else: {task: double, args: {a: 0}}}}
//	      result: {output: {type: int, value: {node: n1, output: y}}}
//	      group:  {list: [{ref: n1}, {scalar: tag}]}
//
// Declaration entries are input, output, node, branch, list, set, map,
// ref (another top-level declaration of the same workflow) and scalar.
// A map entry is {map: [{key: <entry>, value: <entry>}, ...]}.
//
// Arguments are {input: name}, {node: name, output: var}, {literal: v},
// {list: [...]}, {map: {...}}, or a bare scalar taken as a literal.
// Node options are name, retries, timeout, interruptible and after (a
// list of node names the node must run after).
package declfile

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/me/flowc/internal/compiler"
	"github.com/me/flowc/pkg/flow"
)

// Document is a parsed declaration file.
type Document struct {
	Project   string
	Domain    string
	Version   string
	Main      string
	Tasks     map[string]TaskDecl
	Workflows map[string]WorkflowDecl
}

// TaskDecl is a task entry. ID is set only when the file gives one.
type TaskDecl struct {
	ID        *flow.Identifier
	Type      string
	Metadata  flow.TaskMetadata
	Interface flow.TypedInterface
	Custom    map[string]any
}

// WorkflowDecl is a workflow entry. Declarations keep the raw YAML
// values; they are interpreted when the workflow is built.
type WorkflowDecl struct {
	OnFailure     flow.FailurePolicy
	Interruptible bool
	Declarations  map[string]any
}

// Parser converts declaration YAML into Documents and compiled workflows.
type Parser struct {
	logger *slog.Logger
}

// New creates a Parser with the given logger.
func New(logger *slog.Logger) *Parser {
	return &Parser{logger: logger.With("component", "declfile")}
}

// ParseFile reads and parses the declaration file at path.
func (p *Parser) ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, compiler.ErrorSerialization("read "+path, err)
	}
	return p.Parse(data)
}

// Parse parses a declaration document.
func (p *Parser) Parse(data []byte) (*Document, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, compiler.ErrorSerialization("declaration file", err)
	}
	if raw == nil {
		return nil, compiler.ErrorStructural("document", "declaration file is empty")
	}

	doc := &Document{
		Project:   stringField(raw, "project"),
		Domain:    stringField(raw, "domain"),
		Version:   stringField(raw, "version"),
		Main:      stringField(raw, "main"),
		Tasks:     map[string]TaskDecl{},
		Workflows: map[string]WorkflowDecl{},
	}

	tasks, err := mapValue(raw, "tasks")
	if err != nil {
		return nil, err
	}
	for _, name := range sortedKeys(tasks) {
		m, ok := tasks[name].(map[string]any)
		if !ok {
			return nil, compiler.ErrorStructural("tasks."+name, fmt.Sprintf("expected map, got %T", tasks[name]))
		}
		td, err := parseTask("tasks."+name, m)
		if err != nil {
			return nil, err
		}
		doc.Tasks[name] = td
	}

	workflows, err := mapValue(raw, "workflows")
	if err != nil {
		return nil, err
	}
	for _, name := range sortedKeys(workflows) {
		m, ok := workflows[name].(map[string]any)
		if !ok {
			return nil, compiler.ErrorStructural("workflows."+name, fmt.Sprintf("expected map, got %T", workflows[name]))
		}
		wd, err := parseWorkflow("workflows."+name, m)
		if err != nil {
			return nil, err
		}
		doc.Workflows[name] = wd
	}
	if len(doc.Workflows) == 0 {
		return nil, compiler.ErrorStructural("workflows", "at least one workflow is required")
	}

	p.logger.Debug("parsed declaration file",
		"tasks", len(doc.Tasks), "workflows", len(doc.Workflows), "main", doc.Main)
	return doc, nil
}

func parseTask(path string, m map[string]any) (TaskDecl, error) {
	td := TaskDecl{
		Type:      stringField(m, "type"),
		Interface: flow.NewInterface(),
		Custom:    mapField(m, "custom"),
	}
	if td.Type == "" {
		td.Type = "container"
	}
	if s := stringField(m, "id"); s != "" {
		id, err := flow.ParseIdentifier(s)
		if err != nil {
			return td, compiler.ErrorStructural(path+".id", err.Error())
		}
		if id.ResourceType != flow.ResourceTask {
			return td, compiler.ErrorStructural(path+".id", "identifier must name a task")
		}
		td.ID = &id
	}
	if v, ok := m["retries"].(int); ok {
		td.Metadata.Retries = v
	}
	d, err := durationField(m, "timeout", path)
	if err != nil {
		return td, err
	}
	td.Metadata.Timeout = d
	td.Metadata.Discoverable = boolField(m, "discoverable")
	td.Metadata.DiscoveryVersion = stringField(m, "discovery_version")

	if td.Interface.Inputs, err = parseVariables(path+".inputs", mapField(m, "inputs")); err != nil {
		return td, err
	}
	if td.Interface.Outputs, err = parseVariables(path+".outputs", mapField(m, "outputs")); err != nil {
		return td, err
	}
	return td, nil
}

// parseVariables accepts either "name: type" or "name: {type, description}".
func parseVariables(path string, m map[string]any) (map[string]flow.Variable, error) {
	out := make(map[string]flow.Variable, len(m))
	for name, v := range m {
		var typeStr, desc string
		switch val := v.(type) {
		case string:
			typeStr = val
		case map[string]any:
			typeStr = stringField(val, "type")
			desc = stringField(val, "description")
		default:
			return nil, compiler.ErrorStructural(path+"."+name, fmt.Sprintf("expected type string or map, got %T", v))
		}
		t, err := flow.ParseType(typeStr)
		if err != nil {
			return nil, compiler.ErrorStructural(path+"."+name, err.Error())
		}
		out[name] = flow.Variable{Type: t, Description: desc}
	}
	return out, nil
}

func parseWorkflow(path string, m map[string]any) (WorkflowDecl, error) {
	wd := WorkflowDecl{
		OnFailure:     flow.FailurePolicy(stringField(m, "on_failure")),
		Interruptible: boolField(m, "interruptible"),
		Declarations:  mapField(m, "declarations"),
	}
	switch wd.OnFailure {
	case "", flow.FailImmediately, flow.FailAfterExecutableNodesComplete:
	default:
		return wd, compiler.ErrorStructural(path+".on_failure", fmt.Sprintf("unknown failure policy %q", wd.OnFailure))
	}
	if len(wd.Declarations) == 0 {
		return wd, compiler.ErrorStructural(path+".declarations", "workflow declares nothing")
	}
	return wd, nil
}

// stringField safely extracts a string from a map.
func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	// YAML may decode version-like values as numbers.
	return fmt.Sprintf("%v", v)
}

// mapField safely extracts a nested map.
func mapField(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return nil
}

// boolField safely extracts a bool from a map.
func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

// mapValue is mapField that rejects a present key of the wrong shape.
func mapValue(m map[string]any, key string) (map[string]any, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	out, ok := v.(map[string]any)
	if !ok {
		return nil, compiler.ErrorStructural(key, fmt.Sprintf("expected map, got %T", v))
	}
	return out, nil
}

func durationField(m map[string]any, key, path string) (time.Duration, error) {
	s := stringField(m, key)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, compiler.ErrorStructural(path+"."+key, err.Error())
	}
	return d, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
