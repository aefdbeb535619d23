package declfile

import (
	"fmt"
	"strings"

	"github.com/me/flowc/internal/compiler"
	"github.com/me/flowc/internal/config"
	"github.com/me/flowc/pkg/flow"
)

// Result holds everything compiled from one document.
type Result struct {
	// Main is the workflow named by the document's main key, or its only
	// workflow.
	Main      *compiler.Workflow
	Workflows map[string]*compiler.Workflow
	// Tasks are sorted by name.
	Tasks []*compiler.Task
	// Scope is the compile config with the document's project, domain
	// and version applied.
	Scope config.CompileConfig
}

// Compile builds every workflow in doc. Document-level project, domain
// and version override cc for the identifiers it assigns.
func (p *Parser) Compile(c *compiler.Compiler, doc *Document, cc config.CompileConfig) (*Result, error) {
	if doc.Project != "" {
		cc.Project = doc.Project
	}
	if doc.Domain != "" {
		cc.Domain = doc.Domain
	}
	if doc.Version != "" {
		cc.Version = doc.Version
	}

	b := &builder{
		c:         c,
		doc:       doc,
		cc:        cc,
		tasks:     map[string]*compiler.Task{},
		workflows: map[string]*compiler.Workflow{},
		building:  map[string]bool{},
	}
	res := &Result{Workflows: map[string]*compiler.Workflow{}, Scope: cc}
	for _, name := range sortedKeys(doc.Tasks) {
		t := b.task(name)
		b.tasks[name] = t
		res.Tasks = append(res.Tasks, t)
	}

	for _, name := range sortedKeys(doc.Workflows) {
		w, err := b.workflow(name)
		if err != nil {
			return nil, err
		}
		res.Workflows[name] = w
	}

	main := doc.Main
	if main == "" {
		if len(doc.Workflows) != 1 {
			return nil, compiler.ErrorStructural("main", "main is required when the file declares more than one workflow")
		}
		for name := range doc.Workflows {
			main = name
		}
	}
	w, ok := res.Workflows[main]
	if !ok {
		return nil, compiler.ErrorReference(main, "main names no declared workflow")
	}
	res.Main = w

	p.logger.Debug("compiled declaration file", "main", main, "workflows", len(res.Workflows), "tasks", len(res.Tasks))
	return res, nil
}

// Load parses and compiles the declaration file at path.
func (p *Parser) Load(c *compiler.Compiler, path string, cc config.CompileConfig) (*Result, error) {
	doc, err := p.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return p.Compile(c, doc, cc)
}

type builder struct {
	c         *compiler.Compiler
	doc       *Document
	cc        config.CompileConfig
	tasks     map[string]*compiler.Task
	workflows map[string]*compiler.Workflow
	building  map[string]bool
}

func (b *builder) identifier(rt flow.ResourceType, name string) flow.Identifier {
	return flow.Identifier{ResourceType: rt, Project: b.cc.Project, Domain: b.cc.Domain, Name: name, Version: b.cc.Version}
}

func (b *builder) task(name string) *compiler.Task {
	td := b.doc.Tasks[name]
	id := b.identifier(flow.ResourceTask, name)
	if td.ID != nil {
		id = *td.ID
	}
	return compiler.NewTask(flow.TaskTemplate{
		ID:        id,
		Type:      td.Type,
		Metadata:  td.Metadata,
		Interface: td.Interface,
		Custom:    td.Custom,
	})
}

// workflow builds the named workflow, building the workflows it calls
// first.
func (b *builder) workflow(name string) (*compiler.Workflow, error) {
	if w, ok := b.workflows[name]; ok {
		return w, nil
	}
	wd, ok := b.doc.Workflows[name]
	if !ok {
		return nil, compiler.ErrorReference(name, "no such workflow")
	}
	if b.building[name] {
		return nil, compiler.ErrorStructural(name, "workflow calls itself")
	}
	b.building[name] = true
	defer delete(b.building, name)

	sb := &surfaceBuilder{
		b:        b,
		wf:       name,
		decls:    wd.Declarations,
		entities: map[string]*compiler.Decl{},
		inputs:   map[string]*compiler.Input{},
		nodes:    map[string]*compiler.Node{},
		pending:  map[string]bool{},
	}
	surface := compiler.NewSurface()
	for _, attr := range sortedKeys(wd.Declarations) {
		d, err := sb.top(attr)
		if err != nil {
			return nil, err
		}
		surface.Set(attr, d)
	}

	w, err := b.c.Build(surface,
		compiler.WithID(b.identifier(flow.ResourceWorkflow, name)),
		compiler.WithMetadata(flow.WorkflowMetadata{OnFailure: wd.OnFailure}),
		compiler.WithMetadataDefaults(flow.WorkflowMetadataDefaults{Interruptible: wd.Interruptible}),
	)
	if err != nil {
		return nil, err
	}
	b.workflows[name] = w
	return w, nil
}

// surfaceBuilder turns one workflow's raw declarations into Decls.
// Top-level entities are memoized by name so refs, input arguments and
// promises all share one pointer.
type surfaceBuilder struct {
	b        *builder
	wf       string
	decls    map[string]any
	entities map[string]*compiler.Decl
	inputs   map[string]*compiler.Input
	nodes    map[string]*compiler.Node
	pending  map[string]bool
}

func (s *surfaceBuilder) path(parts ...string) string {
	return s.wf + "." + strings.Join(parts, ".")
}

// top returns the Decl for a top-level declaration.
func (s *surfaceBuilder) top(name string) (*compiler.Decl, error) {
	if d, ok := s.entities[name]; ok {
		return d, nil
	}
	raw, ok := s.decls[name]
	if !ok {
		return nil, compiler.ErrorReference(s.path(name), "no such declaration")
	}
	if s.pending[name] {
		return nil, compiler.ErrorStructural(s.path(name), "declaration depends on itself")
	}
	s.pending[name] = true
	defer delete(s.pending, name)

	d, err := s.entry(raw, name)
	if err != nil {
		return nil, err
	}
	s.entities[name] = d
	return d, nil
}

// entry interprets one declaration entry found at path.
func (s *surfaceBuilder) entry(raw any, path string) (*compiler.Decl, error) {
	m, ok := raw.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, compiler.ErrorStructural(s.path(path), "declaration must be a map with exactly one key")
	}
	for kind, v := range m {
		switch kind {
		case "input":
			in, err := s.newInput(path, v)
			if err != nil {
				return nil, err
			}
			return compiler.InputDecl(in), nil
		case "output":
			out, err := s.newOutput(path, v)
			if err != nil {
				return nil, err
			}
			return compiler.OutputDecl(out), nil
		case "node":
			n, err := s.newNode(path, v)
			if err != nil {
				return nil, err
			}
			return compiler.NodeDecl(n), nil
		case "branch":
			n, err := s.newBranch(path, v)
			if err != nil {
				return nil, err
			}
			return compiler.NodeDecl(n), nil
		case "list", "set":
			items, ok := v.([]any)
			if !ok {
				return nil, compiler.ErrorStructural(s.path(path), kind+" must be a sequence")
			}
			decls := make([]*compiler.Decl, 0, len(items))
			for i, item := range items {
				d, err := s.entry(item, fmt.Sprintf("%s[%d]", path, i))
				if err != nil {
					return nil, err
				}
				decls = append(decls, d)
			}
			if kind == "set" {
				return compiler.SetDecl(decls...), nil
			}
			return compiler.ListDecl(decls...), nil
		case "map":
			items, ok := v.([]any)
			if !ok {
				return nil, compiler.ErrorStructural(s.path(path), "map must be a sequence of key/value pairs")
			}
			entries := make([]compiler.MapEntry, 0, len(items))
			for i, item := range items {
				pair, ok := item.(map[string]any)
				if !ok {
					return nil, compiler.ErrorStructural(s.path(path), fmt.Sprintf("map item %d is not a key/value pair", i))
				}
				key, err := s.entry(pair["key"], fmt.Sprintf("%s[%d].key", path, i))
				if err != nil {
					return nil, err
				}
				value, err := s.entry(pair["value"], fmt.Sprintf("%s[%d].value", path, i))
				if err != nil {
					return nil, err
				}
				entries = append(entries, compiler.MapEntry{Key: key, Value: value})
			}
			return compiler.MapDecl(entries...), nil
		case "ref":
			target, _ := v.(string)
			return s.top(target)
		case "scalar":
			return compiler.ScalarDecl(v), nil
		default:
			return nil, compiler.ErrorStructural(s.path(path), fmt.Sprintf("unknown declaration kind %q", kind))
		}
	}
	return nil, nil
}

func (s *surfaceBuilder) newInput(path string, v any) (*compiler.Input, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, compiler.ErrorStructural(s.path(path), "input must be a map")
	}
	t, err := flow.ParseType(stringField(m, "type"))
	if err != nil {
		return nil, compiler.ErrorStructural(s.path(path, "type"), err.Error())
	}
	var opts []compiler.InputOption
	if def, ok := m["default"]; ok {
		lit, err := flow.PackLiteral(def, t)
		if err != nil {
			return nil, compiler.ErrorType(s.path(path, "default"), t.String(), fmt.Sprintf("%T", def))
		}
		opts = append(opts, compiler.WithDefault(lit))
	}
	if help := stringField(m, "help"); help != "" {
		opts = append(opts, compiler.WithHelp(help))
	}
	in, err := compiler.NewInput("", t, opts...)
	if err != nil {
		return nil, err
	}
	s.inputs[path] = in
	return in, nil
}

func (s *surfaceBuilder) newOutput(path string, v any) (*compiler.Output, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, compiler.ErrorStructural(s.path(path), "output must be a map")
	}
	value, ok := m["value"]
	if !ok {
		return nil, compiler.ErrorStructural(s.path(path), "output has no value")
	}
	var (
		opts []compiler.OutputOption
		want flow.LiteralType
	)
	if ts := stringField(m, "type"); ts != "" {
		t, err := flow.ParseType(ts)
		if err != nil {
			return nil, compiler.ErrorStructural(s.path(path, "type"), err.Error())
		}
		opts = append(opts, compiler.OfType(t))
		want = t
	}
	arg, err := s.arg(value, path+".value", want)
	if err != nil {
		return nil, err
	}
	if help := stringField(m, "help"); help != "" {
		opts = append(opts, compiler.WithDescription(help))
	}
	return compiler.NewOutput("", arg, opts...)
}

// newNode calls a task or workflow. A top-level node is memoized so
// promises and after lists resolve to it.
func (s *surfaceBuilder) newNode(path string, v any) (*compiler.Node, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, compiler.ErrorStructural(s.path(path), "node must be a map")
	}

	var (
		call   func(map[string]compiler.Arg, ...compiler.NodeOption) (*compiler.Node, error)
		params map[string]flow.Variable
	)
	switch task, wf := stringField(m, "task"), stringField(m, "workflow"); {
	case task != "" && wf != "":
		return nil, compiler.ErrorStructural(s.path(path), "node names both a task and a workflow")
	case task != "":
		t, ok := s.b.tasks[task]
		if !ok {
			return nil, compiler.ErrorReference(task, "no such task")
		}
		call, params = t.Call, t.Interface().Inputs
	case wf != "":
		callee, err := s.b.workflow(wf)
		if err != nil {
			return nil, err
		}
		call, params = callee.Call, callee.Interface().Inputs
	default:
		return nil, compiler.ErrorStructural(s.path(path), "node names neither a task nor a workflow")
	}

	rawArgs := mapField(m, "args")
	args := make(map[string]compiler.Arg, len(rawArgs))
	for _, name := range sortedKeys(rawArgs) {
		a, err := s.arg(rawArgs[name], path+".args."+name, params[name].Type)
		if err != nil {
			return nil, err
		}
		args[name] = a
	}
	opts, err := nodeOptions(s.path(path), m)
	if err != nil {
		return nil, err
	}
	n, err := call(args, opts...)
	if err != nil {
		return nil, err
	}

	after, _ := m["after"].([]any)
	for _, a := range after {
		name, _ := a.(string)
		up, err := s.node(name)
		if err != nil {
			return nil, err
		}
		n.RunsAfter(up)
	}
	s.nodes[path] = n
	return n, nil
}

func (s *surfaceBuilder) newBranch(path string, v any) (*compiler.Node, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, compiler.ErrorStructural(s.path(path), "branch must be a map")
	}
	rawCases, _ := m["cases"].([]any)
	cases := make([]compiler.BranchCase, 0, len(rawCases))
	for i, rc := range rawCases {
		cm, ok := rc.(map[string]any)
		if !ok {
			return nil, compiler.ErrorStructural(s.path(path), fmt.Sprintf("case %d must be a map", i))
		}
		then, err := s.newNode(fmt.Sprintf("%s.cases[%d]", path, i), cm["then"])
		if err != nil {
			return nil, err
		}
		cases = append(cases, compiler.BranchCase{Condition: stringField(cm, "when"), Then: then})
	}
	var otherwise *compiler.Node
	if e, ok := m["else"]; ok {
		n, err := s.newNode(path+".else", e)
		if err != nil {
			return nil, err
		}
		otherwise = n
	}
	opts, err := nodeOptions(s.path(path), m)
	if err != nil {
		return nil, err
	}
	n, err := compiler.Branch(cases, otherwise, opts...)
	if err != nil {
		return nil, err
	}
	s.nodes[path] = n
	return n, nil
}

func nodeOptions(path string, m map[string]any) ([]compiler.NodeOption, error) {
	var opts []compiler.NodeOption
	if name := stringField(m, "name"); name != "" {
		opts = append(opts, compiler.WithNodeName(name))
	}
	if r, ok := m["retries"].(int); ok {
		opts = append(opts, compiler.WithRetries(r))
	}
	d, err := durationField(m, "timeout", path)
	if err != nil {
		return nil, err
	}
	if d > 0 {
		opts = append(opts, compiler.WithTimeout(d))
	}
	if v, ok := m["interruptible"].(bool); ok {
		opts = append(opts, compiler.WithInterruptible(v))
	}
	return opts, nil
}

// node resolves a top-level node or branch by name.
func (s *surfaceBuilder) node(name string) (*compiler.Node, error) {
	if _, err := s.top(name); err != nil {
		return nil, err
	}
	n, ok := s.nodes[name]
	if !ok {
		return nil, compiler.ErrorReference(s.path(name), "not a node")
	}
	return n, nil
}

// input resolves a top-level input by name.
func (s *surfaceBuilder) input(name string) (*compiler.Input, error) {
	if _, err := s.top(name); err != nil {
		return nil, err
	}
	in, ok := s.inputs[name]
	if !ok {
		return nil, compiler.ErrorReference(s.path(name), "not an input")
	}
	return in, nil
}

// arg interprets a call argument or output value. want is the type
// declared for it, or the zero type when nothing is declared; literals
// are packed against it so strings can stand for datetimes, durations
// and blobs.
func (s *surfaceBuilder) arg(raw any, path string, want flow.LiteralType) (compiler.Arg, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		if list, isList := raw.([]any); isList {
			return s.argList(list, path, want)
		}
		return s.literal(raw, path, want)
	}

	switch {
	case m["input"] != nil:
		return s.input(stringField(m, "input"))
	case m["node"] != nil:
		n, err := s.node(stringField(m, "node"))
		if err != nil {
			return nil, err
		}
		out := stringField(m, "output")
		if out == "" {
			return nil, compiler.ErrorStructural(s.path(path), "node reference has no output")
		}
		return n.Output(out), nil
	case m["literal"] != nil:
		return s.literal(m["literal"], path, want)
	case m["list"] != nil:
		list, ok := m["list"].([]any)
		if !ok {
			return nil, compiler.ErrorStructural(s.path(path), "list must be a sequence")
		}
		return s.argList(list, path, want)
	case m["map"] != nil:
		entries, ok := m["map"].(map[string]any)
		if !ok {
			return nil, compiler.ErrorStructural(s.path(path), "map must be a mapping")
		}
		var elem flow.LiteralType
		if want.MapValueType != nil {
			elem = *want.MapValueType
		}
		out := compiler.ArgMap{}
		for _, k := range sortedKeys(entries) {
			a, err := s.arg(entries[k], path+"."+k, elem)
			if err != nil {
				return nil, err
			}
			out[k] = a
		}
		return out, nil
	default:
		return nil, compiler.ErrorStructural(s.path(path), "argument must be input, node, literal, list or map")
	}
}

func (s *surfaceBuilder) argList(items []any, path string, want flow.LiteralType) (compiler.Arg, error) {
	var elem flow.LiteralType
	if want.CollectionType != nil {
		elem = *want.CollectionType
	}
	out := make(compiler.ArgList, 0, len(items))
	for i, item := range items {
		a, err := s.arg(item, fmt.Sprintf("%s[%d]", path, i), elem)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// literal converts raw into a literal argument. Without a declared type
// the literal type is inferred from the value.
func (s *surfaceBuilder) literal(raw any, path string, want flow.LiteralType) (compiler.Arg, error) {
	if want.IsZero() || want.IsAny() {
		lit, err := flow.LiteralFromGo(raw)
		if err != nil {
			return nil, compiler.ErrorStructural(s.path(path), err.Error())
		}
		return compiler.Lit(lit), nil
	}
	lit, err := flow.PackLiteral(raw, want)
	if err != nil {
		return nil, compiler.ErrorType(s.path(path), want.String(), fmt.Sprintf("%T", raw))
	}
	return compiler.Lit(lit), nil
}
