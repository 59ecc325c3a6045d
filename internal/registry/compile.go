package registry

import (
	"fmt"
	htmltemplate "html/template"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"text/template/parse"
	"time"

	"github.com/conneroisu/hotplate/internal/errors"
)

// autoEscaped lists the extensions compiled with html/template, so context
// values are escaped for the markup they land in.
var autoEscaped = map[string]bool{
	".html": true,
	".htm":  true,
	".xml":  true,
}

// AutoEscapes reports whether the template called name escapes its output.
func AutoEscapes(name string) bool {
	return autoEscaped[strings.ToLower(path.Ext(name))]
}

// executor is satisfied by both *template.Template and *htmltemplate.Template.
type executor interface {
	Execute(w io.Writer, data any) error
}

// compiledSet is one fully parsed and validated snapshot of the root.
// It is never mutated after compile returns.
type compiledSet struct {
	pages      map[string]executor
	names      []string
	generation uint64
	compiledAt time.Time
}

func (s *compiledSet) lookup(name string) executor {
	return s.pages[name]
}

// parsedFile holds every tree one file defines: its body under the file
// name plus each {{ define }} and {{ block }} inside it.
type parsedFile struct {
	name  string
	trees map[string]*parse.Tree
	defs  []string // sorted keys of trees
	refs  []reference
}

type reference struct {
	name string
	tree *parse.Tree
	node *parse.TemplateNode
}

// compile builds a fresh set from disk. It does not touch r.set and takes no
// locks: the dispatch builtins it installs read the extension tables only
// while a render holds the read lock.
//
// Every file gets a namespace of its own. A file's definitions come first,
// then those of the files it pulls in through {{ template }}, in the order
// they are reached. A page overriding a layout's {{ block }} therefore never
// leaks into its siblings.
func (r *Registry) compile() (*compiledSet, error) {
	sources, err := loadSources(r.fs, r.root, r.patterns)
	if err != nil {
		return nil, err
	}

	funcs := r.dispatchFuncs()
	problems := errors.NewProblemCollector()

	files := make([]*parsedFile, 0, len(sources))
	for _, src := range sources {
		pf, err := parseFile(src, funcs)
		if err != nil {
			problems.AddError(src.name, err)
			continue
		}
		files = append(files, pf)
	}
	if err := problems.Err(r.root); err != nil {
		return nil, err
	}

	ns := newNamespace(files)
	ns.validate(problems)
	if err := problems.Err(r.root); err != nil {
		return nil, err
	}

	set := &compiledSet{
		pages:      make(map[string]executor, len(files)),
		names:      make([]string, 0, len(files)),
		compiledAt: time.Now(),
	}
	for i, f := range files {
		page, err := ns.build(i, funcs)
		if err != nil {
			problems.AddError(f.name, err)
			continue
		}
		set.pages[f.name] = page
		set.names = append(set.names, f.name)
	}
	if err := problems.Err(r.root); err != nil {
		return nil, err
	}
	return set, nil
}

func parseFile(src source, funcs template.FuncMap) (*parsedFile, error) {
	t, err := template.New(src.name).
		Option("missingkey=error").
		Funcs(funcs).
		Parse(src.content)
	if err != nil {
		return nil, err
	}

	pf := &parsedFile{name: src.name, trees: make(map[string]*parse.Tree)}
	for _, tt := range t.Templates() {
		if tt.Tree == nil || tt.Tree.Root == nil {
			continue
		}
		pf.trees[tt.Name()] = tt.Tree
		pf.defs = append(pf.defs, tt.Name())
	}
	sort.Strings(pf.defs)

	for _, name := range pf.defs {
		tree := pf.trees[name]
		walkTemplateNodes(tree.Root, func(node *parse.TemplateNode) {
			pf.refs = append(pf.refs, reference{name: node.Name, tree: tree, node: node})
		})
	}
	return pf, nil
}

type namespace struct {
	files  []*parsedFile
	byFile map[string]int
	// owners maps a template name to the files defining it, in file order.
	owners map[string][]int
}

func newNamespace(files []*parsedFile) *namespace {
	ns := &namespace{
		files:  files,
		byFile: make(map[string]int, len(files)),
		owners: make(map[string][]int),
	}
	for i, f := range files {
		ns.byFile[f.name] = i
		for _, def := range f.defs {
			ns.owners[def] = append(ns.owners[def], i)
		}
	}
	return ns
}

// owner picks the file that supplies name when the including chain does
// not define it: the file of that name, else the first file defining it.
func (ns *namespace) owner(name string) (int, bool) {
	if i, ok := ns.byFile[name]; ok {
		return i, true
	}
	if owners := ns.owners[name]; len(owners) > 0 {
		return owners[0], true
	}
	return 0, false
}

// validate reports every {{ template "x" }} whose target is not defined
// anywhere under the root. The engine would only notice at render time.
func (ns *namespace) validate(problems *errors.ProblemCollector) {
	for _, f := range ns.files {
		for _, ref := range f.refs {
			if _, ok := ns.owner(ref.name); ok {
				continue
			}
			file, line, col := nodeLocation(ref.tree, ref.node)
			problems.Add(errors.Problem{
				File:    file,
				Line:    line,
				Column:  col,
				Message: fmt.Sprintf("template %q referenced but not defined", ref.name),
			}, nil)
		}
	}
}

// chain lists the files visible from file i, highest priority first.
func (ns *namespace) chain(i int) []int {
	order := []int{i}
	seen := map[int]bool{i: true}
	definedInChain := func(name string) bool {
		for _, j := range order {
			if _, ok := ns.files[j].trees[name]; ok {
				return true
			}
		}
		return false
	}

	for k := 0; k < len(order); k++ {
		for _, ref := range ns.files[order[k]].refs {
			if definedInChain(ref.name) {
				continue
			}
			j, ok := ns.owner(ref.name)
			if !ok || seen[j] {
				continue
			}
			seen[j] = true
			order = append(order, j)
		}
	}
	return order
}

// build assembles the namespace of file i. Trees are added lowest priority
// first so later additions replace earlier definitions of the same name.
func (ns *namespace) build(i int, funcs template.FuncMap) (executor, error) {
	name := ns.files[i].name
	order := ns.chain(i)

	if AutoEscapes(name) {
		t := htmltemplate.New(name).
			Option("missingkey=error").
			Funcs(htmltemplate.FuncMap(funcs))
		for k := len(order) - 1; k >= 0; k-- {
			f := ns.files[order[k]]
			for _, def := range f.defs {
				// html/template rewrites the trees it escapes.
				if _, err := t.AddParseTree(def, f.trees[def].Copy()); err != nil {
					return nil, err
				}
			}
		}
		return t.Lookup(name), nil
	}

	t := template.New(name).
		Option("missingkey=error").
		Funcs(funcs)
	for k := len(order) - 1; k >= 0; k-- {
		f := ns.files[order[k]]
		for _, def := range f.defs {
			if _, err := t.AddParseTree(def, f.trees[def]); err != nil {
				return nil, err
			}
		}
	}
	return t.Lookup(name), nil
}

func walkTemplateNodes(node parse.Node, visit func(*parse.TemplateNode)) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			walkTemplateNodes(child, visit)
		}
	case *parse.IfNode:
		walkTemplateNodes(n.List, visit)
		walkTemplateNodes(n.ElseList, visit)
	case *parse.RangeNode:
		walkTemplateNodes(n.List, visit)
		walkTemplateNodes(n.ElseList, visit)
	case *parse.WithNode:
		walkTemplateNodes(n.List, visit)
		walkTemplateNodes(n.ElseList, visit)
	case *parse.TemplateNode:
		visit(n)
	}
}

// nodeLocation splits the engine's "name:line:col" location.
func nodeLocation(tree *parse.Tree, node parse.Node) (string, int, int) {
	location, _ := tree.ErrorContext(node)
	parts := strings.Split(location, ":")
	if len(parts) < 3 {
		return tree.ParseName, 0, 0
	}
	line, _ := strconv.Atoi(parts[len(parts)-2])
	col, _ := strconv.Atoi(parts[len(parts)-1])
	return strings.Join(parts[:len(parts)-2], ":"), line, col
}
