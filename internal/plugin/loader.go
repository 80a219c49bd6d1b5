package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	goplugin "plugin"
	"sort"
	"strings"
)

// LoadErrorKind classifies load failures.
type LoadErrorKind int

const (
	NotFound LoadErrorKind = iota
	SymbolMissing
	NoVTable
	ABIMismatch
)

func (k LoadErrorKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case SymbolMissing:
		return "symbol missing"
	case NoVTable:
		return "no vtable"
	case ABIMismatch:
		return "ABI mismatch"
	default:
		return "unknown"
	}
}

// LoadError is returned by loaders.
type LoadError struct {
	Kind LoadErrorKind
	Name string
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("load plugin %q: %s", e.Name, e.Kind)
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a NotFound load error.
func IsNotFound(err error) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Kind == NotFound
}

// Loader resolves plugin names to loaded plugins. Loading has no side effects
// on live objects.
type Loader interface {
	Load(name string) (*Plugin, error)
	Available() ([]string, error)
}

// Registry resolves plugins compiled into the binary.
type Registry struct {
	factories map[string]func() VTable
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func() VTable)}
}

// Register adds a compiled-in plugin. Registering a name twice replaces the
// earlier factory.
func (r *Registry) Register(name string, factory func() VTable) {
	r.factories[name] = factory
}

// Load instantiates the named plugin.
func (r *Registry) Load(name string) (*Plugin, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, &LoadError{Kind: NotFound, Name: name}
	}
	p, err := New(factory(), "builtin")
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Name = name
		}
		return nil, err
	}
	if p.Name != name {
		return nil, &LoadError{Kind: NoVTable, Name: name, Path: "builtin", Err: fmt.Errorf("vtable reports name %q", p.Name)}
	}
	return p, nil
}

// Available lists the registered plugin names.
func (r *Registry) Available() ([]string, error) {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// SymbolName is the symbol a shared object plugin must export. It is either a
// variable of type VTable or a func() VTable.
const SymbolName = "VTable"

// DirLoader loads shared object plugins named lib<name>.so from a directory.
type DirLoader struct {
	Dir string
}

// Path returns the shared object path for name.
func (l DirLoader) Path(name string) string {
	return filepath.Join(l.Dir, "lib"+name+".so")
}

// Load opens the shared object and resolves its vtable.
func (l DirLoader) Load(name string) (*Plugin, error) {
	if l.Dir == "" {
		return nil, &LoadError{Kind: NotFound, Name: name}
	}
	path := l.Path(name)
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Kind: NotFound, Name: name, Path: path, Err: err}
	}
	so, err := goplugin.Open(path)
	if err != nil {
		return nil, &LoadError{Kind: NotFound, Name: name, Path: path, Err: err}
	}
	sym, err := so.Lookup(SymbolName)
	if err != nil {
		return nil, &LoadError{Kind: SymbolMissing, Name: name, Path: path, Err: err}
	}

	var vt VTable
	switch s := sym.(type) {
	case *VTable:
		vt = *s
	case func() VTable:
		vt = s()
	case VTable:
		vt = s
	}
	if vt == nil {
		return nil, &LoadError{Kind: NoVTable, Name: name, Path: path, Err: fmt.Errorf("symbol %s has type %T", SymbolName, sym)}
	}

	p, err := New(vt, path)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Name = name
		}
		return nil, err
	}
	return p, nil
}

// Available lists the plugin names found in the directory.
func (l DirLoader) Available() ([]string, error) {
	if l.Dir == "" {
		return nil, nil
	}
	matches, err := filepath.Glob(filepath.Join(l.Dir, "lib*.so"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		base := filepath.Base(m)
		names = append(names, strings.TrimSuffix(strings.TrimPrefix(base, "lib"), ".so"))
	}
	sort.Strings(names)
	return names, nil
}

// ChainLoader tries each loader in order. Only NotFound moves on to the next
// loader; any other failure is returned as is.
type ChainLoader []Loader

// Load resolves name through the chain.
func (c ChainLoader) Load(name string) (*Plugin, error) {
	for _, l := range c {
		p, err := l.Load(name)
		if err == nil {
			return p, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, &LoadError{Kind: NotFound, Name: name}
}

// Available merges the names of every loader.
func (c ChainLoader) Available() ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	for _, l := range c {
		list, err := l.Available()
		if err != nil {
			return nil, err
		}
		for _, n := range list {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}
