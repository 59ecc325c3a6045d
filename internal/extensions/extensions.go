// Package extensions provides the builtin functions, filters and testers
// installed into every registry unless disabled. Names follow the usual
// Jinja-family vocabulary so templates read the same as elsewhere.
package extensions

import (
	"github.com/conneroisu/hotplate/internal/registry"
)

// Registrar is the registration surface of a template registry.
type Registrar interface {
	RegisterFunction(name string, fn registry.Function)
	RegisterFilter(name string, fn registry.Filter)
	RegisterTester(name string, fn registry.Tester)
}

// Install registers every builtin into r. Later registrations under the same
// names replace them.
func Install(r Registrar) {
	for name, fn := range Functions() {
		r.RegisterFunction(name, fn)
	}
	for name, fn := range Filters() {
		r.RegisterFilter(name, fn)
	}
	for name, fn := range Testers() {
		r.RegisterTester(name, fn)
	}
}

// Functions returns the builtin functions.
func Functions() map[string]registry.Function {
	return map[string]registry.Function{
		"now":   now,
		"range": rangeFn,
		"dict":  dict,
		"list":  list,
	}
}

// Filters returns the builtin filters.
func Filters() map[string]registry.Filter {
	return map[string]registry.Filter{
		"upper":      upper,
		"lower":      lower,
		"title":      title,
		"capitalize": capitalize,
		"trim":       trim,
		"truncate":   truncate,
		"default":    defaultFilter,
		"length":     length,
		"join":       join,
		"replace":    replace,
		"striptags":  striptags,
		"sanitize":   sanitize,
		"safe":       safe,
	}
}

// Testers returns the builtin testers.
func Testers() map[string]registry.Tester {
	return map[string]registry.Tester{
		"defined":      defined,
		"none":         none,
		"empty":        empty,
		"even":         even,
		"odd":          odd,
		"divisibleby":  divisibleBy,
		"string":       isString,
		"number":       isNumber,
		"startingwith": startingWith,
		"endingwith":   endingWith,
		"containing":   containing,
	}
}
