package compose

import "strings"

// Flags is an ordered accumulator of compiler flag tokens. Tokens are never
// deduplicated or reordered; conflicts are left to the compiler.
type Flags []string

// Append adds tokens after every existing entry.
func (f *Flags) Append(tokens ...string) { *f = append(*f, tokens...) }

// String joins the tokens with single spaces, verbatim.
func (f Flags) String() string { return strings.Join(f, " ") }

// Var is one resolved environment assignment.
type Var struct {
	Name  string
	Value string
}

func (v Var) String() string { return v.Name + "=" + v.Value }

// Env is an ordered set of environment assignments. A name keeps the
// position of its first assignment; a later Set only replaces the value.
type Env struct {
	vars  []Var
	index map[string]int
}

// Set assigns value to name.
func (e *Env) Set(name, value string) {
	if e.index == nil {
		e.index = make(map[string]int)
	}
	if i, ok := e.index[name]; ok {
		e.vars[i].Value = value
		return
	}
	e.index[name] = len(e.vars)
	e.vars = append(e.vars, Var{Name: name, Value: value})
}

// Get returns the value assigned to name.
func (e Env) Get(name string) (string, bool) {
	i, ok := e.index[name]
	if !ok {
		return "", false
	}
	return e.vars[i].Value, true
}

// Vars returns the assignments in resolution order.
func (e Env) Vars() []Var {
	out := make([]Var, len(e.vars))
	copy(out, e.vars)
	return out
}

// Names returns the assigned names in resolution order.
func (e Env) Names() []string {
	out := make([]string, len(e.vars))
	for i, v := range e.vars {
		out[i] = v.Name
	}
	return out
}

func (e Env) Len() int { return len(e.vars) }

// Plan is everything the invoker needs to run one action.
type Plan struct {
	Action Action
	Flags  Flags
	Env    Env

	// Prefix holds NAME=value tokens to place before the command line.
	// Environ holds NAME=value entries to add to the child's environment.
	// Exactly one of them is populated, depending on the platform.
	Prefix  []string
	Environ []string

	// Steps are argv lists run in sequence; a step only runs when the
	// previous one succeeded.
	Steps [][]string
}
