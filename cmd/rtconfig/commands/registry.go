// Package commands builds the rtconfig command tree and dispatches to it.
//
// Commands are declared once, as Entry values in a Registry built at process
// start. The registry is immutable: the cobra tree, help text and the
// dispatcher's command lookup are all derived from it.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/concave-dev/rtconfig/internal/syscfg"
	"github.com/spf13/pflag"
)

// Arity is the accepted number of positional arguments. Max < 0 means
// unbounded.
type Arity struct {
	Min int
	Max int
}

// Exactly accepts n arguments.
func Exactly(n int) Arity { return Arity{Min: n, Max: n} }

// Between accepts min to max arguments.
func Between(min, max int) Arity { return Arity{Min: min, Max: max} }

// Accepts reports whether n arguments satisfy the arity.
func (a Arity) Accepts(n int) bool {
	return n >= a.Min && (a.Max < 0 || n <= a.Max)
}

// Env is what a handler runs with: the service, where to print and the
// session credentials from the global flags.
type Env struct {
	Service syscfg.Service
	Out     io.Writer

	// Session carries -u, -p and --timeout.
	Session syscfg.SessionOptions

	JSON    bool
	Verbose bool

	// Flags holds the command's own flags, registered by Entry.Flags.
	Flags *pflag.FlagSet

	// Getwd returns the directory getimage saves into.
	Getwd func() (string, error)
}

// Printf writes a progress or result line. Progress lines are dropped in
// JSON mode so the output stays parseable.
func (e *Env) Printf(format string, args ...any) {
	if e.JSON {
		return
	}
	fmt.Fprintf(e.Out, format, args...)
}

// Handler runs one command with its positional arguments.
type Handler func(ctx context.Context, env *Env, args []string) error

// Entry declares one command.
type Entry struct {
	Name    string
	Usage   string // e.g. "setip <TARGETNAME> <NEW_IP> [SUBNET_MASK]"
	Short   string
	Arity   Arity
	Handler Handler

	// Flags registers command-specific flags. Optional.
	Flags func(fs *pflag.FlagSet)
}

// Registry is an immutable, ordered set of commands.
type Registry struct {
	entries []Entry
	byName  map[string]int
}

// NewRegistry validates entries and builds a registry. Names must be unique
// and every entry needs a handler.
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{
		entries: make([]Entry, 0, len(entries)),
		byName:  make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("command with usage %q has no name", e.Usage)
		}
		if e.Handler == nil {
			return nil, fmt.Errorf("command %s has no handler", e.Name)
		}
		if e.Arity.Min < 0 || (e.Arity.Max >= 0 && e.Arity.Max < e.Arity.Min) {
			return nil, fmt.Errorf("command %s has invalid arity %d..%d", e.Name, e.Arity.Min, e.Arity.Max)
		}
		if _, dup := r.byName[e.Name]; dup {
			return nil, fmt.Errorf("duplicate command %s", e.Name)
		}
		r.byName[e.Name] = len(r.entries)
		r.entries = append(r.entries, e)
	}
	return r, nil
}

// Lookup finds a command by exact, case-sensitive name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Entries returns the commands in registration order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// UsageError reports that a command was called with the wrong arguments.
// The usage line has already been printed when it is returned.
type UsageError struct {
	Usage  string
	Reason string
}

func (e *UsageError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return "expecting arguments: " + e.Usage
}

// ExpectingArguments prints the usage line and returns the UsageError.
func ExpectingArguments(w io.Writer, usage string) error {
	fmt.Fprintf(w, "Error Expecting Arguments: %s\n", usage)
	return &UsageError{Usage: usage}
}
