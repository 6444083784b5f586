package seqfile

import (
	"fmt"
	"strconv"

	"github.com/p14c31355/dvcdbg/pkg/explore"
)

// File is the root of a parsed sequence file. A file may define several named
// sequences for the same or related devices.
type File struct {
	Sequences []*Sequence `parser:"@@*"`
}

// Sequence is one named bring-up sequence: an optional batch prefix and a set
// of commands with dependencies.
//
//	sequence ssd1306 {
//	    prefix 0x00
//
//	    cmd display_off bytes [0xAE]
//	    cmd clock_div   bytes [0xD5 0x80] after display_off
//	}
type Sequence struct {
	Name     string     `parser:"'sequence' @Ident '{'"`
	Prefix   []string   `parser:"('prefix' @Hex+)?"`
	Commands []*Command `parser:"@@* '}'"`
}

// Command is one bus command with its payload bytes and the names of the
// commands that must precede it.
type Command struct {
	Name  string   `parser:"'cmd' @Ident"`
	Bytes []string `parser:"'bytes' '[' @Hex+ ']'"`
	After []string `parser:"('after' @Ident (',' @Ident)*)?"`
}

// Sequence returns the named sequence, if defined.
func (f *File) Sequence(name string) (*Sequence, bool) {
	for _, s := range f.Sequences {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// PrefixBytes decodes the sequence's prefix literals.
func (s *Sequence) PrefixBytes() ([]byte, error) {
	return decodeHex(s.Prefix)
}

// Graph resolves command names to indices and builds the immutable command
// graph. Duplicate command names and references to undefined commands are
// configuration errors.
func (s *Sequence) Graph(opts explore.Options) (*explore.Graph, error) {
	index := make(map[string]int, len(s.Commands))
	for i, c := range s.Commands {
		if _, dup := index[c.Name]; dup {
			return nil, fmt.Errorf("seqfile: sequence %q defines command %q twice", s.Name, c.Name)
		}
		index[c.Name] = i
	}

	nodes := make([]explore.Node, len(s.Commands))
	for i, c := range s.Commands {
		payload, err := decodeHex(c.Bytes)
		if err != nil {
			return nil, fmt.Errorf("seqfile: command %q: %w", c.Name, err)
		}
		var deps []int
		for _, name := range c.After {
			d, ok := index[name]
			if !ok {
				return nil, fmt.Errorf("seqfile: command %q depends on undefined command %q", c.Name, name)
			}
			if d == i {
				return nil, fmt.Errorf("seqfile: command %q depends on itself", c.Name)
			}
			deps = append(deps, d)
		}
		nodes[i] = explore.Node{Payload: payload, Deps: deps}
	}

	g, err := explore.NewGraph(nodes, opts)
	if err != nil {
		return nil, fmt.Errorf("seqfile: sequence %q: %w", s.Name, err)
	}
	return g, nil
}

func decodeHex(literals []string) ([]byte, error) {
	if len(literals) == 0 {
		return nil, nil
	}
	out := make([]byte, len(literals))
	for i, lit := range literals {
		v, err := strconv.ParseUint(lit, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("seqfile: bad byte literal %q: %w", lit, err)
		}
		out[i] = byte(v)
	}
	return out, nil
}
