// Package rubric holds the closed set of self-assessment options a student can be marked with.
package rubric

import "github.com/pkg/errors"

// Option is a rubric option identifier.
type Option string

const (
	CannotDo        Option = "cannot_do"
	NeedsHelp       Option = "needs_help"
	Understood      Option = "understood"
	LearnedCanWrite Option = "learned_can_write"
	CanTeachOthers  Option = "can_teach_others"

	// Unknown stands for any id outside the enumeration. It is worth 0 marks.
	Unknown Option = ""
)

type definition struct {
	text  string
	marks int
}

var (
	ordered = []Option{CannotDo, NeedsHelp, Understood, LearnedCanWrite, CanTeachOthers}

	definitions = map[Option]definition{
		CannotDo:        {text: "Could not solve the problem", marks: -5},
		NeedsHelp:       {text: "Solved it with help", marks: 0},
		Understood:      {text: "Understood the solution", marks: 5},
		LearnedCanWrite: {text: "Learned it and can write it alone", marks: 10},
		CanTeachOthers:  {text: "Can explain it to the others", marks: 15},
	}
)

// All returns the known options, worst to best.
func All() []Option {
	all := make([]Option, len(ordered))
	copy(all, ordered)
	return all
}

// Parse returns the option with the given id, or Unknown and false.
func Parse(id string) (Option, bool) {
	opt := Option(id)
	if _, ok := definitions[opt]; !ok {
		return Unknown, false
	}
	return opt, true
}

// Marks returns the signed marks of the option with the given id; 0 if unknown.
func Marks(id string) int {
	return definitions[Option(id)].marks
}

func (o Option) Known() bool {
	_, ok := definitions[o]
	return ok
}

func (o Option) Marks() int { return definitions[o].marks }

func (o Option) Text() string { return definitions[o].text }

func (o Option) String() string {
	if !o.Known() {
		return "unknown"
	}
	return string(o)
}

func (o Option) MarshalText() ([]byte, error) {
	return []byte(o), nil
}

func (o *Option) UnmarshalText(b []byte) error {
	opt, ok := Parse(string(b))
	if !ok {
		return errors.Errorf("unknown rubric option %q", b)
	}
	*o = opt
	return nil
}

// Info is the JSON representation of an option, as listed to clients.
type Info struct {
	ID    Option `json:"id"`
	Text  string `json:"text"`
	Marks int    `json:"marks"`
}

func Infos() []Info {
	infos := make([]Info, 0, len(ordered))
	for _, opt := range ordered {
		infos = append(infos, Info{ID: opt, Text: opt.Text(), Marks: opt.Marks()})
	}
	return infos
}
