// Package phase defines the fixed progression a transformation
// conversation moves through. Phases form a closed enumeration so that
// transition logic can be checked for exhaustiveness.
package phase

import (
	"encoding/json"
	"fmt"
)

// Phase is one stage of a transformation conversation. Sessions only ever
// move forward through the ordered phases and never skip one.
type Phase int

const (
	Discover Phase = iota
	Assess
	Justify
	Plan
	Complete
)

// Conversational returns the four phases that collect information, in
// order. Complete is terminal and collects nothing.
func Conversational() []Phase {
	return []Phase{Discover, Assess, Justify, Plan}
}

func (p Phase) String() string {
	switch p {
	case Discover:
		return "discover"
	case Assess:
		return "assess"
	case Justify:
		return "justify"
	case Plan:
		return "plan"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Next returns the phase that follows p. Complete is a fixed point.
func (p Phase) Next() Phase {
	if p >= Plan {
		return Complete
	}
	return p + 1
}

// Terminal reports whether p is the final phase.
func (p Phase) Terminal() bool {
	return p == Complete
}

// Before reports whether p is ordered strictly before other.
func (p Phase) Before(other Phase) bool {
	return p < other
}

// Parse converts a phase name back into a Phase.
func Parse(name string) (Phase, error) {
	switch name {
	case "discover":
		return Discover, nil
	case "assess":
		return Assess, nil
	case "justify":
		return Justify, nil
	case "plan":
		return Plan, nil
	case "complete":
		return Complete, nil
	default:
		return 0, fmt.Errorf("unknown phase %q", name)
	}
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := Parse(name)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
