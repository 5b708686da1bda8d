package planner

import (
	"strings"
	"time"
)

// LengthClass is the planned length of a single speech fragment.
type LengthClass string

const (
	LengthVeryLong LengthClass = "very long"
	LengthLong     LengthClass = "long"
	LengthMedium   LengthClass = "medium"
	LengthShort    LengthClass = "short"
)

// LengthClasses lists every length class, longest first, in the order they
// are offered to the decision oracle.
var LengthClasses = []LengthClass{LengthVeryLong, LengthLong, LengthMedium, LengthShort}

// Wait is the pause taken before a fragment of this length is generated.
func (l LengthClass) Wait() time.Duration {
	switch l {
	case LengthVeryLong:
		return 6 * time.Second
	case LengthLong:
		return 4 * time.Second
	case LengthMedium:
		return 2 * time.Second
	default:
		return time.Second
	}
}

// TargetWords is the number of words a fragment of this length should have.
func (l LengthClass) TargetWords() int {
	switch l {
	case LengthVeryLong:
		return 60
	case LengthLong:
		return 40
	case LengthMedium:
		return 20
	default:
		return 10
	}
}

func (l LengthClass) String() string { return string(l) }

// ParseLengthClass maps an oracle answer onto a length class. Anything that
// is not recognised is treated as short.
func ParseLengthClass(answer string) LengthClass {
	normalised := strings.ToLower(strings.Trim(strings.TrimSpace(answer), `"'.`))
	normalised = strings.NewReplacer("_", " ", "-", " ").Replace(normalised)

	switch normalised {
	case "very long", "verylong":
		return LengthVeryLong
	case "long":
		return LengthLong
	case "medium":
		return LengthMedium
	default:
		return LengthShort
	}
}

func lengthChoices() []string {
	choices := make([]string, len(LengthClasses))
	for i, class := range LengthClasses {
		choices[i] = string(class)
	}
	return choices
}
