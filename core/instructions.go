package orchestration

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/koscakluka/ema-room/core/planner"
)

//go:embed instructions.tmpl
var instructionTemplates string

var instructionTemplate = template.Must(template.New("instructions").Parse(instructionTemplates))

type instructionData struct {
	Soul     string
	Words    int
	Previous string
	Notes    string
}

// instructions renders the text given to the language model for each step
// of a turn.
type instructions struct {
	soulName string
}

func newInstructions(soulName string) instructions {
	return instructions{soulName: soulName}
}

func (i instructions) blueprint() string { return i.render("blueprint", instructionData{}) }
func (i instructions) change() string    { return i.render("change", instructionData{}) }
func (i instructions) monologue() string { return i.render("monologue", instructionData{}) }
func (i instructions) firstFragment() string {
	return i.render("first fragment", instructionData{})
}
func (i instructions) conclusion() string { return i.render("conclusion", instructionData{}) }
func (i instructions) learned() string    { return i.render("learned", instructionData{}) }

func (i instructions) nextFragment(length planner.LengthClass, previous string) string {
	return i.render("next fragment", instructionData{Words: length.TargetWords(), Previous: previous})
}

func (i instructions) summary(notes string) string {
	return i.render("summary", instructionData{Notes: notes})
}

func (i instructions) roomBefore(description string) string {
	return fmt.Sprintf("Room before change: %s", description)
}

func (i instructions) roomAfter(description string) string {
	return fmt.Sprintf("Room after change: %s", description)
}

func (i instructions) noticed(change string) string {
	return fmt.Sprintf("%s noticed: %s", i.soulName, change)
}

func (i instructions) thought(thought string) string {
	return fmt.Sprintf("%s thought: %s", i.soulName, thought)
}

func (i instructions) said(text string) string {
	return fmt.Sprintf("%s said: %s", i.soulName, text)
}

func (i instructions) render(name string, data instructionData) string {
	data.Soul = i.soulName

	var b strings.Builder
	if err := instructionTemplate.ExecuteTemplate(&b, name, data); err != nil {
		// The templates are embedded, this only happens if one is renamed.
		panic(fmt.Sprintf("failed to render %q instruction: %v", name, err))
	}
	return b.String()
}
