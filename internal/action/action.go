// Package action defines the closed set of commands the agent can issue and
// the grammar that turns model output into them.
package action

import "fmt"

// Action is one validated browser command. The set of implementations is
// closed; executors switch on the concrete type.
type Action interface {
	Verb() Verb
	String() string
	action()
}

// Verb names an action variant
type Verb string

const (
	VerbClick     Verb = "Click"
	VerbType      Verb = "Type"
	VerbHover     Verb = "Hover"
	VerbScroll    Verb = "Scroll"
	VerbGoBack    Verb = "GoBack"
	VerbGoForward Verb = "GoForward"
	VerbRefresh   Verb = "Refresh"
	VerbSwitchTab Verb = "SwitchTab"
	VerbCloseTab  Verb = "CloseTab"
	VerbNewTab    Verb = "NewTab"
	VerbGoTo      Verb = "GoTo"
	VerbDone      Verb = "Done"
)

// Verbs lists every verb in prompt order.
var Verbs = []Verb{
	VerbHover, VerbClick, VerbType, VerbScroll, VerbGoBack, VerbGoForward,
	VerbRefresh, VerbSwitchTab, VerbCloseTab, VerbNewTab, VerbGoTo, VerbDone,
}

// Direction is a scroll direction
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

type Click struct{ ElementID int }

type Type struct {
	ElementID int
	Text      string
}

type Hover struct{ ElementID int }

type Scroll struct{ Direction Direction }

type GoBack struct{}

type GoForward struct{}

type Refresh struct{}

type SwitchTab struct{ TabIndex int }

type CloseTab struct{}

type NewTab struct{}

type GoTo struct{ URL string }

// Done is the only terminal action.
type Done struct{ Summary string }

func (Click) Verb() Verb     { return VerbClick }
func (Type) Verb() Verb      { return VerbType }
func (Hover) Verb() Verb     { return VerbHover }
func (Scroll) Verb() Verb    { return VerbScroll }
func (GoBack) Verb() Verb    { return VerbGoBack }
func (GoForward) Verb() Verb { return VerbGoForward }
func (Refresh) Verb() Verb   { return VerbRefresh }
func (SwitchTab) Verb() Verb { return VerbSwitchTab }
func (CloseTab) Verb() Verb  { return VerbCloseTab }
func (NewTab) Verb() Verb    { return VerbNewTab }
func (GoTo) Verb() Verb      { return VerbGoTo }
func (Done) Verb() Verb      { return VerbDone }

func (a Click) String() string     { return fmt.Sprintf("Click(%d)", a.ElementID) }
func (a Type) String() string      { return fmt.Sprintf("Type(%d, %q)", a.ElementID, a.Text) }
func (a Hover) String() string     { return fmt.Sprintf("Hover(%d)", a.ElementID) }
func (a Scroll) String() string    { return fmt.Sprintf("Scroll(%q)", string(a.Direction)) }
func (GoBack) String() string      { return "GoBack()" }
func (GoForward) String() string   { return "GoForward()" }
func (Refresh) String() string     { return "Refresh()" }
func (a SwitchTab) String() string { return fmt.Sprintf("SwitchTab(%d)", a.TabIndex) }
func (CloseTab) String() string    { return "CloseTab()" }
func (NewTab) String() string      { return "NewTab()" }
func (a GoTo) String() string      { return fmt.Sprintf("GoTo(%q)", a.URL) }
func (a Done) String() string      { return fmt.Sprintf("Done(%q)", a.Summary) }

func (Click) action()     {}
func (Type) action()      {}
func (Hover) action()     {}
func (Scroll) action()    {}
func (GoBack) action()    {}
func (GoForward) action() {}
func (Refresh) action()   {}
func (SwitchTab) action() {}
func (CloseTab) action()  {}
func (NewTab) action()    {}
func (GoTo) action()      {}
func (Done) action()      {}
