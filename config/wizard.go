package config

import (
	"errors"
	"fmt"
	"slices"
)

// Step is a state of the Wizard.
type Step string

const (
	StepEnterName       Step = "enter-name"
	StepAddGroup        Step = "add-group"
	StepGroupMenu       Step = "group-menu"
	StepReconfigureMenu Step = "reconfigure-menu"
	StepSelectEdit      Step = "select-edit"
	StepEditGroup       Step = "edit-group"
	StepSelectDelete    Step = "select-delete"

	// StepCreated and StepAborted are terminal.
	StepCreated Step = "created"
	StepAborted Step = "aborted"
)

// Choice is a menu option.
type Choice string

const (
	ChoiceAddAnother Choice = "add_another"
	ChoiceFinish     Choice = "finish"
	ChoiceAdd        Choice = "add"
	ChoiceEdit       Choice = "edit"
	ChoiceDelete     Choice = "delete"
)

var (
	// ErrInvalidTransition is returned when an input is not accepted in the current step. The step does not change.
	ErrInvalidTransition = errors.New("invalid wizard transition")
	// ErrUnknownGroup is returned by SelectGroup for an id that is not configured.
	ErrUnknownGroup = errors.New("unknown group")
)

// GroupInput is what the user enters on the add-group and edit-group steps.
type GroupInput struct {
	Name     string
	Standby  string
	Entities []string
}

// Wizard walks a user through creating a Config, or changing an existing one. A new config starts at StepEnterName,
// followed by StepAddGroup and StepGroupMenu until the user finishes. Reconfiguration starts at StepReconfigureMenu,
// from which groups are added, edited or deleted.
type Wizard struct {
	step        Step
	reconfigure bool

	name    string
	groups  []Group
	editing string

	newID func() string
}

// NewWizard starts the setup of a new Config.
func NewWizard() *Wizard {
	return &Wizard{step: StepEnterName, newID: NewGroupID}
}

// NewReconfigureWizard starts changing c. c itself is not modified.
func NewReconfigureWizard(c Config) *Wizard {
	groups := c.Clone().Groups

	return &Wizard{
		step:        StepReconfigureMenu,
		reconfigure: true,
		name:        c.Name,
		groups:      groups,
		newID:       NewGroupID,
	}
}

func (w *Wizard) Step() Step {
	return w.step
}

// Done reports whether the wizard reached a terminal step.
func (w *Wizard) Done() bool {
	return w.step == StepCreated || w.step == StepAborted
}

func (w *Wizard) Name() string {
	return w.name
}

// Groups returns the groups entered so far.
func (w *Wizard) Groups() []Group {
	return slices.Clone(w.groups)
}

// Editing returns the group being edited in StepEditGroup.
func (w *Wizard) Editing() (Group, bool) {
	if w.step != StepEditGroup {
		return Group{}, false
	}

	i := slices.IndexFunc(w.groups, func(g Group) bool { return g.ID == w.editing })
	if i < 0 {
		return Group{}, false
	}

	return w.groups[i], true
}

// Choices returns the options of the current menu step.
func (w *Wizard) Choices() []Choice {
	switch w.step {
	case StepGroupMenu:
		return []Choice{ChoiceAddAnother, ChoiceFinish}
	case StepReconfigureMenu:
		return []Choice{ChoiceAdd, ChoiceEdit, ChoiceDelete, ChoiceFinish}
	default:
		return nil
	}
}

func (w *Wizard) invalid(input string) error {
	return fmt.Errorf("%w: %s in step %s", ErrInvalidTransition, input, w.step)
}

// SubmitName sets the name of a new config. Accepted in StepEnterName.
func (w *Wizard) SubmitName(name string) error {
	if w.step != StepEnterName {
		return w.invalid("name")
	}

	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}

	w.name = name
	w.step = StepAddGroup
	return nil
}

// SubmitGroup adds a group in StepAddGroup or replaces the edited group in StepEditGroup. Invalid input is rejected
// with an error wrapping ErrInvalid and the step stays the same.
func (w *Wizard) SubmitGroup(in GroupInput) error {
	g := Group{Name: in.Name, Standby: in.Standby, Entities: slices.Clone(in.Entities)}

	switch w.step {
	case StepAddGroup:
		g.ID = w.newID()
	case StepEditGroup:
		g.ID = w.editing
	default:
		return w.invalid("group")
	}

	if err := errors.Join(g.validate(len(w.groups))...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if w.step == StepEditGroup {
		i := slices.IndexFunc(w.groups, func(o Group) bool { return o.ID == w.editing })
		w.groups[i] = g
		w.editing = ""
		w.step = StepReconfigureMenu
		return nil
	}

	w.groups = append(w.groups, g)
	if w.reconfigure {
		w.step = StepReconfigureMenu
	} else {
		w.step = StepGroupMenu
	}

	return nil
}

// Choose picks a menu option in StepGroupMenu or StepReconfigureMenu. Edit and delete need at least one group.
func (w *Wizard) Choose(c Choice) error {
	if !slices.Contains(w.Choices(), c) {
		return w.invalid(fmt.Sprintf("choice %q", c))
	}

	switch c {
	case ChoiceAddAnother, ChoiceAdd:
		w.step = StepAddGroup
	case ChoiceEdit, ChoiceDelete:
		if len(w.groups) == 0 {
			return fmt.Errorf("%w: no groups to %s", ErrInvalidTransition, c)
		}

		w.step = StepSelectEdit
		if c == ChoiceDelete {
			w.step = StepSelectDelete
		}
	case ChoiceFinish:
		w.step = StepCreated
	}

	return nil
}

// SelectGroup picks the group to edit in StepSelectEdit, or deletes it in StepSelectDelete.
func (w *Wizard) SelectGroup(id string) error {
	if w.step != StepSelectEdit && w.step != StepSelectDelete {
		return w.invalid("group selection")
	}

	i := slices.IndexFunc(w.groups, func(g Group) bool { return g.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownGroup, id)
	}

	if w.step == StepSelectDelete {
		w.groups = slices.Delete(w.groups, i, i+1)
		w.step = StepReconfigureMenu
		return nil
	}

	w.editing = id
	w.step = StepEditGroup
	return nil
}

// Abort cancels the wizard from any non-terminal step.
func (w *Wizard) Abort() error {
	if w.Done() {
		return w.invalid("abort")
	}

	w.step = StepAborted
	return nil
}

// Result returns the config once the wizard reached StepCreated.
func (w *Wizard) Result() (*Config, error) {
	if w.step != StepCreated {
		return nil, w.invalid("result")
	}

	c := &Config{Name: w.name, Groups: w.Groups()}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}
