package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/mephdrac/powergroup/config"
)

var errAborted = errors.New("setup aborted")

// lineReader is the part of *readline.Instance a session needs.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Stdout() io.Writer
}

// session drives a config.Wizard from a terminal.
type session struct {
	rl lineReader
	w  *config.Wizard
}

func newSession(rl lineReader, w *config.Wizard) *session {
	return &session{rl: rl, w: w}
}

func (s *session) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.rl.Stdout(), format, args...)
}

// ask prompts for one line. Ctrl-C and EOF abort the wizard.
func (s *session) ask(prompt string) (string, error) {
	s.rl.SetPrompt(prompt + "> ")

	line, err := s.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		_ = s.w.Abort()
		return "", errAborted
	}
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(line), nil
}

// Run walks through the wizard until it is done and returns the resulting config.
func (s *session) Run() (*config.Config, error) {
	for !s.w.Done() {
		var err error
		switch s.w.Step() {
		case config.StepEnterName:
			err = s.enterName()
		case config.StepAddGroup, config.StepEditGroup:
			err = s.enterGroup()
		case config.StepGroupMenu, config.StepReconfigureMenu:
			err = s.menu()
		case config.StepSelectEdit, config.StepSelectDelete:
			err = s.selectGroup()
		}

		if errors.Is(err, errAborted) {
			return nil, err
		}
		if err != nil {
			s.printf("%v\n", err)
		}
	}

	if s.w.Step() == config.StepAborted {
		return nil, errAborted
	}

	return s.w.Result()
}

func (s *session) enterName() error {
	name, err := s.ask("name")
	if err != nil {
		return err
	}

	return s.w.SubmitName(name)
}

func (s *session) enterGroup() error {
	current, editing := s.w.Editing()
	if editing {
		s.printf("Editing %s, leave a field empty to keep it\n", current.Name)
	} else {
		s.printf("New group\n")
	}

	name, err := s.ask("group name")
	if err != nil {
		return err
	}
	standby, err := s.ask("standby threshold (W)")
	if err != nil {
		return err
	}
	entities, err := s.ask("entities (comma separated)")
	if err != nil {
		return err
	}

	in := config.GroupInput{Name: name, Standby: standby, Entities: splitList(entities)}
	if editing {
		in.Name = orDefault(in.Name, current.Name)
		in.Standby = orDefault(in.Standby, current.Standby)
		if len(in.Entities) == 0 {
			in.Entities = current.Entities
		}
	}

	return s.w.SubmitGroup(in)
}

func (s *session) menu() error {
	choices := s.w.Choices()
	s.printf("\n")
	for i, c := range choices {
		s.printf("  %d) %s\n", i+1, c)
	}

	answer, err := s.ask("choice")
	if err != nil {
		return err
	}

	if i, err := strconv.Atoi(answer); err == nil && i >= 1 && i <= len(choices) {
		return s.w.Choose(choices[i-1])
	}

	return s.w.Choose(config.Choice(answer))
}

func (s *session) selectGroup() error {
	groups := s.w.Groups()
	s.printf("\n")
	for i, g := range groups {
		s.printf("  %d) %s (%s)\n", i+1, g.Name, strings.Join(g.Entities, ", "))
	}

	answer, err := s.ask("group")
	if err != nil {
		return err
	}

	id := answer
	if i, err := strconv.Atoi(answer); err == nil && i >= 1 && i <= len(groups) {
		id = groups[i-1].ID
	}

	return s.w.SelectGroup(id)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}

	return v
}
