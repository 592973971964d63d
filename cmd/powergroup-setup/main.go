// Command powergroup-setup creates or changes the group configuration of powergroup interactively.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/chzyer/readline"
	"github.com/levenlabs/go-lflag"

	"github.com/mephdrac/powergroup/config"
)

func main() {
	path := lflag.String("config", "powergroup.yaml", "Path of the group configuration to create or change")
	lflag.Configure()

	if err := run(*path); err != nil {
		if errors.Is(err, errAborted) {
			fmt.Fprintln(os.Stderr, "Aborted, nothing was saved")
			os.Exit(130)
		}

		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(path string) error {
	w := config.NewWizard()

	existing, err := config.Load(path)
	switch {
	case err == nil:
		w = config.NewReconfigureWizard(*existing)
	case errors.Is(err, os.ErrNotExist):
	default:
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	if existing != nil {
		fmt.Fprintf(rl.Stdout(), "Changing %s (%d groups)\n", existing.Name, len(existing.Groups))
	}

	cfg, err := newSession(rl, w).Run()
	if err != nil {
		return err
	}

	if err = cfg.Save(path); err != nil {
		return err
	}

	fmt.Fprintf(rl.Stdout(), "Saved %s. Send SIGHUP to a running powergroup to apply it.\n", path)
	return nil
}
