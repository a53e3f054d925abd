// Command inferior is the line-oriented REPL front end over the core
// debugger packages: it owns no tracing logic itself, only command
// parsing, dispatch and result formatting (spec.md §1, §6).
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/soltesz/inferior/internal/logging"
)

var (
	pidFlag      int32
	logLevelFlag string
)

func main() {
	root := &cobra.Command{
		Use:   "inferior [executable]",
		Short: "A ptrace-based, single-inferior source level debugger",
		Args:  cobra.MaximumNArgs(1),
		RunE:  run,
	}

	root.Flags().Int32VarP(&pidFlag, "pid", "p", 0, "PID of a running process to attach to")
	root.Flags().StringVar(&logLevelFlag, "log-level", "info", "Log level: debug | info | warn | error")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	level, err := logrus.ParseLevel(logLevelFlag)
	if err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevelFlag, err)
	}
	log.SetLevel(level)
	sink := logging.NewLogrusSink(log)

	var path string
	if len(args) == 1 {
		path = args[0]
	}

	session := newSession(log, sink)
	defer session.Close()

	switch {
	case path != "":
		if err := session.load(path); err != nil {
			return err
		}
	case pidFlag != 0:
		if err := session.attach(pidFlag); err != nil {
			return err
		}
	}

	fmt.Printf("\033]0;%s\007", session.label())
	return session.repl(os.Stdin, os.Stdout)
}
