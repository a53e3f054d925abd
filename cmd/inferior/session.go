package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/soltesz/inferior/command"
	"github.com/soltesz/inferior/controller"
	"github.com/soltesz/inferior/internal/logging"
	"github.com/soltesz/inferior/ptrace"
)

// session holds the REPL's view of the world: at most one attached or
// launched inferior, plus enough of the launch/attach arguments to
// support "restart" and the window-title label (ported from
// original_source/src/lib.rs's Args.name()).
type session struct {
	log  *logrus.Logger
	sink logging.Sink

	ctrl *controller.Controller
	path string
	pid  int32

	logsVisible bool
	history     []command.Command
}

func newSession(log *logrus.Logger, sink logging.Sink) *session {
	return &session{log: log, sink: sink, logsVisible: true}
}

// label mirrors Args.name(): the executable path if one is loaded, the
// attached pid if not, or a placeholder if neither.
func (s *session) label() string {
	switch {
	case s.path != "":
		return s.path
	case s.pid != 0:
		return fmt.Sprintf("pid: %d", s.pid)
	default:
		return "No Attached Process"
	}
}

func (s *session) load(path string) error {
	s.teardown()

	ctrl, err := controller.Launch(path, []string{path}, os.Environ(), s.sink)
	if err != nil {
		return err
	}

	s.ctrl = ctrl
	s.path = path
	s.pid = 0
	return nil
}

func (s *session) attach(pid int32) error {
	s.teardown()

	execPath, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return fmt.Errorf("resolving executable for pid %d: %w", pid, err)
	}

	ctrl, err := controller.Attach(ptrace.Process(pid), execPath, s.sink)
	if err != nil {
		return err
	}

	s.ctrl = ctrl
	s.pid = pid
	s.path = ""
	return nil
}

func (s *session) teardown() {
	if s.ctrl != nil {
		s.ctrl.Teardown()
		s.ctrl = nil
	}
}

// Close tears down any attached or launched inferior; called once on
// REPL exit.
func (s *session) Close() {
	s.teardown()
}

func (s *session) repl(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	fmt.Fprintf(out, "%s> ", s.label())
	for scanner.Scan() {
		cmd, err := command.Parse(scanner.Text())
		if err != nil {
			fmt.Fprintln(out, err)
			fmt.Fprintf(out, "%s> ", s.label())
			continue
		}

		if cmd.StoreInHistory() {
			s.history = append(s.history, cmd)
		}

		if cmd.Kind == command.KindQuit {
			return nil
		}

		if err := s.dispatch(cmd, out); err != nil {
			fmt.Fprintln(out, err)
		}

		fmt.Fprintf(out, "%s> ", s.label())
	}

	return scanner.Err()
}

func (s *session) dispatch(cmd command.Command, out io.Writer) error {
	switch cmd.Kind {
	case command.KindNull:
		return nil

	case command.KindHelp:
		fmt.Fprintln(out, helpText)
		return nil

	case command.KindToggleLogs:
		s.logsVisible = !s.logsVisible
		if s.log != nil {
			if s.logsVisible {
				s.log.SetLevel(logrus.InfoLevel)
			} else {
				s.log.SetLevel(logrus.PanicLevel)
			}
		}
		fmt.Fprintf(out, "logs visible: %v\n", s.logsVisible)
		return nil

	case command.KindLoad:
		return s.load(cmd.Path)

	case command.KindAttach:
		return s.attach(int32(cmd.PID))

	case command.KindRestart:
		if s.path == "" {
			return fmt.Errorf("restart requires a loaded executable")
		}
		return s.load(s.path)

	case command.KindContinue:
		return s.requireCtrl(func(ctrl *controller.Controller) error {
			if err := ctrl.Resume(); err != nil {
				return err
			}
			reason, err := ctrl.WaitUntil(30 * time.Second)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%+v\n", reason)
			return nil
		})

	case command.KindStep:
		return s.requireCtrl(func(ctrl *controller.Controller) error {
			if err := ctrl.Step(); err != nil {
				return err
			}
			fmt.Fprintf(out, "stopped, state=%s\n", ctrl.State())
			return nil
		})

	case command.KindStatus:
		return s.requireCtrl(func(ctrl *controller.Controller) error {
			fmt.Fprintf(out, "pid=%d state=%s\n", ctrl.PID(), ctrl.State())
			return nil
		})

	case command.KindBreak:
		return s.requireCtrl(func(ctrl *controller.Controller) error {
			ids, err := ctrl.SetBreakpoint(cmd.Location)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "breakpoint ids: %v\n", ids)
			return nil
		})

	case command.KindListBreakpoints:
		return s.requireCtrl(func(ctrl *controller.Controller) error {
			for _, bp := range ctrl.Breakpoints() {
				fmt.Fprintf(out, "#%d at %#x (armed=%v enabled=%v)\n",
					bp.ID(), bp.Address(), bp.Armed(), bp.Enabled())
			}
			return nil
		})

	case command.KindPrint:
		return s.requireCtrl(func(ctrl *controller.Controller) error {
			regs, err := ctrl.ReadRegisters()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "rip=%#x rsp=%#x rbp=%#x rax=%#x\n",
				regs.Rip, regs.Rsp, regs.Rbp, regs.Rax)
			return nil
		})

	default:
		return fmt.Errorf("unhandled command kind %v", cmd.Kind)
	}
}

func (s *session) requireCtrl(fn func(*controller.Controller) error) error {
	if s.ctrl == nil {
		return fmt.Errorf("no attached or loaded process")
	}
	return fn(s.ctrl)
}

const helpText = `commands:
  load <path>        launch and trace an executable
  attach <pid>        attach to a running process
  restart             relaunch the last loaded executable
  c, cont, continue    resume execution
  s, step              single-step one instruction
  status               show pid and lifecycle state
  break <addr|file line|func>  set a breakpoint
  l, list              list installed breakpoints
  print registers      dump general-purpose registers
  logs                 toggle log visibility
  q, quit              exit`
