package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	hostedha "github.com/ovirt/hosted-engine-ha"
	"github.com/ovirt/hosted-engine-ha/internal/config"
	"github.com/ovirt/hosted-engine-ha/pkg/broker"
	"github.com/ovirt/hosted-engine-ha/pkg/clientview"
)

// inspectREPL is the interactive host-slot inspector (spec §9 supplemented
// feature, restoring the ad hoc query capability the original's
// hosted-engine --vm-status tooling provided), grounded on cmd/sloty's
// liner.State-based REPL shape.
type inspectREPL struct {
	out     io.Writer
	ch      *broker.Broker
	closeCh func()
	liner   *liner.State
}

func runInspectREPL(out, errOut io.Writer, env []string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return err
	}

	ctx := context.Background()

	ch, closeCh, err := buildChannel(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCh()

	r := &inspectREPL{out: out, ch: ch, closeCh: closeCh}

	return r.run(errOut)
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".heha-ctl_history")
}

func (r *inspectREPL) run(errOut io.Writer) error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Fprintln(r.out, "heha-ctl inspect - whiteboard REPL. Type 'help' for commands.")

	for {
		line, err := r.liner.Prompt("heha> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Fprintln(r.out, "bye")
				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		fields := strings.Fields(line)
		cmd, args := strings.ToLower(fields[0]), fields[1:]

		switch cmd {
		case "exit", "quit", "q":
			r.saveHistory()
			return nil
		case "help", "?":
			r.printHelp()
		case "all":
			r.dump(clientview.ModeAll)
		case "hosts":
			r.dump(clientview.ModeHost)
		case "global":
			r.dump(clientview.ModeGlobal)
		case "score":
			r.score(args)
		case "set-flag":
			r.setFlag(args)
		default:
			fmt.Fprintf(r.out, "unknown command: %s (type 'help')\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

func (r *inspectREPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *inspectREPL) completer(line string) []string {
	commands := []string{"all", "hosts", "global", "score", "set-flag", "help", "exit", "quit", "q"}

	var completions []string

	for _, c := range commands {
		if strings.HasPrefix(c, strings.ToLower(line)) {
			completions = append(completions, c)
		}
	}

	return completions
}

func (r *inspectREPL) printHelp() {
	fmt.Fprintln(r.out, "Commands:")
	fmt.Fprintln(r.out, "  all                   Show every slot (global + hosts)")
	fmt.Fprintln(r.out, "  hosts                 Show host slots only")
	fmt.Fprintln(r.out, "  global                Show the global slot only")
	fmt.Fprintln(r.out, "  score <host-id>       Show a host's score if its report is still fresh")
	fmt.Fprintln(r.out, "  set-flag <flag> <val> Set a global metadata flag")
	fmt.Fprintln(r.out, "  exit / quit / q       Exit")
}

func (r *inspectREPL) dump(mode clientview.Mode) {
	records, err := clientview.GetAllStats(context.Background(), r.ch, metadataService, mode)
	if err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
		return
	}

	printRecords(r.out, records)
}

func (r *inspectREPL) score(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(r.out, "usage: score <host-id>")
		return
	}

	hostID, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(r.out, "error: invalid host id %q\n", args[0])
		return
	}

	score, err := clientview.GetLocalHostScore(context.Background(), r.ch, metadataService, hostID, time.Now().Unix(), int64(hostedha.HostAliveTimeout.Seconds()))
	if err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
		return
	}

	fmt.Fprintln(r.out, score)
}

func (r *inspectREPL) setFlag(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(r.out, "usage: set-flag <flag> <value>")
		return
	}

	if err := clientview.SetGlobalMDFlag(context.Background(), r.ch, metadataService, args[0], args[1]); err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
		return
	}

	fmt.Fprintln(r.out, "ok")
}
