// Command heha-ctl is the read-side client for the whiteboard (spec
// §4.G/client.py): get-all-stats, set-global-md-flag, get-local-host-score,
// and an interactive inspector REPL, grounded on the teacher's client
// tools (cmd/mddb's subcommand dispatch, cmd/sloty's peterh/liner REPL).
package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	hostedha "github.com/ovirt/hosted-engine-ha"
	"github.com/ovirt/hosted-engine-ha/internal/cmdrunner"
	"github.com/ovirt/hosted-engine-ha/internal/config"
	"github.com/ovirt/hosted-engine-ha/internal/osfs"
	"github.com/ovirt/hosted-engine-ha/pkg/backend"
	"github.com/ovirt/hosted-engine-ha/pkg/broker"
	"github.com/ovirt/hosted-engine-ha/pkg/clientview"
)

const metadataService = "metadata"

func usage() string {
	return `heha-ctl - whiteboard client

Usage:
  heha-ctl get-all-stats [--mode all|host|global]
  heha-ctl get-all-stats-direct --dom-path <path> [--service <name>] [--mode all|host|global]
  heha-ctl set-global-md-flag <flag> <value>
  heha-ctl get-local-host-score
  heha-ctl inspect`
}

func run(out, errOut io.Writer, args []string, env []string) error {
	if len(args) == 0 {
		fmt.Fprintln(out, usage())
		return nil
	}

	switch args[0] {
	case "help", "-h", "--help":
		fmt.Fprintln(out, usage())
		return nil
	case "get-all-stats":
		return cmdGetAllStats(out, args[1:], env)
	case "get-all-stats-direct":
		return cmdGetAllStatsDirect(out, args[1:])
	case "set-global-md-flag":
		return cmdSetGlobalMDFlag(args[1:], env)
	case "get-local-host-score":
		return cmdGetLocalHostScore(out, args[1:], env)
	case "inspect":
		return runInspectREPL(out, errOut, env)
	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], usage())
	}
}

func parseMode(flags *flag.FlagSet) (clientview.Mode, error) {
	raw, err := flags.GetString("mode")
	if err != nil {
		return 0, err
	}

	switch strings.ToLower(raw) {
	case "", "all":
		return clientview.ModeAll, nil
	case "host":
		return clientview.ModeHost, nil
	case "global":
		return clientview.ModeGlobal, nil
	default:
		return 0, fmt.Errorf("invalid --mode %q (want all, host, or global)", raw)
	}
}

// buildChannel connects a local broker the way heha-agent does, minus the
// lockspace/domain-monitor lifecycle this read-side tooling never needs.
func buildChannel(ctx context.Context, cfg config.Config) (*broker.Broker, func(), error) {
	fs := osfs.NewReal()
	runner := cmdrunner.NewExec()

	be := newBackend(fs, runner, cfg)

	if err := be.Connect(ctx); err != nil {
		return nil, nil, err
	}

	brk := broker.New(fs, be, nopHypervisor{}, nil, cfg.SDUUID, nil)

	return brk, func() { be.Disconnect(ctx) }, nil
}

func newBackend(fs osfs.FS, runner cmdrunner.Runner, cfg config.Config) backend.Backend {
	if cfg.DomainType == config.DomainISCSI || cfg.DomainType == config.DomainFC {
		return backend.NewBlockBackend(fs, runner, cfg.ConnectionParams["device"], "heha-dm")
	}

	return backend.NewFilesystemBackend(fs, runner, cfg.SDUUID, string(cfg.DomainType), cfg.MetadataImageUUID)
}

func cmdGetAllStats(out io.Writer, args []string, env []string) error {
	flags := flag.NewFlagSet("get-all-stats", flag.ContinueOnError)
	flags.String("mode", "all", "all, host, or global")

	if err := flags.Parse(args); err != nil {
		return err
	}

	mode, err := parseMode(flags)
	if err != nil {
		return err
	}

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

	records, err := clientview.GetAllStats(ctx, ch, metadataService, mode)
	if err != nil {
		return err
	}

	printRecords(out, records)

	return nil
}

func cmdGetAllStatsDirect(out io.Writer, args []string) error {
	flags := flag.NewFlagSet("get-all-stats-direct", flag.ContinueOnError)
	domPath := flags.String("dom-path", "", "path to the connected storage domain")
	service := flags.String("service", metadataService, "service name")
	flags.String("mode", "all", "all, host, or global")

	if err := flags.Parse(args); err != nil {
		return err
	}

	mode, err := parseMode(flags)
	if err != nil {
		return err
	}

	if *domPath == "" {
		return fmt.Errorf("--dom-path is required")
	}

	fs := osfs.NewReal()
	ctx := context.Background()

	records, err := clientview.GetAllStatsDirect(ctx, fs, *domPath, *service, mode)
	if err != nil {
		return err
	}

	printRecords(out, records)

	return nil
}

func cmdSetGlobalMDFlag(args []string, env []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: heha-ctl set-global-md-flag <flag> <value>")
	}

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

	return clientview.SetGlobalMDFlag(ctx, ch, metadataService, args[0], args[1])
}

func cmdGetLocalHostScore(out io.Writer, args []string, env []string) error {
	_ = args

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

	score, err := clientview.GetLocalHostScore(ctx, ch, metadataService, cfg.HostID, time.Now().Unix(), int64(hostedha.HostAliveTimeout.Seconds()))
	if err != nil {
		return err
	}

	fmt.Fprintln(out, score)

	return nil
}

func printRecords(out io.Writer, records []clientview.Record) {
	if len(records) == 0 {
		fmt.Fprintln(out, "(empty)")
		return
	}

	for _, r := range records {
		label := strconv.Itoa(r.HostID)
		if r.HostID == 0 {
			label = "0 (global)"
		}

		fmt.Fprintf(out, "host %s:\n", label)

		for k, v := range r.Fields {
			fmt.Fprintf(out, "  %s = %s\n", k, v)
		}
	}
}

type nopHypervisor struct{}

func (nopHypervisor) StartMonitoringDomain(context.Context, string, int) error { return nil }
func (nopHypervisor) StopMonitoringDomain(context.Context, string) error       { return nil }
func (nopHypervisor) GetStorageRepoStats(context.Context, []string) (map[string]broker.RepoStat, error) {
	return nil, nil
}
