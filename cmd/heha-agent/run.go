// Command heha-agent is the per-host monitoring daemon (spec §6's CLI
// surface, specified only for compatibility): it connects to the shared
// whiteboard, acquires its lockspace lease, starts the domain monitor, and
// loops publishing its own slot until asked to shut down.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"

	hostedha "github.com/ovirt/hosted-engine-ha"
	"github.com/ovirt/hosted-engine-ha/internal/cmdrunner"
	"github.com/ovirt/hosted-engine-ha/internal/config"
	"github.com/ovirt/hosted-engine-ha/internal/log"
	"github.com/ovirt/hosted-engine-ha/internal/osfs"
	"github.com/ovirt/hosted-engine-ha/pkg/backend"
	"github.com/ovirt/hosted-engine-ha/pkg/broker"
	"github.com/ovirt/hosted-engine-ha/pkg/clientview"
	"github.com/ovirt/hosted-engine-ha/pkg/liveness"
	"github.com/ovirt/hosted-engine-ha/pkg/lockspace"
)

const (
	metadataService  = "metadata"
	lockspaceService = "lockspace"
)

// Run is heha-agent's entry point, grounded on the teacher's
// Run(args, env, sigCh) int shape (internal/cli/run.go). sigCh may be nil
// in tests.
func Run(errOut io.Writer, args []string, env []string, sigCh <-chan os.Signal) int {
	flags := flag.NewFlagSet("heha-agent", flag.ContinueOnError)
	flags.SetOutput(errOut)

	cleanup := flags.Bool("cleanup", false, "purge the metadata region and exit")
	forceCleanup := flags.Bool("force-cleanup", false, "purge the metadata region even if a host still looks alive, and exit")
	hostIDFlag := flags.Int("host-id", 0, "override the configured host id")
	// pdb is accepted for compatibility with the Python agent's
	// --pdb post-mortem debugger hook, which has no Go equivalent; it
	// only raises the log level.
	pdbFlag := flags.Bool("pdb", false, "raise the log level to debug")

	if err := flags.Parse(args[1:]); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	cfg, err := config.Load(env)
	if err != nil {
		fmt.Fprintln(errOut, "error loading config:", err)
		return 1
	}

	if flags.Changed("host-id") {
		cfg.HostID = *hostIDFlag
	}

	level := log.InfoLevel
	if *pdbFlag {
		level = log.DebugLevel
	}

	log.Init(log.Config{Level: level, Output: errOut})
	logger := log.WithComponent("agent")

	logger.Info().Msg("heha-agent started")

	shutdown := newShutdownFlag(sigCh)

	action := runMonitoring
	retries := hostedha.AgentStartRetries

	if *cleanup || *forceCleanup {
		action = func(ctx context.Context, cfg config.Config, shutdownRequested func() bool) error {
			return runCleanup(ctx, cfg, *forceCleanup)
		}
		retries = 1
	}

	errcode := runWithRetries(context.Background(), cfg, action, retries, shutdown.requested)

	logger.Info().Msg("agent shutting down")

	return errcode
}

// runWithRetries mirrors agent.py's _run_agent: construct a fresh session
// on every attempt, run action, and restart up to retries times with
// AgentStartRetryWait between attempts. A graceful return (action
// completed because shutdown was requested) is not retried.
func runWithRetries(ctx context.Context, cfg config.Config, action func(context.Context, config.Config, func() bool) error, retries int, shutdownRequested func() bool) int {
	logger := log.WithComponent("agent")

	for attempt := 0; attempt < retries; attempt++ {
		err := action(ctx, cfg, shutdownRequested)
		if err == nil {
			return 0
		}

		if shutdownRequested() {
			logger.Info().Err(err).Msg("stopped during graceful shutdown")
			return 0
		}

		logger.Error().Err(err).Int("attempt", attempt).Msg("agent error, restarting")

		if attempt < retries-1 {
			time.Sleep(hostedha.AgentStartRetryWait)
		}
	}

	logger.Error().Msg("too many errors occurred, giving up")

	return 99
}

// newBackend selects the backend variant by domain type (spec §4.B/C):
// iscsi/fc domains are raw-block-device backed, everything else is
// filesystem/LV backed.
func newBackend(fs osfs.FS, runner cmdrunner.Runner, cfg config.Config) backend.Backend {
	if cfg.DomainType == config.DomainISCSI || cfg.DomainType == config.DomainFC {
		device := cfg.ConnectionParams["device"]
		return backend.NewBlockBackend(fs, runner, device, "heha-dm")
	}

	return backend.NewFilesystemBackend(fs, runner, cfg.SDUUID, string(cfg.DomainType), cfg.MetadataImageUUID)
}

// resolveMetadataDir learns where the duplicate-connection marker should
// live. Block backends address a raw device with no meaningful "directory"
// of their own, so they get a fixed per-domain bookkeeping path; filesystem
// backends connect once here to learn their discovered mount directory.
// Connect is a pure scan plus guarded symlink/mkdir for this backend (no
// external command), so broker.Connect calling it again right after costs
// nothing.
func resolveMetadataDir(ctx context.Context, be backend.Backend, cfg config.Config) (string, error) {
	if be.Kind() == backend.Block {
		return filepath.Join("/run/heha-connection", cfg.SDUUID), nil
	}

	if err := be.Connect(ctx); err != nil {
		return "", err
	}

	path, _, ok := be.Filename(metadataService)
	if !ok {
		return "", fmt.Errorf("%w: backend did not resolve service %q after connect", hostedha.ErrBrokerConnection, metadataService)
	}

	return filepath.Dir(path), nil
}

func leasePath(be backend.Backend) (string, error) {
	path, _, ok := be.Filename(lockspaceService)
	if !ok {
		return "", fmt.Errorf("%w: backend did not resolve service %q", hostedha.ErrBrokerConnection, lockspaceService)
	}

	return path, nil
}

// runMonitoring implements action_proper from the Python agent: connect,
// acquire the lease, start the domain monitor, then loop publishing this
// host's slot until shutdown is requested.
func runMonitoring(ctx context.Context, cfg config.Config, shutdownRequested func() bool) error {
	logger := log.WithHostID(cfg.HostID)

	fs := osfs.NewReal()
	runner := cmdrunner.NewExec()
	be := newBackend(fs, runner, cfg)

	metadataDir, err := resolveMetadataDir(ctx, be, cfg)
	if err != nil {
		return err
	}

	livenessCache := liveness.NewCache(nil, hostedha.HostAliveTimeout)
	brk := broker.New(fs, be, unimplementedHypervisor{}, nil, cfg.SDUUID, livenessCache)

	if err := brk.Connect(ctx, metadataDir); err != nil {
		return err
	}
	defer brk.Disconnect(ctx)

	lease, err := leasePath(be)
	if err != nil {
		return err
	}

	daemon := lockspace.NewCLIDaemon(runner)
	mgr := lockspace.NewManager(daemon, nil, hostedha.WaitForStorageRetry, hostedha.WaitForStorageDelay)

	if err := brk.AcquireLockspace(ctx, mgr, cfg.HostID, lease); err != nil {
		return err
	}
	defer brk.ReleaseLockspace(ctx)

	if err := brk.StartDomainMonitor(ctx, cfg.HostID); err != nil {
		return err
	}
	defer brk.StopDomainMonitor(ctx, func(err error) {
		logger.Warn().Err(err).Msg("stop domain monitor failed")
	})

	logger.Info().Msg("monitoring loop started")

	for !shutdownRequested() {
		if err := publishHeartbeat(ctx, brk, cfg.HostID); err != nil {
			return err
		}

		time.Sleep(hostedha.DomainMonitorPollInterval)
	}

	return nil
}

// publishHeartbeat reports this host's slot (score and timestamp) and
// refreshes the liveness cache from the set of currently-reporting hosts.
// Real score computation depends on engine/VM state this module does not
// model; it is left at 0 here, a placeholder a hypervisor-aware caller can
// override via a richer action.
func publishHeartbeat(ctx context.Context, brk *broker.Broker, hostID int) error {
	hostRecords, err := clientview.GetAllStats(ctx, brk, metadataService, clientview.ModeHost)
	if err != nil {
		return err
	}

	alive := make([]int, 0, len(hostRecords))
	for _, r := range hostRecords {
		alive = append(alive, r.HostID)
	}

	brk.PushHostsState(metadataService, alive)

	payload, err := clientview.EncodeHostRecord(map[string]string{
		clientview.FieldScore:     "0",
		clientview.FieldTimestamp: strconv.FormatInt(time.Now().Unix(), 10),
	})
	if err != nil {
		return err
	}

	return brk.PutStats(ctx, metadataService, hostID, payload)
}

// runCleanup implements action_clean: purge every host slot in the
// metadata region. Without --force-cleanup it first refuses if any
// non-global slot still looks populated, mirroring the original's
// not-when-not-clean guard.
func runCleanup(ctx context.Context, cfg config.Config, force bool) error {
	fs := osfs.NewReal()
	runner := cmdrunner.NewExec()
	be := newBackend(fs, runner, cfg)

	metadataDir, err := resolveMetadataDir(ctx, be, cfg)
	if err != nil {
		return err
	}

	livenessCache := liveness.NewCache(nil, hostedha.HostAliveTimeout)
	brk := broker.New(fs, be, unimplementedHypervisor{}, nil, cfg.SDUUID, livenessCache)

	if err := brk.Connect(ctx, metadataDir); err != nil {
		return err
	}
	defer brk.Disconnect(ctx)

	if !force {
		raw, err := brk.GetRawStats(ctx, metadataService)
		if err != nil {
			return err
		}

		for hostID := range raw {
			if hostID == 0 {
				continue
			}

			return fmt.Errorf("metadata region still has host %d's slot populated; use --force-cleanup to override", hostID)
		}
	}

	for hostID := 0; hostID <= hostedha.MaxHostIDScan; hostID++ {
		if err := brk.PutStats(ctx, metadataService, hostID, nil); err != nil {
			return err
		}
	}

	return nil
}

// shutdownFlag is the agent's re-entrant "shutdown requested" flag (spec
// §6): SIGINT/SIGTERM set it rather than acting directly, matching the
// Python agent's signal handler.
type shutdownFlag struct {
	ch  <-chan os.Signal
	set chan struct{}
}

func newShutdownFlag(sigCh <-chan os.Signal) *shutdownFlag {
	f := &shutdownFlag{ch: sigCh, set: make(chan struct{})}

	if sigCh == nil {
		return f
	}

	go func() {
		<-sigCh
		close(f.set)
	}()

	return f
}

func (f *shutdownFlag) requested() bool {
	select {
	case <-f.set:
		return true
	default:
		return false
	}
}

// unimplementedHypervisor is the injection point for the real domain-monitor
// RPC transport. The kept original source (agent.py/storage_broker.py) never
// included the hosted_engine/vdsm client module that owns this call, so
// there is nothing in the retrieved corpus to ground a concrete client on;
// callers that need real domain monitoring supply their own Hypervisor the
// same way tests supply broker.FakeHypervisor.
type unimplementedHypervisor struct{}

func (unimplementedHypervisor) StartMonitoringDomain(context.Context, string, int) error {
	return fmt.Errorf("%w: no hypervisor RPC client configured", hostedha.ErrBrokerConnection)
}

func (unimplementedHypervisor) StopMonitoringDomain(context.Context, string) error {
	return fmt.Errorf("%w: no hypervisor RPC client configured", hostedha.ErrBrokerConnection)
}

func (unimplementedHypervisor) GetStorageRepoStats(context.Context, []string) (map[string]broker.RepoStat, error) {
	return nil, fmt.Errorf("%w: no hypervisor RPC client configured", hostedha.ErrBrokerConnection)
}
