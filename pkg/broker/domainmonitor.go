package broker

import (
	"context"
	"fmt"

	hostedha "github.com/ovirt/hosted-engine-ha"
)

// DomainMonitorStatus is the domain-monitor lifecycle state (spec §4.D).
// NONE -> PENDING -> ACQUIRED is the only success path.
type DomainMonitorStatus int

const (
	StatusNone DomainMonitorStatus = iota
	StatusPending
	StatusAcquired
)

func (s DomainMonitorStatus) String() string {
	switch s {
	case StatusNone:
		return "NONE"
	case StatusPending:
		return "PENDING"
	case StatusAcquired:
		return "ACQUIRED"
	default:
		return "unknown"
	}
}

// StartDomainMonitor requests hypervisor RPC monitoring for b's domain and
// polls until the status reaches ACQUIRED or MaxDomainMonitorWait elapses.
// A no-op if the monitor is already past NONE.
func (b *Broker) StartDomainMonitor(ctx context.Context, hostID int) error {
	b.domainMu.Lock()
	defer b.domainMu.Unlock()

	if b.domainStatus != StatusNone {
		return nil
	}

	if err := b.hv.StartMonitoringDomain(ctx, b.sdUUID, hostID); err != nil {
		return fmt.Errorf("%w: start monitoring domain %s: %v", hostedha.ErrBrokerConnection, b.sdUUID, err)
	}

	b.domainStatus = StatusPending

	deadline := b.clock.Now().Add(hostedha.MaxDomainMonitorWait)

	for {
		stats, err := b.hv.GetStorageRepoStats(ctx, []string{b.sdUUID})
		if err != nil {
			return fmt.Errorf("%w: get storage repo stats: %v", hostedha.ErrBrokerConnection, err)
		}

		if stat, ok := stats[b.sdUUID]; ok && stat.Acquired {
			b.domainStatus = StatusAcquired
			return nil
		}

		if !b.clock.Now().Before(deadline) {
			return fmt.Errorf("%w: domain %s did not reach ACQUIRED within %s", hostedha.ErrBrokerConnection, b.sdUUID, hostedha.MaxDomainMonitorWait)
		}

		b.clock.Sleep(hostedha.DomainMonitorPollInterval)
	}
}

// StopDomainMonitor requests hypervisor RPC to stop monitoring b's domain.
// Hypervisor errors here are logged and swallowed per spec §7 (start
// errors are fatal, stop errors are not); the status still resets to NONE.
func (b *Broker) StopDomainMonitor(ctx context.Context, onStopErr func(error)) {
	b.domainMu.Lock()
	defer b.domainMu.Unlock()

	if b.domainStatus == StatusNone {
		return
	}

	if err := b.hv.StopMonitoringDomain(ctx, b.sdUUID); err != nil && onStopErr != nil {
		onStopErr(err)
	}

	b.domainStatus = StatusNone
}

// DomainMonitorStatus reports the current lifecycle state.
func (b *Broker) DomainMonitorStatus() DomainMonitorStatus {
	b.domainMu.Lock()
	defer b.domainMu.Unlock()

	return b.domainStatus
}
