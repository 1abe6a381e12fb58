package hostedha

import "time"

// Whiteboard layout constants (spec §3, §6).
const (
	// HostSegmentBytes is the fixed size of one host's slot in the
	// metadata service.
	HostSegmentBytes = 4096

	// MaxHostIDScan bounds how many host slots get_raw_stats scans past
	// slot 0 (global metadata).
	MaxHostIDScan = 250

	// InfoBlockSize is the fixed size of one block-backend info-block.
	InfoBlockSize = 512
)

// Liveness / lockspace / domain-monitor timing constants.
const (
	// HostAliveTimeout is the staleness cutoff for liveness cache entries
	// and for get_local_host_score.
	HostAliveTimeout = 45 * time.Second

	// WaitForStorageDelay is the sleep between lockspace acquisition
	// retries.
	WaitForStorageDelay = 5 * time.Second

	// WaitForStorageRetry is the maximum number of add_lockspace attempts
	// before SanlockInitializationError is raised.
	WaitForStorageRetry = 5

	// MaxDomainMonitorWait bounds how long start_domain_monitor polls
	// before giving up.
	MaxDomainMonitorWait = 600 * time.Second

	// DomainMonitorPollInterval is the polling cadence for domain-monitor
	// status while waiting for ACQUIRED.
	DomainMonitorPollInterval = 5 * time.Second
)

// Agent retry constants (CLI surface, spec §6).
const (
	AgentStartRetries   = 3
	AgentStartRetryWait = 20 * time.Second
)

// LockspaceName is the single lockspace name used by this cluster's
// lease file, passed to add_lockspace/rem_lockspace.
const LockspaceName = "hosted-engine"

// SDMountParent is the well-known parent directory scanned to locate a
// connected storage domain's mount point.
const SDMountParent = "/rhev/data-center/mnt"

// GlusterSDSubdir is the subdirectory descended into when the domain
// type is glusterfs.
const GlusterSDSubdir = "glusterSD"

// BlockSDMarker is the literal parent-directory name that signals an
// LV-backed (block storage domain) layout.
const BlockSDMarker = "blockSD"
