// Package connparams shapes iSCSI/FC storage-connection parameters (spec §6
// configuration keys, supplemented from
// original_source/ovirt_hosted_engine_ha/lib/storage_server.py): the
// original StorageServer negotiates one connection per path and
// de-duplicates against an "iface<>portal" blacklist before attempting
// connectStorageServer. This package is pure data shaping; the hypervisor
// RPC (spec §6) owns the real connect.
package connparams

import "strings"

// Connection is one candidate storage-connection parameter set, keyed the
// way the original negotiates them (one per iSCSI portal/iface pair, or the
// sole entry for non-iSCSI domain types).
type Connection struct {
	Iface  string
	Portal string
}

// blacklistKey formats a Connection the same way as a blacklist entry, so
// the two can be compared directly.
func (c Connection) blacklistKey() string {
	return c.Iface + "<>" + c.Portal
}

// ParseBlacklist parses the "iface<>portal,iface<>portal,..." value named in
// spec §6's Configuration keys. Malformed entries (missing the "<>"
// separator) are skipped rather than failing the whole parse, since a
// single bad entry should not block connection attempts against everything
// else.
func ParseBlacklist(raw string) map[string]bool {
	blacklist := make(map[string]bool)

	if raw == "" {
		return blacklist
	}

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if !strings.Contains(entry, "<>") {
			continue
		}

		blacklist[entry] = true
	}

	return blacklist
}

// FilterBlacklisted returns candidates with every blacklisted
// (iface, portal) pair removed, preserving order.
func FilterBlacklisted(candidates []Connection, blacklist map[string]bool) []Connection {
	if len(blacklist) == 0 {
		return candidates
	}

	filtered := make([]Connection, 0, len(candidates))

	for _, c := range candidates {
		if blacklist[c.blacklistKey()] {
			continue
		}

		filtered = append(filtered, c)
	}

	return filtered
}
