package clientview

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/ovirt/hosted-engine-ha/internal/log"
)

// Mode filters get_all_stats results (spec §4.G).
type Mode int

const (
	ModeAll Mode = iota
	ModeHost
	ModeGlobal
)

// Field names this package knows how to interpret (SPEC_FULL.md §9:
// "stats-to-string host key formatting" and the host-score path).
const (
	FieldScore     = "score"
	FieldTimestamp = "ts"
)

// Record is one parsed metadata slot. HostID is 0 for the global record
// (slot 0); Fields holds the opaque key/value pairs the codec round-trips,
// uninterpreted beyond the couple of well-known fields this package reads.
type Record struct {
	HostID int
	Fields map[string]string
}

// Channel is the broker access surface the client view consumes — either
// an in-process *broker.Broker or an RPC stub, per spec §4.G ("fetch raw
// per-slot bytes through a broker channel"). *broker.Broker satisfies this
// interface directly.
type Channel interface {
	GetAllStats(ctx context.Context, serviceType string) (map[string][]byte, error)
	PutStats(ctx context.Context, serviceType string, hostID int, payload []byte) error
}

// GetAllStats fetches every present slot for serviceType through ch,
// parses each with the field codec, and filters by mode. Parse errors on
// individual slots are logged and skipped, not propagated (spec §4.G).
func GetAllStats(ctx context.Context, ch Channel, serviceType string, mode Mode) ([]Record, error) {
	raw, err := ch.GetAllStats(ctx, serviceType)
	if err != nil {
		return nil, err
	}

	return parseAndFilter(raw, mode), nil
}

func parseAndFilter(raw map[string][]byte, mode Mode) []Record {
	hostIDs := make([]int, 0, len(raw))
	for k := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			log.WithComponent("clientview").Warn().Str("key", k).Msg("non-numeric host key, skipping")
			continue
		}

		hostIDs = append(hostIDs, id)
	}

	sort.Ints(hostIDs)

	records := make([]Record, 0, len(hostIDs))

	for _, id := range hostIDs {
		if !modeAccepts(mode, id) {
			continue
		}

		fields, err := decodeRecord(raw[strconv.Itoa(id)])
		if err != nil {
			log.WithHostID(id).Warn().Err(err).Msg("skipping unparseable metadata slot")
			continue
		}

		records = append(records, Record{HostID: id, Fields: fields})
	}

	return records
}

func modeAccepts(mode Mode, hostID int) bool {
	switch mode {
	case ModeGlobal:
		return hostID == 0
	case ModeHost:
		return hostID != 0
	default:
		return true
	}
}

// SetGlobalMDFlag reads slot 0, decodes it, sets flag to the
// flag-normalized form of value, re-encodes, and writes it back. Unknown
// flags fail per spec §4.G/§3 invariant (generalized via the normalizer
// registry, SPEC_FULL.md §9).
func SetGlobalMDFlag(ctx context.Context, ch Channel, serviceType, flag, value string) error {
	normalize, ok := flagNormalizers[flag]
	if !ok {
		return fmt.Errorf("clientview: unknown global metadata flag %q", flag)
	}

	raw, err := ch.GetAllStats(ctx, serviceType)
	if err != nil {
		return err
	}

	fields, err := decodeRecord(raw["0"])
	if err != nil {
		if !errors.Is(err, ErrRecordAbsent) {
			return err
		}

		fields = make(map[string]string)
	}

	fields[flag] = normalize(value)

	encoded, err := encodeRecord(fields)
	if err != nil {
		return err
	}

	return ch.PutStats(ctx, serviceType, 0, encoded)
}

// EncodeHostRecord encodes fields with the same codec GetAllStats decodes
// with, so a broker client can publish its own slot (e.g. the agent's
// score/timestamp report) without reaching into the codec directly.
func EncodeHostRecord(fields map[string]string) ([]byte, error) {
	return encodeRecord(fields)
}

// GetLocalHostScore reads and parses hostID's slot; if the record's
// timestamp is within HOST_ALIVE_TIMEOUT_SECS of now, returns the parsed
// score, else 0 (spec §4.G).
func GetLocalHostScore(ctx context.Context, ch Channel, serviceType string, hostID int, nowUnix int64, timeoutSecs int64) (int, error) {
	raw, err := ch.GetAllStats(ctx, serviceType)
	if err != nil {
		return 0, err
	}

	payload, ok := raw[strconv.Itoa(hostID)]
	if !ok {
		return 0, nil
	}

	fields, err := decodeRecord(payload)
	if err != nil {
		if errors.Is(err, ErrRecordAbsent) {
			return 0, nil
		}

		return 0, err
	}

	ts, err := strconv.ParseInt(fields[FieldTimestamp], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("clientview: host %d record missing/invalid %s field: %w", hostID, FieldTimestamp, err)
	}

	if ts+timeoutSecs < nowUnix {
		return 0, nil
	}

	score, err := strconv.Atoi(fields[FieldScore])
	if err != nil {
		return 0, fmt.Errorf("clientview: host %d record missing/invalid %s field: %w", hostID, FieldScore, err)
	}

	return score, nil
}
