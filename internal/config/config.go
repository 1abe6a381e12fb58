// Package config loads the broker/agent's environment-driven
// configuration (spec §6), with an optional JSONC override file layered
// on top the way the teacher's own config loader layers global/project
// config files before CLI overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tailscale/hujson"
)

// DomainType enumerates the storage-connection types spec §6 names.
type DomainType string

const (
	DomainNFS       DomainType = "nfs"
	DomainNFS3      DomainType = "nfs3"
	DomainNFS4      DomainType = "nfs4"
	DomainGlusterFS DomainType = "glusterfs"
	DomainPosixFS   DomainType = "posixfs"
	DomainISCSI     DomainType = "iscsi"
	DomainFC        DomainType = "fc"
)

func (d DomainType) valid() bool {
	switch d {
	case DomainNFS, DomainNFS3, DomainNFS4, DomainGlusterFS, DomainPosixFS, DomainISCSI, DomainFC:
		return true
	default:
		return false
	}
}

// Config is the resolved configuration for one agent/broker process.
type Config struct {
	SDUUID     string     `json:"sd_uuid"`
	SPUUID     string     `json:"sp_uuid"`
	DomainType DomainType `json:"domain_type"`

	MetadataImageUUID  string `json:"metadata_image_uuid"`
	MetadataVolumeUUID string `json:"metadata_volume_uuid"`

	LockspaceImageUUID  string `json:"lockspace_image_uuid"`
	LockspaceVolumeUUID string `json:"lockspace_volume_uuid"`

	HostID int `json:"host_id"`

	// ConnectionParams holds storage-connection parameters whose shape
	// depends on DomainType (mount options, iSCSI target, FC details);
	// kept as an opaque string map; cmd/heha-agent and cmd/heha-ctl read
	// its "device" entry for block domains.
	ConnectionParams map[string]string `json:"connection_params,omitempty"`

	// ISCSIBlacklist is the raw "iface<>portal,iface<>portal,..." value,
	// parsed by pkg/broker/connparams.ParseBlacklist.
	ISCSIBlacklist string `json:"iscsi_blacklist,omitempty"`
}

// envKey is the environment variable name for each config field.
const (
	envSDUUID               = "SD_UUID"
	envSPUUID               = "SP_UUID"
	envDomainType           = "DOMAIN_TYPE"
	envMetadataImageUUID    = "METADATA_IMAGE_UUID"
	envMetadataVolumeUUID   = "METADATA_VOLUME_UUID"
	envLockspaceImageUUID   = "LOCKSPACE_IMAGE_UUID"
	envLockspaceVolumeUUID  = "LOCKSPACE_VOLUME_UUID"
	envHostID               = "HOST_ID"
	envISCSIBlacklist       = "ISCSI_PATH_BLACKLIST"
	envConnParamPrefix      = "CONNECTION_PARAM_"

	// envOverrideFile, if set, points at a JSONC file layered over the
	// environment-derived config (fields present in the file win).
	envOverrideFile = "HOSTEDHA_CONFIG_FILE"
)

// Load resolves configuration from env (a slice of "KEY=VALUE" pairs, as
// passed to Run in the teacher's CLI dispatch shape) and, if
// HOSTEDHA_CONFIG_FILE names a readable file, layers its JSONC contents on
// top. Precedence (highest wins): override file > environment > defaults.
func Load(env []string) (Config, error) {
	vals := envMap(env)

	cfg := Config{
		SDUUID:              vals[envSDUUID],
		SPUUID:              vals[envSPUUID],
		DomainType:          DomainType(vals[envDomainType]),
		MetadataImageUUID:   vals[envMetadataImageUUID],
		MetadataVolumeUUID:  vals[envMetadataVolumeUUID],
		LockspaceImageUUID:  vals[envLockspaceImageUUID],
		LockspaceVolumeUUID: vals[envLockspaceVolumeUUID],
		ISCSIBlacklist:      vals[envISCSIBlacklist],
		ConnectionParams:    connectionParamsFromEnv(vals),
	}

	if raw, ok := vals[envHostID]; ok && raw != "" {
		hostID, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parsing %s=%q: %w", envHostID, raw, err)
		}

		cfg.HostID = hostID
	}

	if overridePath := vals[envOverrideFile]; overridePath != "" {
		if err := applyOverrideFile(&cfg, overridePath); err != nil {
			return Config{}, err
		}
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func envMap(env []string) map[string]string {
	m := make(map[string]string, len(env))

	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}

		m[k] = v
	}

	return m
}

func connectionParamsFromEnv(vals map[string]string) map[string]string {
	params := make(map[string]string)

	for k, v := range vals {
		if name, ok := strings.CutPrefix(k, envConnParamPrefix); ok {
			params[strings.ToLower(name)] = v
		}
	}

	if len(params) == 0 {
		return nil
	}

	return params
}

// applyOverrideFile layers JSONC-parsed fields from path onto cfg. Only
// fields present in the file are overwritten, matching the teacher's
// mergeConfig semantics (explicit-empty vs absent is not distinguished
// here since every field in this config is a plain scalar/map, not a
// pointer).
func applyOverrideFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config override %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return fmt.Errorf("parsing config override %s: %w", path, err)
	}

	var overlay Config
	if err := json.Unmarshal(standardized, &overlay); err != nil {
		return fmt.Errorf("decoding config override %s: %w", path, err)
	}

	mergeNonZero(cfg, &overlay)

	return nil
}

func mergeNonZero(cfg, overlay *Config) {
	if overlay.SDUUID != "" {
		cfg.SDUUID = overlay.SDUUID
	}

	if overlay.SPUUID != "" {
		cfg.SPUUID = overlay.SPUUID
	}

	if overlay.DomainType != "" {
		cfg.DomainType = overlay.DomainType
	}

	if overlay.MetadataImageUUID != "" {
		cfg.MetadataImageUUID = overlay.MetadataImageUUID
	}

	if overlay.MetadataVolumeUUID != "" {
		cfg.MetadataVolumeUUID = overlay.MetadataVolumeUUID
	}

	if overlay.LockspaceImageUUID != "" {
		cfg.LockspaceImageUUID = overlay.LockspaceImageUUID
	}

	if overlay.LockspaceVolumeUUID != "" {
		cfg.LockspaceVolumeUUID = overlay.LockspaceVolumeUUID
	}

	if overlay.HostID != 0 {
		cfg.HostID = overlay.HostID
	}

	if overlay.ISCSIBlacklist != "" {
		cfg.ISCSIBlacklist = overlay.ISCSIBlacklist
	}

	for k, v := range overlay.ConnectionParams {
		if cfg.ConnectionParams == nil {
			cfg.ConnectionParams = make(map[string]string)
		}

		cfg.ConnectionParams[k] = v
	}
}

func validate(cfg Config) error {
	if cfg.SDUUID == "" {
		return fmt.Errorf("missing required config: %s", envSDUUID)
	}

	if cfg.DomainType != "" && !cfg.DomainType.valid() {
		return fmt.Errorf("invalid %s: %q", envDomainType, cfg.DomainType)
	}

	return nil
}
