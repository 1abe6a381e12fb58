package clientview

// flagNormalizer maps a raw flag value to its stored string form.
type flagNormalizer func(value string) string

// flagNormalizers is the supplemented global-metadata-flag normalization
// registry (SPEC_FULL.md §9): the original client.py's set_global_md_flag
// special-cases specific flags (boolean normalization for a maintenance
// flag); we generalize that into a registry with one concrete entry plus
// the general verbatim case. Unknown flags are rejected by SetGlobalMDFlag
// before reaching this table.
var flagNormalizers = map[string]flagNormalizer{
	"maintenance": normalizeBool,
	// score_flags/other known flags are stored verbatim.
	"score_flags": verbatim,
}

func verbatim(value string) string { return value }

// normalizeBool matches the original's boolean-as-string convention:
// anything truthy normalizes to "True", everything else to "False".
func normalizeBool(value string) string {
	switch value {
	case "1", "true", "True", "TRUE", "yes":
		return "True"
	default:
		return "False"
	}
}
