package config

// ExperimentationConfig holds the permission flags applied when a new
// experiment is checked against the ones still active. All default to true,
// which disables the check.
type ExperimentationConfig struct {
	AllowSameKeysOverlappingCtx    bool `envconfig:"ALLOW_SAME_KEYS_OVERLAPPING_CTX" default:"true"`
	AllowDiffKeysOverlappingCtx    bool `envconfig:"ALLOW_DIFF_KEYS_OVERLAPPING_CTX" default:"true"`
	AllowSameKeysNonOverlappingCtx bool `envconfig:"ALLOW_SAME_KEYS_NON_OVERLAPPING_CTX" default:"true"`
}
