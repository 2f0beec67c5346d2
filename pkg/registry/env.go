package registry

import "maps"

// baseEnv holds the settings shared by every registry. It is never mutated;
// deriveEnv copies it.
var baseEnv = map[string]string{
	"KARAPACE_KARAPACE_REGISTRY": "true",
	"KARAPACE_HOST":              "0.0.0.0",
	"KARAPACE_LOG_LEVEL":         "INFO",
	"KARAPACE_COMPATIBILITY":     "FULL",
	// Peers must share the group to take part in the same election.
	"KARAPACE_GROUP_ID": DefaultAdvertisedName,
}

// deriveEnv returns the registry environment for cfg and the broker at
// bootstrap. ExpectedPrimary does not contribute.
func deriveEnv(cfg Config, bootstrap string) map[string]string {
	env := maps.Clone(baseEnv)
	maps.Copy(env, map[string]string{
		"KARAPACE_BOOTSTRAP_URI":            bootstrap,
		"KARAPACE_MASTER_ELECTION_STRATEGY": cfg.ElectionStrategy.String(),
		"KARAPACE_ADVERTISED_HOSTNAME":      cfg.AdvertisedName,
		"KARAPACE_CLIENT_ID":                cfg.AdvertisedName,
		"KARAPACE_TAGS__APP":                cfg.AdvertisedName,
	})
	return env
}
