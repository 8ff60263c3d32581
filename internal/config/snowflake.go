package config

import "time"

// SnowflakeConfig feeds the experiment id generator.
type SnowflakeConfig struct {
	// Hostname must look like <deployment>-<replicaset>-<pod>. The plain
	// HOSTNAME variable set by Kubernetes is used when the prefixed one is absent.
	Hostname string `envconfig:"HOSTNAME"`

	// Epoch overrides the id epoch; zero keeps the built-in one.
	Epoch time.Time `envconfig:"EPOCH"`
}
