package snowflake

import (
	"fmt"
	"strings"

	"github.com/spaolacci/murmur3"
)

// PodIdentity is the stable identity of the running instance, parsed from a
// Kubernetes-style hostname "<deployment>-<replica-set>-<pod-suffix>".
type PodIdentity struct {
	Deployment string
	ReplicaSet string
	PodSuffix  string
}

// ParsePodIdentity splits hostname from the right, so deployments whose
// names contain hyphens are kept whole.
func ParsePodIdentity(hostname string) (PodIdentity, error) {
	hostname = strings.TrimSpace(hostname)
	if hostname == "" {
		return PodIdentity{}, fmt.Errorf("hostname is empty")
	}

	tokens := strings.Split(hostname, "-")
	if len(tokens) < 3 {
		return PodIdentity{}, fmt.Errorf("hostname %q must look like <deployment>-<replica-set>-<pod-suffix>", hostname)
	}

	n := len(tokens)
	id := PodIdentity{
		Deployment: strings.Join(tokens[:n-2], "-"),
		ReplicaSet: tokens[n-2],
		PodSuffix:  tokens[n-1],
	}
	if id.Deployment == "" || id.ReplicaSet == "" || id.PodSuffix == "" {
		return PodIdentity{}, fmt.Errorf("hostname %q has an empty segment", hostname)
	}
	return id, nil
}

// MachineID folds the deployment name into the machine bits.
func (p PodIdentity) MachineID() int64 {
	return int64(murmur3.Sum32([]byte(p.Deployment))) & maxMachineID
}

// NodeID folds the replica set and pod suffix into the node bits.
func (p PodIdentity) NodeID() int64 {
	return int64(murmur3.Sum32([]byte(p.ReplicaSet+"-"+p.PodSuffix))) & maxNodeID
}

func (p PodIdentity) String() string {
	return p.Deployment + "-" + p.ReplicaSet + "-" + p.PodSuffix
}
