package snowflake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePodIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		hostname string
		want     PodIdentity
		wantErr  string
	}{
		{
			name:     "Should parse a simple pod hostname",
			hostname: "experiments-7d9f8b6c5-x2k4q",
			want:     PodIdentity{Deployment: "experiments", ReplicaSet: "7d9f8b6c5", PodSuffix: "x2k4q"},
		},
		{
			name:     "Should keep hyphenated deployment names whole",
			hostname: "context-aware-config-5b7c9-abcde",
			want:     PodIdentity{Deployment: "context-aware-config", ReplicaSet: "5b7c9", PodSuffix: "abcde"},
		},
		{
			name:     "Should trim surrounding whitespace",
			hostname: "  api-1-2\n",
			want:     PodIdentity{Deployment: "api", ReplicaSet: "1", PodSuffix: "2"},
		},
		{name: "Should reject an empty hostname", hostname: "", wantErr: "empty"},
		{name: "Should reject a hostname with too few segments", hostname: "localhost", wantErr: "must look like"},
		{name: "Should reject two segments", hostname: "api-1", wantErr: "must look like"},
		{name: "Should reject empty segments", hostname: "api--x", wantErr: "empty segment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParsePodIdentity(tt.hostname)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPodIdentity_DiscriminatorsFitTheirBits(t *testing.T) {
	t.Parallel()

	id := PodIdentity{Deployment: "experiments", ReplicaSet: "7d9f8b6c5", PodSuffix: "x2k4q"}

	assert.GreaterOrEqual(t, id.MachineID(), int64(0))
	assert.LessOrEqual(t, id.MachineID(), int64(maxMachineID))
	assert.GreaterOrEqual(t, id.NodeID(), int64(0))
	assert.LessOrEqual(t, id.NodeID(), int64(maxNodeID))
	assert.Equal(t, id.MachineID(), id.MachineID(), "discriminators must be stable")
}

func TestNewFromHostname_FailsFatallyOnMalformedHostname(t *testing.T) {
	t.Parallel()

	gen, err := NewFromHostname("localhost")

	assert.Nil(t, gen)
	assert.ErrorContains(t, err, "failed to derive snowflake identity")
}
