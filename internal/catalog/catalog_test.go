package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTablesAreNonEmpty(t *testing.T) {
	assert.NotEmpty(t, Services())
	assert.NotEmpty(t, Regions())
	assert.NotEmpty(t, Frameworks())
}

func TestKnownService(t *testing.T) {
	assert.True(t, KnownService("s3"))
	assert.True(t, KnownService("iam"))
	assert.False(t, KnownService("S3"))
	assert.False(t, KnownService("route53"))
}

func TestKnownRegion(t *testing.T) {
	assert.True(t, KnownRegion("us-east-1"))
	assert.True(t, KnownRegion("ap-southeast-2"))
	assert.False(t, KnownRegion("mars-central-1"))
}

func TestRegionIDsLongestFirst(t *testing.T) {
	ids := RegionIDs()
	require.Len(t, ids, len(Regions()))
	for i := 1; i < len(ids); i++ {
		assert.GreaterOrEqual(t, len(ids[i-1]), len(ids[i]),
			"%q must not come after the shorter %q", ids[i-1], ids[i])
	}
}
