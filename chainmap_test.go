package fatx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadClusterRejectsOutOfRangeIndex(t *testing.T) {
	p := newTestPartition(t, 4096, 4)

	_, err := p.ReadCluster(0)
	require.ErrorIs(t, err, ErrBadCluster)

	_, err = p.ReadCluster(p.ClusterCount + 1)
	require.ErrorIs(t, err, ErrBadCluster)
}

func TestWriteClusterRejectsOutOfRangeIndex(t *testing.T) {
	p := newTestPartition(t, 4096, 4)

	err := p.WriteCluster(0, make([]byte, p.ClusterSize))
	require.ErrorIs(t, err, ErrBadCluster)
}

func TestAllocateClusterReturnsNoSpaceWhenExhausted(t *testing.T) {
	p := newTestPartition(t, 4096, 3)

	for i := 0; i < 3; i++ {
		_, err := p.AllocateCluster(false)
		require.NoError(t, err)
	}

	cluster, err := p.AllocateCluster(false)
	require.ErrorIs(t, err, ErrNoSpace)
	require.Equal(t, ClusterFree, cluster)
}

func TestFreeChainBoundedWalkReportsBadChain(t *testing.T) {
	p := newTestPartition(t, 4096, 3)

	first, err := p.AllocateCluster(false)
	require.NoError(t, err)
	// A single-cluster chain ends immediately; asking FreeChain to walk
	// two steps past it must fail rather than silently stopping short.
	err = p.FreeChain(first, 2, false, false)
	require.ErrorIs(t, err, ErrBadChain)
}

func TestFreeChainUnboundedWalkToleratesShortChain(t *testing.T) {
	p := newTestPartition(t, 4096, 3)

	first, err := p.AllocateCluster(false)
	require.NoError(t, err)
	require.NoError(t, p.FreeChain(first, Unbounded, false, false))
	require.Equal(t, uint32(3), p.GetFreeClusterCount())
}
