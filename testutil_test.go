package fatx

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xboxfatx/fatx/iostream"
)

// newTestPartition builds a small, freshly formatted FATX regular
// partition backed by an in-memory stream: a valid header, a zeroed
// root directory in cluster 1 whose chain-map entry marks it as a
// one-cluster chain, and clusterCount further clusters left free.
func newTestPartition(t *testing.T, clusterSize, clusterCount uint32) *Partition {
	t.Helper()

	// computeRegularLayout derives ClusterCount as Size / ClusterSize
	// with no header/chain-map subtraction, so the partition's logical
	// Size is set to exactly totalClusters*clusterSize; the physical
	// backing stream is allocated larger, to also fit the header and
	// chain map ahead of the file area.
	totalClusters := clusterCount + 1
	entrySize := entrySizeFor(totalClusters)
	chainMapSize := roundUp(int64(totalClusters)*int64(entrySize), chainMapAlignment)
	fileAreaSize := int64(totalClusters) * int64(clusterSize)
	streamCapacity := int64(headerReserved) + chainMapSize + fileAreaSize
	partitionSize := int64(totalClusters) * int64(clusterSize)

	stream, err := iostream.NewMemoryStream()
	require.NoError(t, err)
	require.NoError(t, stream.SetLength(streamCapacity))

	header := make([]byte, partitionHeaderSize)
	binary.BigEndian.PutUint32(header[0:], fatxMagic)
	binary.BigEndian.PutUint32(header[4:], 1)
	binary.BigEndian.PutUint32(header[8:], clusterSize/sectorSize)
	binary.BigEndian.PutUint32(header[12:], 1)
	_, err = stream.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, err = stream.Write(header)
	require.NoError(t, err)

	// Chain-map entry for cluster 1 (the root directory): end of chain.
	_, err = stream.Seek(int64(headerReserved), io.SeekStart)
	require.NoError(t, err)
	_, err = stream.Write(bytes.Repeat([]byte{0xFF}, entrySize))
	require.NoError(t, err)

	dev := &Device{stream: stream, Length: streamCapacity}
	p := newPartition(dev, KindRegular, "Test", 0, partitionSize)
	require.NoError(t, p.read())
	return p
}
