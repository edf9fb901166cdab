package fatx

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xboxfatx/fatx/iostream"
)

func writeMagicAt(t *testing.T, stream iostream.Stream, offset int64, magic uint32) {
	t.Helper()
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, magic)
	_, err := stream.Seek(offset, io.SeekStart)
	require.NoError(t, err)
	_, err = stream.Write(buf)
	require.NoError(t, err)
}

func TestProbeKindMemoryCard(t *testing.T) {
	stream, err := iostream.NewMemoryStream()
	require.NoError(t, err)
	require.NoError(t, stream.SetLength(memoryCardDataOffset+16))
	writeMagicAt(t, stream, 0, fatxMagic)
	writeMagicAt(t, stream, memoryCardDataOffset, fatxMagic)

	d := &Device{stream: stream, Length: memoryCardDataOffset + 16}
	require.Equal(t, DeviceKindMemoryCard, d.probeKind())
}

func TestProbeKindUSBStick(t *testing.T) {
	stream, err := iostream.NewMemoryStream()
	require.NoError(t, err)
	require.NoError(t, stream.SetLength(memoryCardDataOffset+16))
	writeMagicAt(t, stream, 0, fatxMagic)

	d := &Device{stream: stream, Length: memoryCardDataOffset + 16}
	require.Equal(t, DeviceKindUSBStick, d.probeKind())
}

func TestProbeKindHardDriveAndDevkit(t *testing.T) {
	stream, err := iostream.NewMemoryStream()
	require.NoError(t, err)
	require.NoError(t, stream.SetLength(hardDriveProbeOffset+16))
	writeMagicAt(t, stream, hardDriveProbeOffset, fatxMagic)

	d := &Device{stream: stream, Length: hardDriveProbeOffset + 16}
	require.Equal(t, DeviceKindHardDrive, d.probeKind())

	le := make([]byte, 4)
	binary.LittleEndian.PutUint32(le, devkitMagicLE)
	_, err = stream.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, err = stream.Write(le)
	require.NoError(t, err)
	require.Equal(t, DeviceKindHardDriveDevkit, d.probeKind())
}

func TestProbeKindUnknown(t *testing.T) {
	stream, err := iostream.NewMemoryStream()
	require.NoError(t, err)
	require.NoError(t, stream.SetLength(16))
	d := &Device{stream: stream, Length: 16}
	require.Equal(t, DeviceKindUnknown, d.probeKind())
}

func writeValidPartitionHeader(t *testing.T, stream iostream.Stream, offset int64) {
	t.Helper()
	header := make([]byte, partitionHeaderSize)
	binary.BigEndian.PutUint32(header[0:], fatxMagic)
	binary.BigEndian.PutUint32(header[4:], 1)
	binary.BigEndian.PutUint32(header[8:], 1) // sectorsPerCluster
	binary.BigEndian.PutUint32(header[12:], 1)
	_, err := stream.Seek(offset, io.SeekStart)
	require.NoError(t, err)
	_, err = stream.Write(header)
	require.NoError(t, err)
}

func TestBuildLayoutDropsPartitionsWithBadMagic(t *testing.T) {
	// Bypasses probeKind (which would need a full-size MemoryCard image)
	// to exercise the same "read each spec, drop on bad magic" loop Open
	// runs, against a Data partition deliberately left unformatted.
	stream, err := iostream.NewMemoryStream()
	require.NoError(t, err)
	require.NoError(t, stream.SetLength(memoryCardDataOffset+8192))
	writeValidPartitionHeader(t, stream, 0)

	d := &Device{stream: stream, Kind: DeviceKindMemoryCard, Length: memoryCardDataOffset + 8192}
	specs, err := d.buildLayout()
	require.NoError(t, err)
	require.Len(t, specs, 2)

	var valid int
	for _, spec := range specs {
		p := newPartition(d, spec.kind, spec.name, spec.offset, spec.size)
		if err := p.read(); err == nil {
			valid++
		}
	}
	require.Equal(t, 1, valid)
}

func TestDeviceIsValid(t *testing.T) {
	require.False(t, (&Device{Kind: DeviceKindUnknown}).IsValid())
	require.False(t, (&Device{Kind: DeviceKindMemoryCard}).IsValid())

	valid := &Device{Kind: DeviceKindMemoryCard, Partitions: []*Partition{{}}}
	require.True(t, valid.IsValid())
}
