package fatx

import (
	"encoding/binary"
	"encoding/hex"
	"io"
	"strings"

	"go.uber.org/multierr"

	"github.com/xboxfatx/fatx/checkpoint"
	"github.com/xboxfatx/fatx/iostream"
)

// DeviceKind identifies which of the Xbox 360 storage layouts a stream
// was probed as, per §4.5.
type DeviceKind int

const (
	DeviceKindUnknown DeviceKind = iota
	DeviceKindMemoryCard
	DeviceKindHardDrive
	DeviceKindHardDriveDevkit
	DeviceKindUSBStick
)

const (
	memoryCardDataOffset = 0x7FF000
	hardDriveProbeOffset = 0x80000
	devkitMagicLE        = 0x020000

	deviceIDOffset = 0x228
	deviceIDSize   = 20

	// twentyGBDriveSize triggers the last-partition-size quirk.
	twentyGBDriveSize    = 0x04AB440C00
	twentyGBLastPartSize = 0x377FFC000
)

// Device owns the single underlying byte stream for a probed Xbox 360
// storage device, its computed partition layout, and every partition
// whose header validated on read.
type Device struct {
	stream iostream.Stream

	Kind       DeviceKind
	Length     int64
	DeviceID   string
	Partitions []*Partition
}

// Open probes stream's device kind, computes its partition layout, reads
// each partition's header and chain map, and drops any partition whose
// magic does not validate.
func Open(stream iostream.Stream) (*Device, error) {
	length, err := stream.Len()
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrNotFATX)
	}

	d := &Device{stream: stream, Length: length}
	d.Kind = d.probeKind()

	specs, err := d.buildLayout()
	if err != nil {
		return nil, err
	}

	for _, spec := range specs {
		p := newPartition(d, spec.kind, spec.name, spec.offset, spec.size)
		if err := p.read(); err != nil {
			continue
		}
		d.Partitions = append(d.Partitions, p)
	}

	if d.Kind == DeviceKindUSBStick {
		if id, ok := d.readDeviceID(); ok {
			d.DeviceID = id
		}
	}

	return d, nil
}

// readMagicAt reads a big-endian uint32 at offset, reporting false if the
// stream is too short or unreadable at that point rather than treating a
// probe miss as fatal.
func (d *Device) readMagicAt(offset int64) (uint32, bool) {
	buf := make([]byte, 4)
	if err := d.readAt(offset, buf); err != nil {
		return 0, false
	}
	return binary.BigEndian.Uint32(buf), true
}

func (d *Device) probeKind() DeviceKind {
	if magic, ok := d.readMagicAt(0); ok && magic == fatxMagic {
		if magic2, ok := d.readMagicAt(memoryCardDataOffset); ok && magic2 == fatxMagic {
			return DeviceKindMemoryCard
		}
		return DeviceKindUSBStick
	}

	if magic, ok := d.readMagicAt(hardDriveProbeOffset); ok && magic == fatxMagic {
		buf := make([]byte, 4)
		if err := d.readAt(0, buf); err == nil {
			if binary.LittleEndian.Uint32(buf) == devkitMagicLE {
				return DeviceKindHardDriveDevkit
			}
		}
		return DeviceKindHardDrive
	}

	return DeviceKindUnknown
}

func (d *Device) readDeviceID() (string, bool) {
	buf := make([]byte, deviceIDSize)
	if err := d.readAt(deviceIDOffset, buf); err != nil {
		return "", false
	}
	return strings.ToUpper(hex.EncodeToString(buf)), true
}

func (d *Device) readAt(offset int64, buf []byte) error {
	if _, err := d.stream.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	_, err := io.ReadFull(d.stream, buf)
	return err
}

func (d *Device) writeAt(offset int64, data []byte) error {
	if _, err := d.stream.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	_, err := d.stream.Write(data)
	return err
}

// IsValid reports whether the device probed to a recognized kind and at
// least one of its partitions validated on read.
func (d *Device) IsValid() bool {
	return d.Kind != DeviceKindUnknown && len(d.Partitions) > 0
}

// Close flushes and, if supported, closes the underlying stream. Errors
// from both steps are aggregated rather than short-circuited, since a
// failed close should not hide a failed flush.
func (d *Device) Close() error {
	var err error
	err = multierr.Append(err, d.stream.Flush())
	if closer, ok := d.stream.(iostream.Closer); ok {
		err = multierr.Append(err, closer.Close())
	}
	return err
}
