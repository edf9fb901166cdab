package fatx

import (
	"encoding/binary"
	"fmt"
)

// partitionSpec is the pre-read description of a partition slot: where it
// starts, how big it is, and which header/chain-map arithmetic (Kind)
// applies to it.
type partitionSpec struct {
	name   string
	offset int64
	size   int64
	kind   Kind
}

const (
	hardDriveDumpOffset    = 0x80000
	hardDriveDumpSize      = 0x80000000
	hardDriveWindowsOffset = 0x80080000
	hardDriveWindowsSize   = 0xA0E30000
	hardDriveSystemOffset  = 0x120EB0000
	hardDriveSystemSize    = 0x10000000
	hardDriveDataOffset    = 0x130EB0000

	devkitTableOffset = 8
	devkitSectorSize  = 0x200
)

// buildLayout computes the partition table for the device's probed kind.
// It never touches disk beyond what probeKind already read, except for
// HardDriveDevkit's variable-length sector table.
func (d *Device) buildLayout() ([]partitionSpec, error) {
	switch d.Kind {
	case DeviceKindMemoryCard:
		specs := []partitionSpec{
			{name: "Cache", offset: 0, size: memoryCardDataOffset, kind: KindRegular},
			{name: "Data", offset: memoryCardDataOffset, size: 0, kind: KindRegular},
		}
		extendLastPartition(specs, d.Length)
		return specs, nil

	case DeviceKindHardDrive:
		specs := d.hardDriveFixedPartitions()
		specs = append(specs, partitionSpec{name: "Data", offset: hardDriveDataOffset, size: 0, kind: KindRegular})
		extendLastPartition(specs, d.Length)
		return specs, nil

	case DeviceKindHardDriveDevkit:
		specs := d.hardDriveFixedPartitions()
		table, err := d.readDevkitTable()
		if err != nil {
			return nil, err
		}
		specs = append(specs, table...)
		return specs, nil

	case DeviceKindUSBStick:
		return []partitionSpec{
			{name: "Data", offset: 0, size: d.Length, kind: KindUSB},
		}, nil

	default:
		return nil, nil
	}
}

func (d *Device) hardDriveFixedPartitions() []partitionSpec {
	return []partitionSpec{
		{name: "Dump", offset: hardDriveDumpOffset, size: hardDriveDumpSize, kind: KindRegular},
		{name: "Windows", offset: hardDriveWindowsOffset, size: hardDriveWindowsSize, kind: KindRegular},
		{name: "System", offset: hardDriveSystemOffset, size: hardDriveSystemSize, kind: KindRegular},
	}
}

// extendLastPartition grows the final entry of a non-devkit layout to
// absorb whatever capacity remains on the device, applying the 20 GB
// hard drive's fixed-size quirk instead when it matches exactly.
func extendLastPartition(specs []partitionSpec, driveSize int64) {
	if len(specs) == 0 {
		return
	}
	last := &specs[len(specs)-1]
	if driveSize == twentyGBDriveSize {
		last.size = twentyGBLastPartSize
		return
	}
	last.size = driveSize - last.offset
}

// readDevkitTable reads pairs of (sectorIndex, sectorCount) BE u32s
// starting at device offset 8 until a zero sector index terminates the
// table, per §4.5.
func (d *Device) readDevkitTable() ([]partitionSpec, error) {
	var specs []partitionSpec

	offset := int64(devkitTableOffset)
	entry := make([]byte, 8)
	for i := 0; ; i++ {
		if err := d.readAt(offset, entry); err != nil {
			break
		}
		sectorIndex := binary.BigEndian.Uint32(entry[0:4])
		sectorCount := binary.BigEndian.Uint32(entry[4:8])
		if sectorIndex == 0 {
			break
		}

		specs = append(specs, partitionSpec{
			name:   devkitPartitionName(i),
			offset: int64(sectorIndex) * devkitSectorSize,
			size:   int64(sectorCount) * devkitSectorSize,
			kind:   KindRegular,
		})
		offset += 8
	}

	return specs, nil
}

func devkitPartitionName(index int) string {
	return fmt.Sprintf("Devkit%d", index)
}
