package fatx

import "time"

// minDate is the FATX epoch and also the value substituted for the
// packed field 0, which the format defines as "unknown time".
var minDate = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// packDateTime encodes t into the FATX 32-bit packed timestamp: from the
// low bit up, seconds/2 (5 bits), minute (6), hour (5), day (5), month
// (4), year-1980 (7). t is converted to UTC before its fields are read,
// per the format storing timestamps as UTC on write.
func packDateTime(t time.Time) uint32 {
	if t.IsZero() || t.Equal(minDate) {
		return 0
	}

	u := t.UTC()

	seconds := uint32(u.Second()/2) & 0x1F
	minute := uint32(u.Minute()) & 0x3F
	hour := uint32(u.Hour()) & 0x1F
	day := uint32(u.Day()) & 0x1F
	month := uint32(u.Month()) & 0x0F
	year := uint32(u.Year()-1980) & 0x7F

	return seconds |
		(minute << 5) |
		(hour << 11) |
		(day << 16) |
		(month << 21) |
		(year << 25)
}

// unpackDateTime decodes a FATX packed timestamp. A value of 0 decodes to
// minDate ("unknown time"). The result is converted from UTC to local
// time, per the format storing UTC on disk but presenting local time on
// read.
func unpackDateTime(v uint32) time.Time {
	if v == 0 {
		return minDate
	}

	seconds := (v & 0x1F) * 2
	minute := (v >> 5) & 0x3F
	hour := (v >> 11) & 0x1F
	day := (v >> 16) & 0x1F
	month := (v >> 21) & 0x0F
	year := 1980 + ((v >> 25) & 0x7F)

	utc := time.Date(int(year), time.Month(month), int(day), int(hour), int(minute), int(seconds), 0, time.UTC)
	return utc.In(time.Local)
}

// nowPacked packs the current time, used when stamping a dirent's
// creation/modified/access fields.
func nowPacked() uint32 {
	return packDateTime(time.Now())
}
