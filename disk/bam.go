package disk

import (
	"github.com/paleotronic/d64m8/loggy"
)

// BAM sector layout offsets.
const (
	BAM_OFFSET_DIR_TRACK   = 0x00
	BAM_OFFSET_DIR_SECTOR  = 0x01
	BAM_OFFSET_DOS_VERSION = 0x02
	BAM_OFFSET_ENTRIES     = 0x04
	BAM_OFFSET_DISK_NAME   = 0x90
	BAM_OFFSET_A0_PAD      = 0xA0
	BAM_OFFSET_DISK_ID     = 0xA2
	BAM_OFFSET_DOS_TYPE    = 0xA5
	BAM_OFFSET_EXTENSION   = 0xAC
	BAM_ENTRY_SIZE         = 4
)

// BAM is an accessor over the live block availability map at (18,0). It
// aliases the image buffer, so every mutation lands on the disk directly.
// A set bitmap bit means the sector is free.
type BAM struct {
	data []byte
	dsk  *DSKWrapper
}

func (d *DSKWrapper) GetBAM() *BAM {
	offset := TRACK_OFFSETS[DIRECTORY_TRACK-1] + BAM_SECTOR*STD_BYTES_PER_SECTOR
	return &BAM{
		data: d.Data[offset : offset+STD_BYTES_PER_SECTOR],
		dsk:  d,
	}
}

// entryOffset returns the offset of a track's 4 byte BAM entry. Tracks
// 36-40 live in the DolphinDOS extension area at $AC.
func (b *BAM) entryOffset(track int) int {
	if track > TRACKS_35 {
		return BAM_OFFSET_EXTENSION + (track-TRACKS_35-1)*BAM_ENTRY_SIZE
	}
	return BAM_OFFSET_ENTRIES + (track-1)*BAM_ENTRY_SIZE
}

func (b *BAM) DirStart() TrackSector {
	return TrackSector{Track: b.data[BAM_OFFSET_DIR_TRACK], Sector: b.data[BAM_OFFSET_DIR_SECTOR]}
}

func (b *BAM) DOSVersion() byte {
	return b.data[BAM_OFFSET_DOS_VERSION]
}

func (b *BAM) DiskID() [2]byte {
	return [2]byte{b.data[BAM_OFFSET_DISK_ID], b.data[BAM_OFFSET_DISK_ID+1]}
}

// DiskName returns the disk name, trimmed at the first pad byte.
func (b *BAM) DiskName() string {
	return TrimName(b.data[BAM_OFFSET_DISK_NAME : BAM_OFFSET_DISK_NAME+DISK_NAME_SIZE])
}

// SetDiskName writes a padded disk name into the header.
func (b *BAM) SetDiskName(name string) {
	copy(b.data[BAM_OFFSET_DISK_NAME:BAM_OFFSET_DISK_NAME+DISK_NAME_SIZE], PadName(name, DISK_NAME_SIZE))
}

// TrackFree returns the free sector count byte of a track.
func (b *BAM) TrackFree(track int) int {
	return int(b.data[b.entryOffset(track)])
}

func (b *BAM) setTrackFree(track, count int) {
	b.data[b.entryOffset(track)] = byte(count)
}

// IsTSFree tests the availability bit of a sector.
func (b *BAM) IsTSFree(track, sector int) bool {
	offset := b.entryOffset(track) + 1 + sector/8
	return b.data[offset]&(1<<(sector%8)) != 0
}

// SetTSFree sets or clears the availability bit of a sector. The free count
// byte is not touched; callers keep it in lockstep.
func (b *BAM) SetTSFree(track, sector int, free bool) {
	offset := b.entryOffset(track) + 1 + sector/8
	mask := byte(1 << (sector % 8))
	if free {
		b.data[offset] |= mask
	} else {
		b.data[offset] &^= mask
	}
}

// Initialize lays down a fresh BAM: header fields, disk name, and every
// sector marked free. Bitmap bits past a track's sector count are left
// clear, the way DOS formats real disks.
func (b *BAM) Initialize(name string, tracks int) {

	for i := range b.data {
		b.data[i] = 0
	}

	b.data[BAM_OFFSET_DIR_TRACK] = DIRECTORY_TRACK
	b.data[BAM_OFFSET_DIR_SECTOR] = DIRECTORY_SECTOR
	b.data[BAM_OFFSET_DOS_VERSION] = DOS_VERSION

	for t := 1; t <= tracks; t++ {
		offset := b.entryOffset(t)
		spt := SECTORS_PER_TRACK[t-1]
		b.data[offset] = byte(spt)
		// every track has more than 16 sectors, so the first two bitmap
		// bytes are always fully free
		b.data[offset+1] = 0xFF
		b.data[offset+2] = 0xFF
		b.data[offset+3] = byte((1 << (spt % 8)) - 1)
	}

	b.SetDiskName(name)

	b.data[BAM_OFFSET_A0_PAD] = PAD_VALUE
	b.data[BAM_OFFSET_A0_PAD+1] = PAD_VALUE
	b.data[BAM_OFFSET_DISK_ID] = PAD_VALUE
	b.data[BAM_OFFSET_DISK_ID+1] = PAD_VALUE
	b.data[0xA4] = PAD_VALUE
	b.data[BAM_OFFSET_DOS_TYPE] = DOS_TYPE
	b.data[BAM_OFFSET_DOS_TYPE+1] = DOS_VERSION
}

// IsSectorFree reports whether the BAM marks a sector as available.
func (d *DSKWrapper) IsSectorFree(track, sector int) bool {
	if !d.ValidTS(track, sector) {
		return false
	}
	return d.GetBAM().IsTSFree(track, sector)
}

// AllocateSector claims a sector in the BAM. Returns false when the
// coordinates are invalid or the sector is already allocated.
func (d *DSKWrapper) AllocateSector(track, sector int) bool {
	if !d.ValidTS(track, sector) {
		loggy.Get(0).Errorf("Invalid track and sector TRACK:%d SECTOR:%d", track, sector)
		return false
	}
	bam := d.GetBAM()
	if !bam.IsTSFree(track, sector) {
		return false
	}
	bam.SetTSFree(track, sector, false)
	bam.setTrackFree(track, bam.TrackFree(track)-1)
	return true
}

// FreeSector releases a sector in the BAM. The BAM sector and the first
// directory sector are never freed; asking is logged and refused.
func (d *DSKWrapper) FreeSector(track, sector int) bool {
	if !d.ValidTS(track, sector) {
		loggy.Get(0).Errorf("Invalid track and sector TRACK:%d SECTOR:%d", track, sector)
		return false
	}
	if track == DIRECTORY_TRACK && (sector == BAM_SECTOR || sector == DIRECTORY_SECTOR) {
		loggy.Get(0).Errorf("Attempt to free reserved sector ignored (Track %d, Sector %d)", track, sector)
		return false
	}
	bam := d.GetBAM()
	if bam.IsTSFree(track, sector) {
		return false
	}
	bam.SetTSFree(track, sector, true)
	bam.setTrackFree(track, bam.TrackFree(track)+1)
	return true
}

// FreeSectorCount sums the free counts of every track except the directory
// track, which DOS reserves.
func (d *DSKWrapper) FreeSectorCount() int {
	bam := d.GetBAM()
	free := 0
	for t := 1; t <= d.TPD(); t++ {
		if t == DIRECTORY_TRACK {
			continue
		}
		free += bam.TrackFree(t)
	}
	return free
}

// trackSearchOrder builds the allocation priority: tracks radiate outward
// from the directory track, alternating below and above, so files cluster
// near the directory and head movement stays short.
func trackSearchOrder(tracks int) []int {
	order := make([]int, 0, tracks)
	order = append(order, DIRECTORY_TRACK)
	for delta := 1; len(order) < tracks; delta++ {
		if t := DIRECTORY_TRACK - delta; t >= 1 {
			order = append(order, t)
		}
		if t := DIRECTORY_TRACK + delta; t <= tracks {
			order = append(order, t)
		}
	}
	return order
}

// allocateOnTrack scans a single track for a free sector, starting one
// interleave step past the last sector handed out on that track.
func (d *DSKWrapper) allocateOnTrack(track int) (int, bool) {
	bam := d.GetBAM()
	if bam.TrackFree(track) < 1 {
		return 0, false
	}
	spt := SECTORS_PER_TRACK[track-1]
	start := (d.lastSectorUsed[track-1] + d.Interleave) % spt
	if start < 0 {
		start += spt
	}
	for i := 0; i < spt; i++ {
		s := (start + i) % spt
		if bam.IsTSFree(track, s) {
			d.AllocateSector(track, s)
			d.lastSectorUsed[track-1] = s
			return s, true
		}
	}
	return 0, false
}

// FindAndAllocateFreeSector claims the next free sector for file data,
// walking the track priority order and skipping the directory track.
func (d *DSKWrapper) FindAndAllocateFreeSector() (int, int, error) {
	for _, t := range d.searchOrder {
		if t == DIRECTORY_TRACK {
			continue
		}
		if s, ok := d.allocateOnTrack(t); ok {
			return t, s, nil
		}
	}
	return 0, 0, ErrDiskFull
}

// FindAndAllocateOnTrack claims a free sector on one named track, used for
// growing the directory chain on track 18.
func (d *DSKWrapper) FindAndAllocateOnTrack(track int) (int, int, error) {
	if track < 1 || track > d.TPD() {
		return 0, 0, ErrInvalidGeometry
	}
	if s, ok := d.allocateOnTrack(track); ok {
		return track, s, nil
	}
	return 0, 0, ErrDiskFull
}
