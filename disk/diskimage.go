package disk

import (
	"fmt"
	"os"

	"github.com/paleotronic/d64m8/loggy"
)

const STD_BYTES_PER_SECTOR = 256
const TRACKS_35 = 35
const TRACKS_40 = 40
const D64_DISK35_BYTES = 174848
const D64_DISK40_BYTES = 196608

const DIRECTORY_TRACK = 18
const BAM_SECTOR = 0
const DIRECTORY_SECTOR = 1
const FILES_PER_SECTOR = 8
const DIR_ENTRY_SIZE = 30
const DISK_NAME_SIZE = 16
const FILE_NAME_SIZE = 16

const FORMAT_FILL = 0x01
const PAD_VALUE = 0xA0
const DOS_VERSION = 'A'
const DOS_TYPE = '2'

const DEFAULT_INTERLEAVE = 10
const DEFAULT_DISK_NAME = "NEW DISK"

// SECTORS_PER_TRACK gives the sector count for each 1-based track of the
// 1541/1571 zone layout. Tracks 36-40 exist only on DolphinDOS images.
var SECTORS_PER_TRACK = [TRACKS_40]int{
	21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, // 1-17
	19, 19, 19, 19, 19, 19, 19, // 18-24
	18, 18, 18, 18, 18, 18, // 25-30
	17, 17, 17, 17, 17, // 31-35
	17, 17, 17, 17, 17, // 36-40
}

// TRACK_OFFSETS holds the byte offset of each track, prefix-summed from the
// zone table above.
var TRACK_OFFSETS = func() [TRACKS_40]int {
	var offsets [TRACKS_40]int
	pos := 0
	for i := 0; i < TRACKS_40; i++ {
		offsets[i] = pos
		pos += SECTORS_PER_TRACK[i] * STD_BYTES_PER_SECTOR
	}
	return offsets
}()

type DiskType int

const (
	ThirtyFiveTrack DiskType = iota
	FortyTrack
)

func (dt DiskType) String() string {
	switch dt {
	case ThirtyFiveTrack:
		return "D64 35 Track"
	case FortyTrack:
		return "D64 40 Track (DolphinDOS)"
	}
	return "Unrecognized"
}

func (dt DiskType) TPD() int {
	if dt == FortyTrack {
		return TRACKS_40
	}
	return TRACKS_35
}

func (dt DiskType) Bytes() int {
	if dt == FortyTrack {
		return D64_DISK40_BYTES
	}
	return D64_DISK35_BYTES
}

// TrackSector names a sector on the disk. Tracks are 1-based, sectors
// 0-based. Track 0 is the chain terminator.
type TrackSector struct {
	Track  byte
	Sector byte
}

func TS(t, s int) TrackSector {
	return TrackSector{Track: byte(t), Sector: byte(s)}
}

// DSKWrapper owns the raw bytes of one disk image. All disk state lives in
// Data; the only side memory is the per-track interleave cursor, which is
// never persisted to the image.
type DSKWrapper struct {
	Data       []byte
	Type       DiskType
	Filename   string
	Interleave int

	lastSectorUsed [TRACKS_40]int
	searchOrder    []int
}

// NewBlankDisk returns a freshly formatted image of the given geometry.
func NewBlankDisk(dt DiskType, name string) *DSKWrapper {
	d := &DSKWrapper{
		Data:       make([]byte, dt.Bytes()),
		Type:       dt,
		Interleave: DEFAULT_INTERLEAVE,
	}
	d.searchOrder = trackSearchOrder(dt.TPD())
	d.FormatDisk(name)
	return d
}

// NewDSKWrapper loads a disk image from the host filesystem.
func NewDSKWrapper(filename string) (*DSKWrapper, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	return NewDSKWrapperBin(data, filename)
}

// NewDSKWrapperBin wraps raw image bytes. The byte count alone decides the
// geometry. A structurally unrecognizable directory gets reformatted rather
// than leaving the engine with a broken image.
func NewDSKWrapperBin(data []byte, filename string) (*DSKWrapper, error) {

	var dt DiskType
	switch len(data) {
	case D64_DISK35_BYTES:
		dt = ThirtyFiveTrack
	case D64_DISK40_BYTES:
		dt = FortyTrack
	default:
		return nil, ErrInvalidImage
	}

	d := &DSKWrapper{
		Data:       data,
		Type:       dt,
		Filename:   filename,
		Interleave: DEFAULT_INTERLEAVE,
	}
	d.resetCursor()
	d.searchOrder = trackSearchOrder(dt.TPD())

	if !d.validate() {
		loggy.Get(0).Errorf("Image %s fails structural validation, reformatting", filename)
		d.FormatDisk(DEFAULT_DISK_NAME)
	}

	return d, nil
}

// validate checks that the BAM and first directory sector look like a DOS
// directory: dir start must be (18,1) and the first directory sector must
// link onward within track 18 or terminate with (0, 0xFF).
func (d *DSKWrapper) validate() bool {
	bam := d.GetBAM()
	start := bam.DirStart()
	if start.Track != DIRECTORY_TRACK || start.Sector != DIRECTORY_SECTOR {
		return false
	}
	nt, ok := d.GetSectorByte(DIRECTORY_TRACK, DIRECTORY_SECTOR, 0)
	if !ok {
		return false
	}
	ns, _ := d.GetSectorByte(DIRECTORY_TRACK, DIRECTORY_SECTOR, 1)
	if nt == DIRECTORY_TRACK {
		return true
	}
	return nt == 0 && ns == 0xFF
}

func (d *DSKWrapper) TPD() int {
	return d.Type.TPD()
}

// SPT returns the sector count of a 1-based track.
func (d *DSKWrapper) SPT(track int) int {
	return SECTORS_PER_TRACK[track-1]
}

func (d *DSKWrapper) ValidTS(track, sector int) bool {
	return track >= 1 && track <= d.TPD() && sector >= 0 && sector < SECTORS_PER_TRACK[track-1]
}

// CalcOffset maps a track and sector to its byte index in Data.
func (d *DSKWrapper) CalcOffset(track, sector int) (int, error) {
	if !d.ValidTS(track, sector) {
		return -1, fmt.Errorf("%w: track %d sector %d", ErrInvalidGeometry, track, sector)
	}
	return TRACK_OFFSETS[track-1] + sector*STD_BYTES_PER_SECTOR, nil
}

// GetSector returns a copy of one 256 byte sector.
func (d *DSKWrapper) GetSector(track, sector int) ([]byte, error) {
	offset, err := d.CalcOffset(track, sector)
	if err != nil {
		return nil, err
	}
	out := make([]byte, STD_BYTES_PER_SECTOR)
	copy(out, d.Data[offset:offset+STD_BYTES_PER_SECTOR])
	return out, nil
}

// SetSector overwrites one sector. Short data is zero padded, long data is
// truncated to the sector size.
func (d *DSKWrapper) SetSector(track, sector int, data []byte) error {
	offset, err := d.CalcOffset(track, sector)
	if err != nil {
		return err
	}
	for i := 0; i < STD_BYTES_PER_SECTOR; i++ {
		if i < len(data) {
			d.Data[offset+i] = data[i]
		} else {
			d.Data[offset+i] = 0
		}
	}
	return nil
}

// GetSectorByte reads a single byte of a sector. The bool is false when the
// coordinates fall outside the geometry.
func (d *DSKWrapper) GetSectorByte(track, sector, offset int) (byte, bool) {
	base, err := d.CalcOffset(track, sector)
	if err != nil || offset < 0 || offset >= STD_BYTES_PER_SECTOR {
		return 0, false
	}
	return d.Data[base+offset], true
}

func (d *DSKWrapper) SetSectorByte(track, sector, offset int, value byte) bool {
	base, err := d.CalcOffset(track, sector)
	if err != nil || offset < 0 || offset >= STD_BYTES_PER_SECTOR {
		return false
	}
	d.Data[base+offset] = value
	return true
}

func (d *DSKWrapper) resetCursor() {
	for i := range d.lastSectorUsed {
		d.lastSectorUsed[i] = -1
	}
}

// FormatDisk fills the image with the format byte, initializes the BAM and
// lays down an empty directory.
func (d *DSKWrapper) FormatDisk(name string) {

	for i := range d.Data {
		d.Data[i] = FORMAT_FILL
	}
	d.resetCursor()

	bam := d.GetBAM()
	bam.Initialize(name, d.TPD())

	// empty first directory sector, terminal link
	offset, _ := d.CalcOffset(DIRECTORY_TRACK, DIRECTORY_SECTOR)
	for i := 0; i < STD_BYTES_PER_SECTOR; i++ {
		d.Data[offset+i] = 0
	}
	d.Data[offset+1] = 0xFF

	d.AllocateSector(DIRECTORY_TRACK, BAM_SECTOR)
	d.AllocateSector(DIRECTORY_TRACK, DIRECTORY_SECTOR)
}

// Save writes the image back to the host filesystem.
func (d *DSKWrapper) Save(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filename, err)
	}
	defer f.Close()
	if _, err := f.Write(d.Data); err != nil {
		return fmt.Errorf("writing %s: %w", filename, err)
	}
	return nil
}

// Dump prints a hex+ascii rendering of a byte slice, for the shell's
// sector dump command.
func Dump(bytes []byte) {
	perline := 0x10
	base := 0
	ascii := ""
	for i, v := range bytes {
		if i%perline == 0 {
			fmt.Println(" " + ascii)
			ascii = ""
			fmt.Printf("%.4X:", base+i)
		}
		if v >= 32 && v < 128 {
			ascii += string(rune(v))
		} else {
			ascii += "."
		}
		fmt.Printf(" %.2X", v)
	}
	fmt.Println(" " + ascii)
}
