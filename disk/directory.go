package disk

import (
	"fmt"
	"os"
	"sort"

	"github.com/paleotronic/d64m8/loggy"
)

type FileTypes byte

const (
	FileTypeDEL FileTypes = 0
	FileTypeSEQ FileTypes = 1
	FileTypePRG FileTypes = 2
	FileTypeUSR FileTypes = 3
	FileTypeREL FileTypes = 4
)

var D64TypeMap = map[FileTypes][2]string{
	FileTypeDEL: {"del", "Deleted"},
	FileTypeSEQ: {"seq", "Sequential File"},
	FileTypePRG: {"prg", "Program"},
	FileTypeUSR: {"usr", "User File"},
	FileTypeREL: {"rel", "Relative File"},
}

func (ft FileTypes) String() string {
	info, ok := D64TypeMap[ft]
	if ok {
		return info[1]
	}
	return "Unknown"
}

func (ft FileTypes) Ext() string {
	info, ok := D64TypeMap[ft]
	if ok {
		return info[0]
	}
	return ""
}

func FileTypeFromExt(ext string) FileTypes {
	for ft, info := range D64TypeMap {
		if ext == info[0] {
			return ft
		}
	}
	return FileTypePRG
}

// FileType packs the directory entry's flag byte: bit 7 closed (entry in
// use), bit 6 locked, bit 5 replace in progress, bits 0-3 the type code.
type FileType byte

func MakeFileType(closed, locked bool, kind FileTypes) FileType {
	ft := FileType(kind & 0x0F)
	if closed {
		ft |= 0x80
	}
	if locked {
		ft |= 0x40
	}
	return ft
}

func (ft FileType) Closed() bool {
	return ft&0x80 != 0
}

func (ft FileType) Locked() bool {
	return ft&0x40 != 0
}

func (ft FileType) Replace() bool {
	return ft&0x20 != 0
}

func (ft FileType) Kind() FileTypes {
	return FileTypes(ft & 0x0F)
}

func (ft FileType) WithLocked(locked bool) FileType {
	if locked {
		return ft | 0x40
	}
	return ft &^ 0x40
}

// TrimName cuts a padded name field at the first pad byte.
func TrimName(name []byte) string {
	out := ""
	for _, v := range name {
		if v == PAD_VALUE {
			break
		}
		out += string(rune(v))
	}
	return out
}

// PadName renders a name into a fixed width field, padded with 0xA0 and
// truncated when too long.
func PadName(name string, width int) []byte {
	out := make([]byte, width)
	for i := range out {
		out[i] = PAD_VALUE
	}
	for i, v := range []byte(name) {
		if i >= width {
			break
		}
		out[i] = v
	}
	return out
}

// Directory entry field offsets within the 30 byte slot.
const (
	ENTRY_OFFSET_TYPE    = 0
	ENTRY_OFFSET_START   = 1
	ENTRY_OFFSET_NAME    = 3
	ENTRY_OFFSET_SIDE    = 19
	ENTRY_OFFSET_RECLEN  = 21
	ENTRY_OFFSET_REPLACE = 26
	ENTRY_OFFSET_SIZE    = 28
	ENTRY_STRIDE         = 32
)

// FileDescriptor is a handle on one directory slot: a copy of the 30 byte
// entry plus the slot's location. Publish writes the copy back through the
// directory codec; the raw buffer is never handed out.
type FileDescriptor struct {
	Data                      []byte
	trackid, sectorid, slotid int
}

func (fd *FileDescriptor) SetData(data []byte, t, s, slot int) {
	fd.trackid = t
	fd.sectorid = s
	fd.slotid = slot
	if fd.Data == nil {
		fd.Data = make([]byte, DIR_ENTRY_SIZE)
	}
	copy(fd.Data, data)
}

// Slot returns the location of the directory slot backing this entry.
func (fd *FileDescriptor) Slot() (TrackSector, int) {
	return TS(fd.trackid, fd.sectorid), fd.slotid
}

func (fd *FileDescriptor) Publish(d *DSKWrapper) error {
	base, err := d.CalcOffset(fd.trackid, fd.sectorid)
	if err != nil {
		return err
	}
	copy(d.Data[base+2+ENTRY_STRIDE*fd.slotid:], fd.Data[:DIR_ENTRY_SIZE])
	return nil
}

func (fd *FileDescriptor) Type() FileType {
	return FileType(fd.Data[ENTRY_OFFSET_TYPE])
}

func (fd *FileDescriptor) SetType(ft FileType) {
	fd.Data[ENTRY_OFFSET_TYPE] = byte(ft)
}

func (fd *FileDescriptor) Start() TrackSector {
	return TrackSector{Track: fd.Data[ENTRY_OFFSET_START], Sector: fd.Data[ENTRY_OFFSET_START+1]}
}

func (fd *FileDescriptor) SetStart(ts TrackSector) {
	fd.Data[ENTRY_OFFSET_START] = ts.Track
	fd.Data[ENTRY_OFFSET_START+1] = ts.Sector
}

func (fd *FileDescriptor) Name() string {
	return TrimName(fd.Data[ENTRY_OFFSET_NAME : ENTRY_OFFSET_NAME+FILE_NAME_SIZE])
}

func (fd *FileDescriptor) NameBytes() []byte {
	return fd.Data[ENTRY_OFFSET_NAME : ENTRY_OFFSET_NAME+FILE_NAME_SIZE]
}

func (fd *FileDescriptor) SetName(name string) {
	copy(fd.Data[ENTRY_OFFSET_NAME:ENTRY_OFFSET_NAME+FILE_NAME_SIZE], PadName(name, FILE_NAME_SIZE))
}

// SideStart is the first side sector of a relative file, (0,0) otherwise.
func (fd *FileDescriptor) SideStart() TrackSector {
	return TrackSector{Track: fd.Data[ENTRY_OFFSET_SIDE], Sector: fd.Data[ENTRY_OFFSET_SIDE+1]}
}

func (fd *FileDescriptor) SetSideStart(ts TrackSector) {
	fd.Data[ENTRY_OFFSET_SIDE] = ts.Track
	fd.Data[ENTRY_OFFSET_SIDE+1] = ts.Sector
}

func (fd *FileDescriptor) RecordLength() int {
	return int(fd.Data[ENTRY_OFFSET_RECLEN])
}

func (fd *FileDescriptor) SetRecordLength(r int) {
	fd.Data[ENTRY_OFFSET_RECLEN] = byte(r)
}

func (fd *FileDescriptor) Replace() TrackSector {
	return TrackSector{Track: fd.Data[ENTRY_OFFSET_REPLACE], Sector: fd.Data[ENTRY_OFFSET_REPLACE+1]}
}

func (fd *FileDescriptor) SetReplace(ts TrackSector) {
	fd.Data[ENTRY_OFFSET_REPLACE] = ts.Track
	fd.Data[ENTRY_OFFSET_REPLACE+1] = ts.Sector
}

// SizeSectors is the file size in data sectors, low byte first. Side
// sectors of relative files are not counted.
func (fd *FileDescriptor) SizeSectors() int {
	return int(fd.Data[ENTRY_OFFSET_SIZE]) + 256*int(fd.Data[ENTRY_OFFSET_SIZE+1])
}

func (fd *FileDescriptor) SetSizeSectors(n int) {
	fd.Data[ENTRY_OFFSET_SIZE] = byte(n & 0xFF)
	fd.Data[ENTRY_OFFSET_SIZE+1] = byte(n >> 8)
}

// directorySectors returns the directory chain in order.
func (d *DSKWrapper) directorySectors() ([]TrackSector, error) {
	return d.ChainSectors(TS(DIRECTORY_TRACK, DIRECTORY_SECTOR))
}

// GetCatalog walks the directory chain and returns every live entry, i.e.
// every slot whose closed bit is set.
func (d *DSKWrapper) GetCatalog() ([]*FileDescriptor, error) {
	var files []*FileDescriptor
	sectors, err := d.directorySectors()
	if err != nil {
		return files, err
	}
	for _, ts := range sectors {
		base, err := d.CalcOffset(int(ts.Track), int(ts.Sector))
		if err != nil {
			return files, err
		}
		for slot := 0; slot < FILES_PER_SECTOR; slot++ {
			pos := base + 2 + ENTRY_STRIDE*slot
			fd := &FileDescriptor{}
			fd.SetData(d.Data[pos:pos+DIR_ENTRY_SIZE], int(ts.Track), int(ts.Sector), slot)
			if fd.Type().Closed() {
				files = append(files, fd)
			}
		}
	}
	return files, nil
}

// FindFile locates a directory entry by its trimmed name.
func (d *DSKWrapper) FindFile(name string) (*FileDescriptor, error) {
	files, err := d.GetCatalog()
	if err != nil {
		return nil, err
	}
	for _, fd := range files {
		if fd.Name() == name {
			return fd, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
}

// nextFreeCatalogEntry finds a slot whose closed bit is clear, growing the
// directory by one sector on track 18 when the chain is full.
func (d *DSKWrapper) nextFreeCatalogEntry() (*FileDescriptor, error) {
	sectors, err := d.directorySectors()
	if err != nil {
		return nil, err
	}
	for _, ts := range sectors {
		base, err := d.CalcOffset(int(ts.Track), int(ts.Sector))
		if err != nil {
			return nil, err
		}
		for slot := 0; slot < FILES_PER_SECTOR; slot++ {
			pos := base + 2 + ENTRY_STRIDE*slot
			fd := &FileDescriptor{}
			fd.SetData(d.Data[pos:pos+DIR_ENTRY_SIZE], int(ts.Track), int(ts.Sector), slot)
			if !fd.Type().Closed() {
				return fd, nil
			}
		}
	}

	// chain exhausted; hang a fresh zeroed sector off the terminal one
	last := sectors[len(sectors)-1]
	nt, ns, err := d.FindAndAllocateOnTrack(DIRECTORY_TRACK)
	if err != nil {
		return nil, ErrDiskFull
	}
	d.SetSectorByte(int(last.Track), int(last.Sector), 0, byte(nt))
	d.SetSectorByte(int(last.Track), int(last.Sector), 1, byte(ns))

	fresh := make([]byte, STD_BYTES_PER_SECTOR)
	fresh[1] = 0xFF
	d.SetSector(nt, ns, fresh)

	fd := &FileDescriptor{}
	fd.SetData(fresh[2:2+DIR_ENTRY_SIZE], nt, ns, 0)
	return fd, nil
}

// WriteFile stores a sequential style file (PRG, SEQ, USR or DEL) on the
// disk under a new directory entry. Relative files go through WriteRelFile.
func (d *DSKWrapper) WriteFile(name string, kind FileTypes, data []byte) error {
	if kind == FileTypeREL {
		return fmt.Errorf("%w: record length required", ErrInvalidRel)
	}
	return d.writeFile(name, kind, data, 0)
}

// WriteRelFile stores a relative file with the given record length,
// building its side sector group alongside the data chain.
func (d *DSKWrapper) WriteRelFile(name string, data []byte, recordLength int) error {
	if recordLength < MIN_RECORD_LENGTH || recordLength > MAX_RECORD_LENGTH {
		return fmt.Errorf("%w: record length %d", ErrInvalidRel, recordLength)
	}
	dataSectors := (len(data) + CHAIN_PAYLOAD - 1) / CHAIN_PAYLOAD
	if (dataSectors+SIDE_SECTOR_CHAIN-1)/SIDE_SECTOR_CHAIN > SIDE_SECTORS_MAX {
		return ErrRelTooLarge
	}
	return d.writeFile(name, FileTypeREL, data, recordLength)
}

func (d *DSKWrapper) writeFile(name string, kind FileTypes, data []byte, recordLength int) error {

	if name == "" || len(data) == 0 {
		return fmt.Errorf("%w: empty name or payload", ErrInvalidArgument)
	}

	if _, err := d.FindFile(name); err == nil {
		return fmt.Errorf("%w: %s", ErrFileExists, name)
	}

	needed := (len(data) + CHAIN_PAYLOAD - 1) / CHAIN_PAYLOAD
	if kind == FileTypeREL {
		needed += (needed + SIDE_SECTOR_CHAIN - 1) / SIDE_SECTOR_CHAIN
	}
	if d.FreeSectorCount() < needed {
		return fmt.Errorf("%w: unable to add %s", ErrDiskFull, name)
	}

	st, ss, err := d.FindAndAllocateFreeSector()
	if err != nil {
		return err
	}
	start := TS(st, ss)

	sectors, err := d.WriteChain(start, data)
	if err != nil {
		return err
	}

	side := TrackSector{}
	if kind == FileTypeREL {
		side, _, err = d.BuildSideSectors(sectors, recordLength)
		if err != nil {
			return err
		}
	}

	fd, err := d.nextFreeCatalogEntry()
	if err != nil {
		return err
	}

	fd.SetType(MakeFileType(true, false, kind))
	fd.SetStart(start)
	fd.SetName(name)
	fd.SetSideStart(side)
	fd.SetRecordLength(recordLength)
	for i := 22; i < 26; i++ {
		fd.Data[i] = 0
	}
	fd.SetReplace(start)
	fd.SetSizeSectors(len(sectors))

	return fd.Publish(d)
}

// ReadFile returns the decoded contents of a file.
func (d *DSKWrapper) ReadFile(name string) ([]byte, error) {
	fd, err := d.FindFile(name)
	if err != nil {
		return nil, err
	}
	return d.ReadChain(fd.Start())
}

// DeleteFile frees a file's data chain, and for relative files its side
// sector group, then clears the directory slot.
func (d *DSKWrapper) DeleteFile(name string) error {
	fd, err := d.FindFile(name)
	if err != nil {
		return err
	}

	if fd.Type().Kind() == FileTypeREL && fd.SideStart().Track != 0 {
		group, err := d.SideSectorList(fd.SideStart())
		if err != nil {
			return err
		}
		for _, ts := range group {
			d.FreeSector(int(ts.Track), int(ts.Sector))
		}
	}

	sectors, err := d.ChainSectors(fd.Start())
	if err != nil {
		return err
	}
	for _, ts := range sectors {
		d.FreeSector(int(ts.Track), int(ts.Sector))
	}

	for i := range fd.Data {
		fd.Data[i] = 0
	}
	return fd.Publish(d)
}

// RenameFile renames a directory entry in place.
func (d *DSKWrapper) RenameFile(oldname, newname string) error {
	if newname == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidArgument)
	}
	if _, err := d.FindFile(newname); err == nil {
		return fmt.Errorf("%w: %s", ErrFileExists, newname)
	}
	fd, err := d.FindFile(oldname)
	if err != nil {
		return err
	}
	fd.SetName(newname)
	return fd.Publish(d)
}

// SetLocked toggles the lock bit of a file's type byte.
func (d *DSKWrapper) SetLocked(name string, lock bool) error {
	fd, err := d.FindFile(name)
	if err != nil {
		return err
	}
	fd.SetType(fd.Type().WithLocked(lock))
	return fd.Publish(d)
}

// DiskName returns the disk name from the BAM header.
func (d *DSKWrapper) DiskName() string {
	return d.GetBAM().DiskName()
}

// RenameDisk rewrites the disk name in the BAM header.
func (d *DSKWrapper) RenameDisk(name string) {
	d.GetBAM().SetDiskName(name)
}

// clearSlots zeroes every directory slot of a sector, leaving the two link
// bytes alone.
func (d *DSKWrapper) clearSlots(ts TrackSector) error {
	base, err := d.CalcOffset(int(ts.Track), int(ts.Sector))
	if err != nil {
		return err
	}
	for i := base + 2; i < base+STD_BYTES_PER_SECTOR; i++ {
		d.Data[i] = 0
	}
	return nil
}

func (d *DSKWrapper) writeSlot(ts TrackSector, slot int, entry []byte) error {
	base, err := d.CalcOffset(int(ts.Track), int(ts.Sector))
	if err != nil {
		return err
	}
	copy(d.Data[base+2+ENTRY_STRIDE*slot:], entry[:DIR_ENTRY_SIZE])
	return nil
}

// CompactDirectory packs all live entries to the front of the chain,
// eight per sector from (18,1), and frees any directory sectors left over.
func (d *DSKWrapper) CompactDirectory() (bool, error) {

	files, err := d.GetCatalog()
	if err != nil {
		return false, err
	}

	sectors, err := d.directorySectors()
	if err != nil {
		return false, err
	}

	needed := (len(files) + FILES_PER_SECTOR - 1) / FILES_PER_SECTOR
	if needed == 0 {
		// an empty directory still keeps (18,1)
		needed = 1
	}

	index := 0
	for i := 0; i < needed; i++ {
		ts := sectors[i]
		if err := d.clearSlots(ts); err != nil {
			return false, err
		}
		for slot := 0; slot < FILES_PER_SECTOR && index < len(files); slot++ {
			if err := d.writeSlot(ts, slot, files[index].Data); err != nil {
				return false, err
			}
			index++
		}
		if i < needed-1 {
			d.SetSectorByte(int(ts.Track), int(ts.Sector), 0, sectors[i+1].Track)
			d.SetSectorByte(int(ts.Track), int(ts.Sector), 1, sectors[i+1].Sector)
		} else {
			d.SetSectorByte(int(ts.Track), int(ts.Sector), 0, 0)
			d.SetSectorByte(int(ts.Track), int(ts.Sector), 1, 0xFF)
		}
	}

	freed := false
	for _, ts := range sectors[needed:] {
		if d.FreeSector(int(ts.Track), int(ts.Sector)) {
			freed = true
		}
	}
	if freed {
		loggy.Get(0).Logf("Freed unused directory sectors and updated BAM")
	}

	return true, nil
}

// sameOrder compares two entry lists byte for byte.
func sameOrder(a, b []*FileDescriptor) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		for j := 0; j < DIR_ENTRY_SIZE; j++ {
			if a[i].Data[j] != b[i].Data[j] {
				return false
			}
		}
	}
	return true
}

// ReorderDirectory rewrites the directory chain with the given entries in
// order, eight per sector. The chain is never shrunk here; compaction is a
// separate operation. Returns false without touching the image when the
// order already matches.
func (d *DSKWrapper) ReorderDirectory(files []*FileDescriptor) (bool, error) {

	current, err := d.GetCatalog()
	if err != nil {
		return false, err
	}
	if sameOrder(current, files) {
		return false, nil
	}

	sectors, err := d.directorySectors()
	if err != nil {
		return false, err
	}

	index := 0
	for _, ts := range sectors {
		if err := d.clearSlots(ts); err != nil {
			return false, err
		}
		for slot := 0; slot < FILES_PER_SECTOR && index < len(files); slot++ {
			if err := d.writeSlot(ts, slot, files[index].Data); err != nil {
				return false, err
			}
			index++
		}
	}

	return true, nil
}

// ReorderDirectoryFunc stable sorts the directory with a caller supplied
// comparison.
func (d *DSKWrapper) ReorderDirectoryFunc(less func(a, b *FileDescriptor) bool) (bool, error) {
	files, err := d.GetCatalog()
	if err != nil {
		return false, err
	}
	if len(files) == 0 {
		return false, nil
	}
	sort.SliceStable(files, func(i, j int) bool {
		return less(files[i], files[j])
	})
	return d.ReorderDirectory(files)
}

// ReorderDirectoryByNames places the named files first, in the order given,
// followed by every other live entry in its existing order.
func (d *DSKWrapper) ReorderDirectoryByNames(order []string) (bool, error) {
	files, err := d.GetCatalog()
	if err != nil {
		return false, err
	}

	var reordered []*FileDescriptor
	remaining := append([]*FileDescriptor{}, files...)

	for _, name := range order {
		for i, fd := range remaining {
			if fd.Name() == name {
				reordered = append(reordered, fd)
				remaining = append(remaining[:i], remaining[i+1:]...)
				break
			}
		}
	}
	reordered = append(reordered, remaining...)

	return d.ReorderDirectory(reordered)
}

// MoveFileFirst swaps the named file into the first directory position.
func (d *DSKWrapper) MoveFileFirst(name string) (bool, error) {
	files, err := d.GetCatalog()
	if err != nil {
		return false, err
	}
	pos := -1
	for i, fd := range files {
		if fd.Name() == name {
			pos = i
			break
		}
	}
	if pos < 0 {
		return false, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	if pos == 0 {
		return false, nil
	}
	files[0], files[pos] = files[pos], files[0]
	return d.ReorderDirectory(files)
}

// MoveFile swaps the named file one position up or down the listing.
func (d *DSKWrapper) MoveFile(name string, up bool) (bool, error) {
	files, err := d.GetCatalog()
	if err != nil {
		return false, err
	}
	pos := -1
	for i, fd := range files {
		if fd.Name() == name {
			pos = i
			break
		}
	}
	if pos < 0 {
		return false, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	if (up && pos == 0) || (!up && pos == len(files)-1) {
		return false, nil
	}
	other := pos + 1
	if up {
		other = pos - 1
	}
	files[pos], files[other] = files[other], files[pos]
	return d.ReorderDirectory(files)
}

// ExtractFile decodes a file and writes it to the host filesystem as
// <name>.<type extension>. Types without an extraction mapping are refused.
func (d *DSKWrapper) ExtractFile(name string) (string, error) {
	fd, err := d.FindFile(name)
	if err != nil {
		return "", err
	}

	var ext string
	switch fd.Type().Kind() {
	case FileTypePRG, FileTypeSEQ, FileTypeUSR, FileTypeREL:
		ext = fd.Type().Kind().Ext()
	default:
		return "", fmt.Errorf("%w: unknown file type %d", ErrInvalidArgument, fd.Type().Kind())
	}

	data, err := d.ReadChain(fd.Start())
	if err != nil {
		return "", err
	}

	hostname := name + "." + ext
	if err := os.WriteFile(hostname, data, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", hostname, err)
	}
	return hostname, nil
}
