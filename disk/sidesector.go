package disk

import "fmt"

// Relative files index their data sectors through a group of side sectors.
// Each side sector lists every member of the group and up to 120 of the
// file's data sectors; six side sectors bound a REL file at 720 data
// sectors.

const SIDE_SECTORS_MAX = 6
const SIDE_SECTOR_CHAIN = 120
const SIDE_SECTOR_OFFSET_BLOCK = 2
const SIDE_SECTOR_OFFSET_RECLEN = 3
const SIDE_SECTOR_OFFSET_GROUP = 4
const SIDE_SECTOR_OFFSET_CHAIN = 16

const MIN_RECORD_LENGTH = 1
const MAX_RECORD_LENGTH = 254

// SideSector is an accessor over one side sector. It carries a copy of the
// sector plus its location; Publish writes the copy back to the image.
type SideSector struct {
	Data [STD_BYTES_PER_SECTOR]byte
	t, s int
}

func (ss *SideSector) SetData(data []byte, t, s int) {
	ss.t, ss.s = t, s
	copy(ss.Data[:], data)
}

func (ss *SideSector) Publish(d *DSKWrapper) error {
	return d.SetSector(ss.t, ss.s, ss.Data[:])
}

func (ss *SideSector) Next() TrackSector {
	return TrackSector{Track: ss.Data[0], Sector: ss.Data[1]}
}

func (ss *SideSector) SetNext(next TrackSector) {
	ss.Data[0] = next.Track
	ss.Data[1] = next.Sector
}

func (ss *SideSector) Block() int {
	return int(ss.Data[SIDE_SECTOR_OFFSET_BLOCK])
}

func (ss *SideSector) SetBlock(b int) {
	ss.Data[SIDE_SECTOR_OFFSET_BLOCK] = byte(b)
}

func (ss *SideSector) RecordLength() int {
	return int(ss.Data[SIDE_SECTOR_OFFSET_RECLEN])
}

func (ss *SideSector) SetRecordLength(r int) {
	ss.Data[SIDE_SECTOR_OFFSET_RECLEN] = byte(r)
}

// Group returns the table of side sectors shared by every member of the
// group, stopping at the first empty slot.
func (ss *SideSector) Group() []TrackSector {
	var out []TrackSector
	for i := 0; i < SIDE_SECTORS_MAX; i++ {
		t := ss.Data[SIDE_SECTOR_OFFSET_GROUP+2*i]
		s := ss.Data[SIDE_SECTOR_OFFSET_GROUP+2*i+1]
		if t == 0 {
			break
		}
		out = append(out, TrackSector{Track: t, Sector: s})
	}
	return out
}

func (ss *SideSector) SetGroup(group []TrackSector) {
	for i := 0; i < SIDE_SECTORS_MAX; i++ {
		if i < len(group) {
			ss.Data[SIDE_SECTOR_OFFSET_GROUP+2*i] = group[i].Track
			ss.Data[SIDE_SECTOR_OFFSET_GROUP+2*i+1] = group[i].Sector
		} else {
			ss.Data[SIDE_SECTOR_OFFSET_GROUP+2*i] = 0
			ss.Data[SIDE_SECTOR_OFFSET_GROUP+2*i+1] = 0
		}
	}
}

// ChainEntries returns this side sector's slice of the file's data sector
// order, stopping at the track 0 sentinel.
func (ss *SideSector) ChainEntries() []TrackSector {
	var out []TrackSector
	for i := 0; i < SIDE_SECTOR_CHAIN; i++ {
		t := ss.Data[SIDE_SECTOR_OFFSET_CHAIN+2*i]
		s := ss.Data[SIDE_SECTOR_OFFSET_CHAIN+2*i+1]
		if t == 0 {
			break
		}
		out = append(out, TrackSector{Track: t, Sector: s})
	}
	return out
}

func (ss *SideSector) setChainEntry(i int, ts TrackSector) {
	ss.Data[SIDE_SECTOR_OFFSET_CHAIN+2*i] = ts.Track
	ss.Data[SIDE_SECTOR_OFFSET_CHAIN+2*i+1] = ts.Sector
}

// GetSideSector reads a side sector from the image.
func (d *DSKWrapper) GetSideSector(ts TrackSector) (*SideSector, error) {
	data, err := d.GetSector(int(ts.Track), int(ts.Sector))
	if err != nil {
		return nil, err
	}
	ss := &SideSector{}
	ss.SetData(data, int(ts.Track), int(ts.Sector))
	return ss, nil
}

// BuildSideSectors allocates and writes the side sector group indexing an
// ordered data sector list. It returns the first side sector and the full
// group. More than six side sectors' worth of data is refused.
func (d *DSKWrapper) BuildSideSectors(dataSectors []TrackSector, recordLength int) (TrackSector, []TrackSector, error) {

	if recordLength < MIN_RECORD_LENGTH || recordLength > MAX_RECORD_LENGTH {
		return TrackSector{}, nil, fmt.Errorf("%w: record length %d", ErrInvalidRel, recordLength)
	}
	if len(dataSectors) == 0 {
		return TrackSector{}, nil, ErrInvalidRel
	}

	groups := (len(dataSectors) + SIDE_SECTOR_CHAIN - 1) / SIDE_SECTOR_CHAIN
	if groups > SIDE_SECTORS_MAX {
		return TrackSector{}, nil, ErrRelTooLarge
	}

	group := make([]TrackSector, 0, groups)
	for i := 0; i < groups; i++ {
		t, s, err := d.FindAndAllocateFreeSector()
		if err != nil {
			return TrackSector{}, nil, err
		}
		group = append(group, TS(t, s))
	}

	for i, loc := range group {
		ss := &SideSector{}
		ss.SetData(make([]byte, STD_BYTES_PER_SECTOR), int(loc.Track), int(loc.Sector))

		chunk := dataSectors[i*SIDE_SECTOR_CHAIN:]
		if len(chunk) > SIDE_SECTOR_CHAIN {
			chunk = chunk[:SIDE_SECTOR_CHAIN]
		}

		if i < len(group)-1 {
			ss.SetNext(group[i+1])
		} else {
			// terminal side sector: point one past the last chain entry
			ss.SetNext(TrackSector{Track: 0, Sector: byte(SIDE_SECTOR_OFFSET_CHAIN + 2*len(chunk))})
		}
		ss.SetBlock(i)
		ss.SetRecordLength(recordLength)
		ss.SetGroup(group)
		for j, ts := range chunk {
			ss.setChainEntry(j, ts)
		}

		if err := ss.Publish(d); err != nil {
			return TrackSector{}, nil, err
		}
	}

	return group[0], group, nil
}

// SideSectorList walks the side sector chain from its start and returns the
// group members in order.
func (d *DSKWrapper) SideSectorList(start TrackSector) ([]TrackSector, error) {
	var out []TrackSector
	cur := start
	for cur.Track != 0 {
		if !d.ValidTS(int(cur.Track), int(cur.Sector)) {
			return out, fmt.Errorf("%w: side sector at track %d sector %d", ErrInvalidRel, cur.Track, cur.Sector)
		}
		if len(out) >= SIDE_SECTORS_MAX {
			return out, fmt.Errorf("%w: side sector chain too long", ErrInvalidRel)
		}
		out = append(out, cur)
		ss, err := d.GetSideSector(cur)
		if err != nil {
			return out, err
		}
		cur = ss.Next()
	}
	return out, nil
}

// ParseSideSectors walks the group and concatenates every member's chain
// entries, recovering the ordered data sector list of the file.
func (d *DSKWrapper) ParseSideSectors(start TrackSector) ([]TrackSector, error) {
	members, err := d.SideSectorList(start)
	if err != nil {
		return nil, err
	}
	var out []TrackSector
	for _, loc := range members {
		ss, err := d.GetSideSector(loc)
		if err != nil {
			return nil, err
		}
		out = append(out, ss.ChainEntries()...)
	}
	return out, nil
}
