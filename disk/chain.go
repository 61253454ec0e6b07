package disk

import "fmt"

// Files are stored as singly linked chains of sectors. The first two bytes
// of every sector link to the next (track, sector); a zero track terminates
// the chain, and the sector byte then holds the offset of the last used
// payload byte, i.e. used bytes plus one.

const CHAIN_PAYLOAD = STD_BYTES_PER_SECTOR - 2

// ChainIter walks a sector chain lazily.
type ChainIter struct {
	dsk  *DSKWrapper
	cur  TrackSector
	seen map[TrackSector]bool
	err  error
}

// Chain returns an iterator positioned at the start of a chain.
func (d *DSKWrapper) Chain(start TrackSector) *ChainIter {
	return &ChainIter{
		dsk:  d,
		cur:  start,
		seen: make(map[TrackSector]bool),
	}
}

// Next yields the next sector in the chain, false when the chain is done.
// A link to an invalid sector or a loop back onto a visited sector stops
// the walk and is reported by Err.
func (ci *ChainIter) Next() (TrackSector, bool) {
	if ci.cur.Track == 0 || ci.err != nil {
		return TrackSector{}, false
	}
	if !ci.dsk.ValidTS(int(ci.cur.Track), int(ci.cur.Sector)) {
		ci.err = fmt.Errorf("%w: chain links to track %d sector %d", ErrInvalidGeometry, ci.cur.Track, ci.cur.Sector)
		return TrackSector{}, false
	}
	if ci.seen[ci.cur] {
		ci.err = fmt.Errorf("circular sector chain at track %d sector %d", ci.cur.Track, ci.cur.Sector)
		return TrackSector{}, false
	}
	ci.seen[ci.cur] = true

	out := ci.cur
	nt, _ := ci.dsk.GetSectorByte(int(ci.cur.Track), int(ci.cur.Sector), 0)
	ns, _ := ci.dsk.GetSectorByte(int(ci.cur.Track), int(ci.cur.Sector), 1)
	ci.cur = TrackSector{Track: nt, Sector: ns}
	return out, true
}

func (ci *ChainIter) Err() error {
	return ci.err
}

// ChainSectors materializes the full list of sectors in a chain.
func (d *DSKWrapper) ChainSectors(start TrackSector) ([]TrackSector, error) {
	var out []TrackSector
	it := d.Chain(start)
	for ts, ok := it.Next(); ok; ts, ok = it.Next() {
		out = append(out, ts)
	}
	return out, it.Err()
}

// ReadChain follows a chain from its start and returns the decoded payload.
// Full sectors contribute 254 bytes; the terminal sector contributes its
// used-byte count.
func (d *DSKWrapper) ReadChain(start TrackSector) ([]byte, error) {
	var out []byte
	it := d.Chain(start)
	for ts, ok := it.Next(); ok; ts, ok = it.Next() {
		offset, err := d.CalcOffset(int(ts.Track), int(ts.Sector))
		if err != nil {
			return nil, err
		}
		nt := d.Data[offset]
		ns := d.Data[offset+1]
		if nt != 0 {
			out = append(out, d.Data[offset+2:offset+STD_BYTES_PER_SECTOR]...)
		} else {
			used := int(ns) - 1
			if used < 0 {
				used = 0
			}
			if used > CHAIN_PAYLOAD {
				used = CHAIN_PAYLOAD
			}
			out = append(out, d.Data[offset+2:offset+2+used]...)
		}
	}
	return out, it.Err()
}

// WriteChain streams a payload into a chain beginning at an already
// allocated start sector, allocating further sectors as needed. It returns
// the ordered sectors written, which the side sector builder indexes for
// relative files.
//
// A mid-write disk full error leaves the sectors written so far allocated;
// the operation is not transactional.
func (d *DSKWrapper) WriteChain(start TrackSector, payload []byte) ([]TrackSector, error) {

	sectors := []TrackSector{start}
	cur := start
	offset := 0

	for {
		base, err := d.CalcOffset(int(cur.Track), int(cur.Sector))
		if err != nil {
			return sectors, err
		}

		remain := len(payload) - offset
		if remain > CHAIN_PAYLOAD {
			nt, ns, err := d.FindAndAllocateFreeSector()
			if err != nil {
				return sectors, err
			}
			d.Data[base] = byte(nt)
			d.Data[base+1] = byte(ns)
			copy(d.Data[base+2:base+STD_BYTES_PER_SECTOR], payload[offset:offset+CHAIN_PAYLOAD])
			offset += CHAIN_PAYLOAD
			cur = TS(nt, ns)
			sectors = append(sectors, cur)
			continue
		}

		// terminal sector: link header holds the used byte count plus one
		d.Data[base] = 0
		d.Data[base+1] = byte(remain + 1)
		copy(d.Data[base+2:base+2+remain], payload[offset:])
		for i := base + 2 + remain; i < base+STD_BYTES_PER_SECTOR; i++ {
			d.Data[i] = 0
		}
		return sectors, nil
	}
}
