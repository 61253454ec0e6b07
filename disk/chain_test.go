package disk

import (
	"bytes"
	"testing"
)

func TestChainRoundTrip(t *testing.T) {

	dsk := NewBlankDisk(ThirtyFiveTrack, "CHAIN")

	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	tr, s, err := dsk.FindAndAllocateFreeSector()
	if err != nil {
		t.Fatal(err)
	}
	start := TS(tr, s)

	sectors, err := dsk.WriteChain(start, payload)
	if err != nil {
		t.Fatal(err)
	}
	if want := (len(payload) + CHAIN_PAYLOAD - 1) / CHAIN_PAYLOAD; len(sectors) != want {
		t.Errorf("Chain used %d sectors, want %d", len(sectors), want)
	}
	if sectors[0] != start {
		t.Error("Chain does not begin at the start sector")
	}

	back, err := dsk.ReadChain(start)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back, payload) {
		t.Error("Payload changed across write/read")
	}

	listed, err := dsk.ChainSectors(start)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != len(sectors) {
		t.Errorf("ChainSectors found %d sectors, write reported %d", len(listed), len(sectors))
	}
	for i := range listed {
		if listed[i] != sectors[i] {
			t.Fatalf("Chain order differs at %d: %v vs %v", i, listed[i], sectors[i])
		}
	}
}

func TestChainExactSectorBoundary(t *testing.T) {

	dsk := NewBlankDisk(ThirtyFiveTrack, "BOUNDARY")

	// 254 bytes exactly fill one sector, terminal header (0, 255)
	payload := make([]byte, CHAIN_PAYLOAD)
	tr, s, _ := dsk.FindAndAllocateFreeSector()
	sectors, err := dsk.WriteChain(TS(tr, s), payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(sectors) != 1 {
		t.Fatalf("254 byte file used %d sectors", len(sectors))
	}
	nt, _ := dsk.GetSectorByte(tr, s, 0)
	ns, _ := dsk.GetSectorByte(tr, s, 1)
	if nt != 0 || ns != 255 {
		t.Errorf("Terminal header (%d,%d), want (0,255)", nt, ns)
	}

	// one byte more spills into a second sector with header (0, 2)
	payload = make([]byte, CHAIN_PAYLOAD+1)
	tr2, s2, _ := dsk.FindAndAllocateFreeSector()
	sectors, err = dsk.WriteChain(TS(tr2, s2), payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(sectors) != 2 {
		t.Fatalf("255 byte file used %d sectors", len(sectors))
	}
	last := sectors[1]
	nt, _ = dsk.GetSectorByte(int(last.Track), int(last.Sector), 0)
	ns, _ = dsk.GetSectorByte(int(last.Track), int(last.Sector), 1)
	if nt != 0 || ns != 2 {
		t.Errorf("Terminal header (%d,%d), want (0,2)", nt, ns)
	}

	data, err := dsk.ReadChain(TS(tr2, s2))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != CHAIN_PAYLOAD+1 {
		t.Errorf("Read back %d bytes", len(data))
	}
}

func TestChainZeroPadsTail(t *testing.T) {

	dsk := NewBlankDisk(ThirtyFiveTrack, "PADDING")

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	tr, s, _ := dsk.FindAndAllocateFreeSector()
	if _, err := dsk.WriteChain(TS(tr, s), payload); err != nil {
		t.Fatal(err)
	}

	for i := 2 + len(payload); i < STD_BYTES_PER_SECTOR; i++ {
		v, _ := dsk.GetSectorByte(tr, s, i)
		if v != 0 {
			t.Fatalf("Unused tail byte %d is %#x", i, v)
		}
	}
}

func TestChainCycleDetected(t *testing.T) {

	dsk := NewBlankDisk(ThirtyFiveTrack, "CYCLE")

	// hand build two sectors linking to each other
	dsk.AllocateSector(1, 0)
	dsk.AllocateSector(1, 10)
	dsk.SetSectorByte(1, 0, 0, 1)
	dsk.SetSectorByte(1, 0, 1, 10)
	dsk.SetSectorByte(1, 10, 0, 1)
	dsk.SetSectorByte(1, 10, 1, 0)

	_, err := dsk.ChainSectors(TS(1, 0))
	if err == nil {
		t.Error("Circular chain not detected")
	}
}

func TestChainBadLinkDetected(t *testing.T) {

	dsk := NewBlankDisk(ThirtyFiveTrack, "BADLINK")

	dsk.AllocateSector(1, 0)
	dsk.SetSectorByte(1, 0, 0, 36) // off the end of a 35 track disk
	dsk.SetSectorByte(1, 0, 1, 0)

	_, err := dsk.ChainSectors(TS(1, 0))
	if err == nil {
		t.Error("Link outside the geometry not detected")
	}
}

func TestChainIterator(t *testing.T) {

	dsk := NewBlankDisk(ThirtyFiveTrack, "ITER")

	payload := make([]byte, 3*CHAIN_PAYLOAD)
	tr, s, _ := dsk.FindAndAllocateFreeSector()
	sectors, err := dsk.WriteChain(TS(tr, s), payload)
	if err != nil {
		t.Fatal(err)
	}

	it := dsk.Chain(TS(tr, s))
	n := 0
	for ts, ok := it.Next(); ok; ts, ok = it.Next() {
		if ts != sectors[n] {
			t.Fatalf("Iterator out of order at %d", n)
		}
		n++
	}
	if err := it.Err(); err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("Iterator visited %d sectors", n)
	}
}
