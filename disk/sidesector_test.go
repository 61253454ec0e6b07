package disk

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func relPayload(records, recordLength int) []byte {
	out := make([]byte, records*recordLength)
	for i := range out {
		out[i] = byte(i % 253)
	}
	return out
}

func TestRelRoundTrip(t *testing.T) {

	dsk := NewBlankDisk(ThirtyFiveTrack, "RELDISK")

	payload := relPayload(200, 64)
	if err := dsk.WriteRelFile("RELFILE", payload, 64); err != nil {
		t.Fatal(err)
	}

	data, err := dsk.ReadFile("RELFILE")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, payload) {
		t.Error("REL read back differs")
	}

	fd, err := dsk.FindFile("RELFILE")
	if err != nil {
		t.Fatal(err)
	}
	if fd.Type().Kind() != FileTypeREL {
		t.Errorf("Kind %v", fd.Type().Kind())
	}
	if fd.RecordLength() != 64 {
		t.Errorf("Record length %d", fd.RecordLength())
	}
	if fd.SideStart().Track == 0 {
		t.Fatal("No side sector recorded")
	}

	// the side sectors index exactly the data chain, in order
	chain, err := dsk.ChainSectors(fd.Start())
	if err != nil {
		t.Fatal(err)
	}
	indexed, err := dsk.ParseSideSectors(fd.SideStart())
	if err != nil {
		t.Fatal(err)
	}
	if len(indexed) != len(chain) {
		t.Fatalf("Side sectors index %d sectors, chain has %d", len(indexed), len(chain))
	}
	for i := range chain {
		if indexed[i] != chain[i] {
			t.Fatalf("Index order differs at %d", i)
		}
	}

	// size counts data sectors only, not the side sectors
	if fd.SizeSectors() != len(chain) {
		t.Errorf("Size %d sectors, chain has %d", fd.SizeSectors(), len(chain))
	}

	if !dsk.VerifyBAMIntegrity(false, io.Discard) {
		t.Error("BAM verify fails with a REL file present")
	}
}

func TestRelSideSectorLayout(t *testing.T) {

	dsk := NewBlankDisk(ThirtyFiveTrack, "RELLAYOUT")

	// 121 data sectors force a second side sector
	payload := make([]byte, 121*CHAIN_PAYLOAD)
	if err := dsk.WriteRelFile("TWOSIDE", payload, 127); err != nil {
		t.Fatal(err)
	}

	fd, _ := dsk.FindFile("TWOSIDE")
	group, err := dsk.SideSectorList(fd.SideStart())
	if err != nil {
		t.Fatal(err)
	}
	if len(group) != 2 {
		t.Fatalf("Group has %d side sectors, want 2", len(group))
	}

	for i, loc := range group {
		ss, err := dsk.GetSideSector(loc)
		if err != nil {
			t.Fatal(err)
		}
		if ss.Block() != i {
			t.Errorf("Side sector %d has block number %d", i, ss.Block())
		}
		if ss.RecordLength() != 127 {
			t.Errorf("Side sector %d record length %d", i, ss.RecordLength())
		}
		// every member carries the full group table
		listed := ss.Group()
		if len(listed) != len(group) {
			t.Fatalf("Side sector %d lists %d group members", i, len(listed))
		}
		for j := range group {
			if listed[j] != group[j] {
				t.Fatalf("Side sector %d group table differs at %d", i, j)
			}
		}
	}

	// first side sector fills all 120 slots and links onward
	first, _ := dsk.GetSideSector(group[0])
	if len(first.ChainEntries()) != SIDE_SECTOR_CHAIN {
		t.Errorf("First side sector indexes %d sectors", len(first.ChainEntries()))
	}
	if first.Next() != group[1] {
		t.Error("First side sector does not link to the second")
	}

	// terminal side sector holds one entry and points one past it
	last, _ := dsk.GetSideSector(group[1])
	if len(last.ChainEntries()) != 1 {
		t.Errorf("Last side sector indexes %d sectors", len(last.ChainEntries()))
	}
	if next := last.Next(); next.Track != 0 || int(next.Sector) != SIDE_SECTOR_OFFSET_CHAIN+2 {
		t.Errorf("Terminal link (%d,%d)", next.Track, next.Sector)
	}

	if !dsk.VerifyBAMIntegrity(false, io.Discard) {
		t.Error("BAM verify fails with two side sectors")
	}
}

func TestRelTooLarge(t *testing.T) {

	dsk := NewBlankDisk(ThirtyFiveTrack, "RELBIG")

	// 721 data sectors would need a seventh side sector
	payload := make([]byte, 720*CHAIN_PAYLOAD+1)
	if err := dsk.WriteRelFile("HUGE", payload, 254); !errors.Is(err, ErrRelTooLarge) {
		t.Errorf("Oversized REL: %v", err)
	}

	// nothing was allocated along the way
	if dsk.FreeSectorCount() != 664 {
		t.Errorf("Free count %d after refused add", dsk.FreeSectorCount())
	}
}

func TestRelRecordLengthBounds(t *testing.T) {

	dsk := NewBlankDisk(ThirtyFiveTrack, "RELREC")

	if err := dsk.WriteRelFile("BAD", relPayload(4, 10), 0); !errors.Is(err, ErrInvalidRel) {
		t.Errorf("Record length 0: %v", err)
	}
	if err := dsk.WriteRelFile("BAD", relPayload(4, 10), 255); !errors.Is(err, ErrInvalidRel) {
		t.Errorf("Record length 255: %v", err)
	}
	if err := dsk.WriteRelFile("OK", relPayload(4, 254), 254); err != nil {
		t.Errorf("Record length 254 refused: %v", err)
	}
}

func TestRelDeleteFreesSideSectors(t *testing.T) {

	dsk := NewBlankDisk(ThirtyFiveTrack, "RELDEL")
	before := dsk.FreeSectorCount()

	if err := dsk.WriteRelFile("RELFILE", relPayload(200, 64), 64); err != nil {
		t.Fatal(err)
	}
	if dsk.FreeSectorCount() == before {
		t.Fatal("Nothing allocated")
	}

	if err := dsk.DeleteFile("RELFILE"); err != nil {
		t.Fatal(err)
	}

	if got := dsk.FreeSectorCount(); got != before {
		t.Errorf("Free count %d after delete, want %d", got, before)
	}
	if !dsk.VerifyBAMIntegrity(false, io.Discard) {
		t.Error("BAM verify fails after REL delete")
	}
}

func TestWriteFileRejectsRel(t *testing.T) {

	dsk := NewBlankDisk(ThirtyFiveTrack, "RELARG")

	if err := dsk.WriteFile("RELFILE", FileTypeREL, relPayload(4, 10)); !errors.Is(err, ErrInvalidRel) {
		t.Errorf("WriteFile with REL type: %v", err)
	}
}

func TestBuildSideSectorsValidation(t *testing.T) {

	dsk := NewBlankDisk(ThirtyFiveTrack, "SSVALID")

	if _, _, err := dsk.BuildSideSectors(nil, 64); !errors.Is(err, ErrInvalidRel) {
		t.Errorf("Empty data list: %v", err)
	}
	if _, _, err := dsk.BuildSideSectors([]TrackSector{TS(1, 0)}, 0); !errors.Is(err, ErrInvalidRel) {
		t.Errorf("Bad record length: %v", err)
	}

	tooMany := make([]TrackSector, SIDE_SECTORS_MAX*SIDE_SECTOR_CHAIN+1)
	for i := range tooMany {
		tooMany[i] = TS(1, 0)
	}
	if _, _, err := dsk.BuildSideSectors(tooMany, 64); !errors.Is(err, ErrRelTooLarge) {
		t.Errorf("Seven side sectors: %v", err)
	}
}
