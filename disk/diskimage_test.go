package disk

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/paleotronic/d64m8/loggy"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "d64m8-logs")
	if err == nil {
		loggy.LogFolder = dir + "/"
	}
	code := m.Run()
	if err == nil {
		os.RemoveAll(dir)
	}
	os.Exit(code)
}

func TestCreateDisk(t *testing.T) {

	dsk := NewBlankDisk(ThirtyFiveTrack, "NEW DISK")

	if dsk.DiskName() != "NEW DISK" {
		t.Errorf("Wrong disk name, got %q", dsk.DiskName())
	}
	if len(dsk.Data) != D64_DISK35_BYTES {
		t.Errorf("Wrong image size, got %d", len(dsk.Data))
	}

	files, err := dsk.GetCatalog()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Errorf("Expected empty directory, got %d entries", len(files))
	}

	if !dsk.VerifyBAMIntegrity(false, io.Discard) {
		t.Error("Fresh disk fails BAM verify")
	}

	if dsk.FreeSectorCount() != 664 {
		t.Errorf("Expected 664 free sectors, got %d", dsk.FreeSectorCount())
	}
}

func TestCreateDisk40(t *testing.T) {

	dsk := NewBlankDisk(FortyTrack, "NEW DISK")

	if dsk.DiskName() != "NEW DISK" {
		t.Errorf("Wrong disk name, got %q", dsk.DiskName())
	}
	if len(dsk.Data) != D64_DISK40_BYTES {
		t.Errorf("Wrong image size, got %d", len(dsk.Data))
	}

	if !dsk.VerifyBAMIntegrity(false, io.Discard) {
		t.Error("Fresh disk fails BAM verify")
	}

	if dsk.FreeSectorCount() != 749 {
		t.Errorf("Expected 749 free sectors, got %d", dsk.FreeSectorCount())
	}
}

func TestFormatDeterministic(t *testing.T) {

	a := NewBlankDisk(ThirtyFiveTrack, "SOMEDISK")
	b := NewBlankDisk(ThirtyFiveTrack, "SOMEDISK")

	if !bytes.Equal(a.Data, b.Data) {
		t.Error("Two freshly formatted disks differ")
	}

	a.FormatDisk("SOMEDISK")
	if !bytes.Equal(a.Data, b.Data) {
		t.Error("Reformatting changed the image")
	}
}

func TestBAMHeaderFields(t *testing.T) {

	dsk := NewBlankDisk(ThirtyFiveTrack, "HEADER")
	bam := dsk.GetBAM()

	if start := bam.DirStart(); start.Track != DIRECTORY_TRACK || start.Sector != DIRECTORY_SECTOR {
		t.Errorf("Bad directory start %v", start)
	}
	if bam.DOSVersion() != DOS_VERSION {
		t.Errorf("Bad DOS version %c", bam.DOSVersion())
	}
	if id := bam.DiskID(); id[0] != PAD_VALUE || id[1] != PAD_VALUE {
		t.Errorf("Bad disk id % X", id)
	}

	offset, _ := dsk.CalcOffset(DIRECTORY_TRACK, BAM_SECTOR)
	if dsk.Data[offset+0xA5] != DOS_TYPE || dsk.Data[offset+0xA6] != DOS_VERSION {
		t.Error("DOS type field not 2A")
	}
}

func TestDetectBySize(t *testing.T) {

	if _, err := NewDSKWrapperBin(make([]byte, 1000), "small"); err == nil {
		t.Error("Undersized image accepted")
	}

	src := NewBlankDisk(ThirtyFiveTrack, "DETECT")
	dsk, err := NewDSKWrapperBin(src.Data, "ok")
	if err != nil {
		t.Fatal(err)
	}
	if dsk.Type != ThirtyFiveTrack {
		t.Errorf("Wrong type %v", dsk.Type)
	}

	src40 := NewBlankDisk(FortyTrack, "DETECT")
	dsk40, err := NewDSKWrapperBin(src40.Data, "ok40")
	if err != nil {
		t.Fatal(err)
	}
	if dsk40.Type != FortyTrack {
		t.Errorf("Wrong type %v", dsk40.Type)
	}
}

func TestLoadValidateFallback(t *testing.T) {

	garbage := make([]byte, D64_DISK35_BYTES)
	for i := range garbage {
		garbage[i] = 0x55
	}

	dsk, err := NewDSKWrapperBin(garbage, "garbage")
	if err != nil {
		t.Fatal(err)
	}

	if dsk.DiskName() != DEFAULT_DISK_NAME {
		t.Errorf("Expected reformat to %q, got %q", DEFAULT_DISK_NAME, dsk.DiskName())
	}
	if !dsk.VerifyBAMIntegrity(false, io.Discard) {
		t.Error("Reformatted image fails BAM verify")
	}
}

func TestCalcOffsetBounds(t *testing.T) {

	dsk := NewBlankDisk(ThirtyFiveTrack, "BOUNDS")

	cases := [][2]int{
		{0, 0}, {36, 0}, {1, 21}, {18, 19}, {35, 17}, {-1, 0}, {1, -1},
	}
	for _, c := range cases {
		if _, err := dsk.CalcOffset(c[0], c[1]); err == nil {
			t.Errorf("Track %d sector %d accepted", c[0], c[1])
		}
		if _, ok := dsk.GetSectorByte(c[0], c[1], 0); ok {
			t.Errorf("GetSectorByte accepted track %d sector %d", c[0], c[1])
		}
	}

	if _, err := dsk.CalcOffset(1, 20); err != nil {
		t.Error(err)
	}
	if _, err := dsk.CalcOffset(35, 16); err != nil {
		t.Error(err)
	}

	dsk40 := NewBlankDisk(FortyTrack, "BOUNDS")
	if _, err := dsk40.CalcOffset(40, 16); err != nil {
		t.Error(err)
	}
	if _, err := dsk40.CalcOffset(41, 0); err == nil {
		t.Error("Track 41 accepted")
	}
}

func TestTrackOffsets(t *testing.T) {

	// zone boundaries from the 1541 layout
	if TRACK_OFFSETS[0] != 0 {
		t.Error("Track 1 offset wrong")
	}
	if TRACK_OFFSETS[17] != 17*21*STD_BYTES_PER_SECTOR {
		t.Error("Track 18 offset wrong")
	}
	if TRACK_OFFSETS[35-1]+17*STD_BYTES_PER_SECTOR != D64_DISK35_BYTES {
		t.Error("35 track image size mismatch")
	}
	if TRACK_OFFSETS[40-1]+17*STD_BYTES_PER_SECTOR != D64_DISK40_BYTES {
		t.Error("40 track image size mismatch")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {

	dsk := NewBlankDisk(ThirtyFiveTrack, "ROUNDTRIP")
	if err := dsk.WriteFile("FILE1", FileTypePRG, testProg); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "roundtrip.d64")
	if err := dsk.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := NewDSKWrapper(path)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(dsk.Data, loaded.Data) {
		t.Error("Image changed across save/load")
	}
	if !loaded.VerifyBAMIntegrity(false, io.Discard) {
		t.Error("Loaded image fails BAM verify")
	}

	data, err := loaded.ReadFile("FILE1")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, testProg) {
		t.Error("File contents changed across save/load")
	}
}

func TestRenameDisk(t *testing.T) {

	dsk := NewBlankDisk(ThirtyFiveTrack, "OLD NAME")
	dsk.RenameDisk("NEW NAME")
	if dsk.DiskName() != "NEW NAME" {
		t.Errorf("Got %q", dsk.DiskName())
	}

	dsk.RenameDisk("WAY TOO LONG DISK NAME HERE")
	if len(dsk.DiskName()) != DISK_NAME_SIZE {
		t.Errorf("Overlong name not truncated, got %q", dsk.DiskName())
	}
}
