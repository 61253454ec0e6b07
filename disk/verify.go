package disk

import (
	"fmt"
	"io"
	"os"
)

// usageMap tracks which sectors are reachable from the directory.
type usageMap [][]bool

func newUsageMap(tracks int) usageMap {
	m := make(usageMap, tracks)
	for i := range m {
		m[i] = make([]bool, SECTORS_PER_TRACK[i])
	}
	return m
}

func (m usageMap) mark(ts TrackSector) {
	t := int(ts.Track)
	s := int(ts.Sector)
	if t >= 1 && t <= len(m) && s >= 0 && s < len(m[t-1]) {
		m[t-1][s] = true
	}
}

// markChain marks every sector of a chain, tolerating broken links: the
// verifier's job is to report on damaged images, not to refuse them.
func (d *DSKWrapper) markChain(m usageMap, start TrackSector) {
	it := d.Chain(start)
	for ts, ok := it.Next(); ok; ts, ok = it.Next() {
		m.mark(ts)
	}
}

// buildUsageMap visits every sector reachable from the directory: the BAM
// sector, the directory chain, each live file's chain, and for relative
// files the side sector group plus every chain entry it indexes.
func (d *DSKWrapper) buildUsageMap() usageMap {

	m := newUsageMap(d.TPD())

	m.mark(TS(DIRECTORY_TRACK, BAM_SECTOR))
	d.markChain(m, TS(DIRECTORY_TRACK, DIRECTORY_SECTOR))

	files, _ := d.GetCatalog()
	for _, fd := range files {
		d.markChain(m, fd.Start())

		if fd.Type().Kind() == FileTypeREL && fd.SideStart().Track != 0 {
			group, err := d.SideSectorList(fd.SideStart())
			if err == nil {
				for _, loc := range group {
					m.mark(loc)
					ss, err := d.GetSideSector(loc)
					if err != nil {
						continue
					}
					for _, ts := range ss.ChainEntries() {
						m.mark(ts)
					}
				}
			}
		}
	}

	return m
}

// VerifyBAMIntegrity cross checks the BAM against directory reachability.
// Mismatched bits and free counts are reported to the log sink, stderr when
// nil, and repaired in place when fix is set. Returns true when the BAM is
// clean.
func (d *DSKWrapper) VerifyBAMIntegrity(fix bool, log io.Writer) bool {

	if log == nil {
		log = os.Stderr
	}

	usage := d.buildUsageMap()
	bam := d.GetBAM()

	errorsFound := false

	for track := 1; track <= d.TPD(); track++ {
		correctFree := 0

		for sector := 0; sector < SECTORS_PER_TRACK[track-1]; sector++ {
			isFreeInBAM := bam.IsTSFree(track, sector)
			isUsed := usage[track-1][sector]

			if !isUsed && !isFreeInBAM {
				fmt.Fprintf(log, "ERROR: Sector %d on Track %d is incorrectly marked as used in BAM.\n", sector, track)
				errorsFound = true
				if fix {
					fmt.Fprintf(log, "FIXING: Freeing sector %d on Track %d.\n", sector, track)
					bam.SetTSFree(track, sector, true)
				}
			} else if isUsed && isFreeInBAM {
				fmt.Fprintf(log, "ERROR: Sector %d on Track %d is incorrectly marked as free in BAM.\n", sector, track)
				errorsFound = true
				if fix {
					fmt.Fprintf(log, "FIXING: Marking sector %d on Track %d as used.\n", sector, track)
					bam.SetTSFree(track, sector, false)
				}
			}

			if !isUsed {
				correctFree++
			}
		}

		if bam.TrackFree(track) != correctFree {
			fmt.Fprintf(log, "WARNING: BAM free sector count mismatch on Track %d (BAM: %d, Expected: %d)\n",
				track, bam.TrackFree(track), correctFree)
			errorsFound = true
			if fix {
				fmt.Fprintf(log, "FIXING: Correcting free sector count for Track %d.\n", track)
				bam.setTrackFree(track, correctFree)
			}
		}
	}

	return !errorsFound
}
