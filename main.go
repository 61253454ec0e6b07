package main

/*
D64M8 is a command line tool and interactive shell for manipulating
Commodore 1541/1571 compatible disk images (.d64), in both the standard
35 track layout and the DolphinDOS 40 track extension.

It can format new images, add, extract, rename, lock and delete files
(including relative files), reorder and compact directories, and verify
the block availability map against what the directory actually reaches.
*/

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/paleotronic/d64m8/disk"
	"github.com/paleotronic/d64m8/loggy"
	"github.com/paleotronic/d64m8/panic"
)

func usage() {
	fmt.Printf(`%s <options>

Tool for creating and manipulating Commodore .d64 disk images
(%d bytes for 35 tracks, %d bytes for 40 tracks).

`, path.Base(os.Args[0]), disk.D64_DISK35_BYTES, disk.D64_DISK40_BYTES)
	flag.PrintDefaults()
}

func binpath() string {

	if runtime.GOOS == "windows" {
		return os.Getenv("USERPROFILE") + "/D64M8"
	}
	return os.Getenv("HOME") + "/D64M8"

}

func init() {
	loggy.LogFolder = binpath() + "/logs/"
}

var verbose = flag.Bool("verbose", false, "Log to stderr")
var createDisk = flag.String("create", "", "Create a blank disk image at the given path")
var diskName = flag.String("disk-name", disk.DEFAULT_DISK_NAME, "Disk name for -create")
var forty = flag.Bool("40", false, "Use the 40 track DolphinDOS layout for -create")
var shell = flag.Bool("shell", false, "Start interactive mode")
var shellBatch = flag.String("shell-batch", "", "Execute shell command(s) from file and exit")
var withDisk = flag.String("with-disk", "", "Perform disk operation (-catalog,-file-put,-file-extract,-file-delete,...)")
var fileCatalog = flag.Bool("catalog", false, "List disk contents (-with-disk)")
var filePut = flag.String("file-put", "", "File to put on disk (-with-disk)")
var fileExtract = flag.String("file-extract", "", "File to extract from disk (-with-disk)")
var fileDelete = flag.String("file-delete", "", "File to delete (-with-disk)")
var fileRename = flag.String("file-rename", "", "File to rename, as old=new (-with-disk)")
var fileLock = flag.String("file-lock", "", "File to lock (-with-disk)")
var fileUnlock = flag.String("file-unlock", "", "File to unlock (-with-disk)")
var verifyBAM = flag.Bool("verify", false, "Verify BAM integrity (-with-disk)")
var fixBAM = flag.Bool("fix", false, "Verify and repair BAM integrity (-with-disk)")
var compactDir = flag.Bool("compact", false, "Compact the directory (-with-disk)")

func banner() {
	fmt.Println("D64M8 (c) Paleotronic.com")
	fmt.Println()
}

func main() {

	banner()

	flag.Usage = usage
	flag.Parse()

	loggy.ECHO = *verbose

	if *createDisk != "" {
		dt := disk.ThirtyFiveTrack
		if *forty {
			dt = disk.FortyTrack
		}
		dsk := disk.NewBlankDisk(dt, strings.ToUpper(*diskName))
		if err := dsk.Save(*createDisk); err != nil {
			os.Stderr.WriteString(err.Error() + "\n")
			os.Exit(2)
		}
		fmt.Printf("Created %s image %s (%q)\n", dsk.Type, *createDisk, dsk.DiskName())
		os.Exit(0)
	}

	if *withDisk != "" {
		dsk, err := disk.NewDSKWrapper(*withDisk)
		if err != nil {
			os.Stderr.WriteString(err.Error() + "\n")
			os.Exit(2)
		}
		commandVolumes[0] = dsk
		commandTarget = 0

		code := 0
		panic.Do(
			func() {
				switch {
				case *fileCatalog:
					code = shellProcess("cat")
				case *filePut != "":
					code = shellProcess("put " + *filePut)
				case *fileExtract != "":
					code = shellProcess("extract " + *fileExtract)
				case *fileDelete != "":
					code = shellProcess("delete " + *fileDelete)
				case *fileRename != "":
					parts := strings.SplitN(*fileRename, "=", 2)
					if len(parts) != 2 {
						os.Stderr.WriteString("-file-rename expects old=new\n")
						code = 3
						return
					}
					code = shellProcess("rename \"" + parts[0] + "\" \"" + parts[1] + "\"")
				case *fileLock != "":
					code = shellProcess("lock " + *fileLock)
				case *fileUnlock != "":
					code = shellProcess("unlock " + *fileUnlock)
				case *fixBAM:
					code = shellProcess("fix")
				case *verifyBAM:
					code = shellProcess("verify")
				case *compactDir:
					code = shellProcess("compact")
				default:
					os.Stderr.WriteString("Additional flag required\n")
					code = 3
				}
			},
			func(r interface{}) {
				loggy.Get(0).Errorf("Error processing volume: %s", *withDisk)
				loggy.Get(0).Errorf(string(debug.Stack()))
				code = 2
			},
		)

		if code != 0 && code != 999 {
			os.Exit(1)
		}
		os.Exit(0)
	}

	if *shellBatch != "" {
		var data []byte
		var err error
		if *shellBatch == "stdin" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(*shellBatch)
		}
		if err != nil {
			os.Stderr.WriteString("Failed to read commands. Aborting\n")
			os.Exit(1)
		}
		lines := strings.Split(string(data), "\n")
		for i, l := range lines {
			r := shellProcess(l)
			if r == -1 {
				os.Stderr.WriteString(fmt.Sprintf("Script failed at line %d: %s\n", i+1, l))
				os.Exit(2)
			}
			if r == 999 {
				os.Stderr.WriteString("Script terminated\n")
				return
			}
		}
		return
	}

	// no single shot operation requested: land in the shell, mounting any
	// image named on the command line
	var dsk *disk.DSKWrapper
	var err error
	if len(flag.Args()) > 0 {
		fmt.Printf("Trying to load %s\n", flag.Args()[0])
		dsk, err = disk.NewDSKWrapper(flag.Args()[0])
		if err != nil {
			fmt.Println("Error: " + err.Error())
			os.Exit(1)
		}
	}
	shellDo(dsk)
}
