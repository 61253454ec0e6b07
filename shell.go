package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/paleotronic/d64m8/disk"
	"github.com/paleotronic/d64m8/loggy"
	"github.com/paleotronic/d64m8/panic"
)

const MAXVOL = 8

var commandList map[string]*shellCommand
var commandVolumes [MAXVOL]*disk.DSKWrapper
var commandTarget int = -1

func mountDsk(dsk *disk.DSKWrapper) (int, error) {

	var fr []int

	for i, d := range commandVolumes {
		if d == nil {
			fr = append(fr, i)
		} else if dsk.Filename == d.Filename {
			return i, nil
		}
	}

	if len(fr) == 0 {
		return -1, errors.New("No free slots")
	}

	commandVolumes[fr[0]] = dsk

	return fr[0], nil

}

func smartSplit(line string) (string, []string) {

	var out []string

	var inqq bool
	var lastEscape bool
	var chunk string

	add := func() {
		if chunk != "" {
			out = append(out, chunk)
			chunk = ""
		}
	}

	for _, ch := range line {
		switch {
		case ch == '"':
			inqq = !inqq
			add()
		case ch == ' ':
			if inqq || lastEscape {
				chunk += string(ch)
			} else {
				add()
			}
			lastEscape = false
		case ch == '\\' && !inqq:
			lastEscape = true
		default:
			chunk += string(ch)
		}
	}

	add()

	if len(out) == 0 {
		return "", out
	}

	return out[0], out[1:]
}

func getPrompt(t int) string {

	if t == -1 || commandVolumes[t] == nil {
		return fmt.Sprintf("d64:%d:%s> ", 0, "<no mount>")
	}

	dsk := commandVolumes[t]

	return fmt.Sprintf("d64:%d:%s> ", t, filepath.Base(dsk.Filename))
}

type shellCommand struct {
	Name             string
	Description      string
	MinArgs, MaxArgs int
	Code             func(args []string) int
	NeedsMount       bool
	Context          shellCommandContext
	Text             []string
}

type shellCommandContext int

const (
	sccNone shellCommandContext = 1 << iota
	sccLocal
	sccDiskFile
	sccCommand
	sccAnyFile = sccDiskFile | sccLocal
	sccAny     = sccAnyFile | sccCommand
)

type shellCompleter struct {
}

func (sc *shellCompleter) Do(line []rune, pos int) ([][]rune, int) {

	prefix := ""
	chunk := ""
	for _, ch := range line {
		if ch == ' ' {
			prefix = chunk
			break
		} else {
			chunk += string(ch)
		}
	}

	chunk = ""
	cprefix := ""
	var lastEscape bool
	for i := 0; i < pos; i++ {
		ch := line[i]
		switch {
		case ch == '\\':
			lastEscape = true
		case ch == ' ' && !lastEscape:
			cprefix = chunk
			chunk = ""
			lastEscape = false
		default:
			chunk += string(ch)
		}
	}
	if chunk != "" {
		cprefix = chunk
	}

	var context shellCommandContext = sccNone
	cmd, match := commandList[prefix]
	if match {
		context = cmd.Context
	} else {
		context = sccCommand
	}

	var items [][]rune
	switch {
	case context&sccCommand != 0:
		for k := range commandList {
			items = append(items, []rune(k))
		}
	case context&sccDiskFile != 0:
		if commandTarget != -1 && commandVolumes[commandTarget] != nil {
			files, err := commandVolumes[commandTarget].GetCatalog()
			if err == nil {
				for _, f := range files {
					items = append(items, []rune(f.Name()))
				}
			}
		}
	case context&sccLocal != 0:
		matches, _ := filepath.Glob(cprefix + "*")
		for _, m := range matches {
			items = append(items, []rune(m))
		}
	}

	var out [][]rune
	for _, item := range items {
		if strings.HasPrefix(strings.ToLower(string(item)), strings.ToLower(cprefix)) {
			out = append(out, item[len(cprefix):])
		}
	}

	return out, len(cprefix)
}

func init() {
	commandList = map[string]*shellCommand{
		"mount": {
			Name:        "mount",
			Description: "Mount a disk image",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellMount,
			NeedsMount:  false,
			Context:     sccLocal,
			Text: []string{
				"mount <diskfile>",
				"",
				"Mount a .d64 disk image into the next free slot.",
			},
		},
		"unmount": {
			Name:        "unmount",
			Description: "Unmount the current disk image",
			MinArgs:     0,
			MaxArgs:     0,
			Code:        shellUnmount,
			NeedsMount:  true,
			Context:     sccNone,
		},
		"slot": {
			Name:        "slot",
			Description: "Switch to a mounted volume slot",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellSlot,
			NeedsMount:  false,
			Context:     sccNone,
		},
		"disks": {
			Name:        "disks",
			Description: "List mounted volumes",
			MinArgs:     0,
			MaxArgs:     0,
			Code:        shellDisks,
			NeedsMount:  false,
			Context:     sccNone,
		},
		"create": {
			Name:        "create",
			Description: "Create and mount a blank disk image",
			MinArgs:     1,
			MaxArgs:     3,
			Code:        shellCreate,
			NeedsMount:  false,
			Context:     sccLocal,
			Text: []string{
				"create <diskfile> [<diskname>] [40]",
				"",
				"Format a blank image, 35 tracks unless 40 is given,",
				"write it to <diskfile> and mount it.",
			},
		},
		"info": {
			Name:        "info",
			Description: "Information about the mounted disk",
			MinArgs:     0,
			MaxArgs:     0,
			Code:        shellInfo,
			NeedsMount:  true,
			Context:     sccNone,
		},
		"cat": {
			Name:        "cat",
			Description: "Display disk catalog",
			MinArgs:     0,
			MaxArgs:     0,
			Code:        shellCat,
			NeedsMount:  true,
			Context:     sccNone,
		},
		"put": {
			Name:        "put",
			Description: "Copy a local file onto the disk",
			MinArgs:     1,
			MaxArgs:     3,
			Code:        shellPut,
			NeedsMount:  true,
			Context:     sccLocal,
			Text: []string{
				"put <localfile> [<type>] [<recordlength>]",
				"",
				"Store a local file on the mounted disk. The type is",
				"prg, seq, usr or rel, defaulting to the local file's",
				"extension and then to prg. Relative files need a",
				"record length between 1 and 254.",
			},
		},
		"extract": {
			Name:        "extract",
			Description: "Extract a file to the local filesystem",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellExtract,
			NeedsMount:  true,
			Context:     sccDiskFile,
		},
		"type": {
			Name:        "type",
			Description: "Dump a file's bytes to the console",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellType,
			NeedsMount:  true,
			Context:     sccDiskFile,
		},
		"delete": {
			Name:        "delete",
			Description: "Delete a file from the disk",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellDelete,
			NeedsMount:  true,
			Context:     sccDiskFile,
		},
		"rename": {
			Name:        "rename",
			Description: "Rename a file on the disk",
			MinArgs:     2,
			MaxArgs:     2,
			Code:        shellRename,
			NeedsMount:  true,
			Context:     sccDiskFile,
			Text: []string{
				"rename <filename> <new filename>",
				"",
				"Rename a file on a disk.",
			},
		},
		"lock": {
			Name:        "lock",
			Description: "Set a file's lock flag",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellLock,
			NeedsMount:  true,
			Context:     sccDiskFile,
		},
		"unlock": {
			Name:        "unlock",
			Description: "Unlock a file",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellUnlock,
			NeedsMount:  true,
			Context:     sccDiskFile,
		},
		"relabel": {
			Name:        "relabel",
			Description: "Rename the mounted disk",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellRelabel,
			NeedsMount:  true,
			Context:     sccNone,
		},
		"verify": {
			Name:        "verify",
			Description: "Verify BAM integrity",
			MinArgs:     0,
			MaxArgs:     0,
			Code:        shellVerify,
			NeedsMount:  true,
			Context:     sccNone,
		},
		"fix": {
			Name:        "fix",
			Description: "Verify and repair BAM integrity",
			MinArgs:     0,
			MaxArgs:     0,
			Code:        shellFix,
			NeedsMount:  true,
			Context:     sccNone,
		},
		"compact": {
			Name:        "compact",
			Description: "Compact the directory",
			MinArgs:     0,
			MaxArgs:     0,
			Code:        shellCompact,
			NeedsMount:  true,
			Context:     sccNone,
		},
		"reorder": {
			Name:        "reorder",
			Description: "Reorder the directory, named files first",
			MinArgs:     1,
			MaxArgs:     999,
			Code:        shellReorder,
			NeedsMount:  true,
			Context:     sccDiskFile,
			Text: []string{
				"reorder <filename> [<filename> ...]",
				"",
				"Rewrite the directory with the named files first, in",
				"the order given; everything else keeps its order.",
			},
		},
		"sort": {
			Name:        "sort",
			Description: "Sort the directory by name",
			MinArgs:     0,
			MaxArgs:     0,
			Code:        shellSort,
			NeedsMount:  true,
			Context:     sccNone,
		},
		"movefirst": {
			Name:        "movefirst",
			Description: "Move a file to the top of the directory",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellMoveFirst,
			NeedsMount:  true,
			Context:     sccDiskFile,
		},
		"moveup": {
			Name:        "moveup",
			Description: "Move a file one place up the directory",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellMoveUp,
			NeedsMount:  true,
			Context:     sccDiskFile,
		},
		"movedown": {
			Name:        "movedown",
			Description: "Move a file one place down the directory",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellMoveDown,
			NeedsMount:  true,
			Context:     sccDiskFile,
		},
		"free": {
			Name:        "free",
			Description: "Show free sector count",
			MinArgs:     0,
			MaxArgs:     0,
			Code:        shellFree,
			NeedsMount:  true,
			Context:     sccNone,
		},
		"dump": {
			Name:        "dump",
			Description: "Hex dump one sector",
			MinArgs:     2,
			MaxArgs:     2,
			Code:        shellDump,
			NeedsMount:  true,
			Context:     sccNone,
			Text: []string{
				"dump <track> <sector>",
				"",
				"Hex dump a raw sector of the mounted disk.",
			},
		},
		"cd": {
			Name:        "cd",
			Description: "Change local working directory",
			MinArgs:     0,
			MaxArgs:     1,
			Code:        shellCd,
			NeedsMount:  false,
			Context:     sccLocal,
		},
		"lsl": {
			Name:        "lsl",
			Description: "List local files",
			MinArgs:     0,
			MaxArgs:     999,
			Code:        shellListFiles,
			NeedsMount:  false,
			Context:     sccLocal,
		},
		"help": {
			Name:        "help",
			Description: "Show help",
			MinArgs:     0,
			MaxArgs:     1,
			Code:        shellHelp,
			NeedsMount:  false,
			Context:     sccCommand,
		},
		"quit": {
			Name:        "quit",
			Description: "Leave the shell",
			MinArgs:     0,
			MaxArgs:     0,
			Code:        shellQuit,
			NeedsMount:  false,
			Context:     sccNone,
		},
	}
}

func shellProcess(line string) int {
	line = strings.TrimSpace(line)

	verb, args := smartSplit(line)

	if verb != "" {
		verb = strings.ToLower(verb)
		command, ok := commandList[verb]
		if ok {
			fmt.Println()
			var cok = true
			if command.MinArgs != -1 {
				if len(args) < command.MinArgs {
					os.Stderr.WriteString(fmt.Sprintf("%s expects at least %d arguments\n", verb, command.MinArgs))
					cok = false
				}
			}
			if command.MaxArgs != -1 {
				if len(args) > command.MaxArgs {
					os.Stderr.WriteString(fmt.Sprintf("%s expects at most %d arguments\n", verb, command.MaxArgs))
					cok = false
				}
			}
			if command.NeedsMount {
				if commandTarget == -1 || commandVolumes[commandTarget] == nil {
					os.Stderr.WriteString(fmt.Sprintf("%s only works on mounted disks\n", verb))
					cok = false
				}
			}
			if cok {
				r := command.Code(args)
				fmt.Println()
				return r
			} else {
				return -1
			}
		} else {
			os.Stderr.WriteString(fmt.Sprintf("Unrecognized command: %s\n", verb))
			return -1
		}
	}

	return 0
}

func shellDo(dsk *disk.DSKWrapper) {

	if dsk != nil {
		slotid, err := mountDsk(dsk)
		if err == nil {
			commandTarget = slotid
		}
	}

	ac := &shellCompleter{}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 getPrompt(commandTarget),
		HistoryFile:            binpath() + "/.shell_history",
		DisableAutoSaveHistory: false,
		AutoComplete:           ac,
	})
	if err != nil {
		os.Exit(2)
	}
	defer rl.Close()

	running := true

	for running {
		line, err := rl.Readline()
		if err != nil {
			break
		}

		r := shellProcess(line)
		if r == 999 {
			return
		}

		rl.SetPrompt(getPrompt(commandTarget))
	}

}

func shellMount(args []string) int {

	var dsk *disk.DSKWrapper
	var err error

	panic.Do(
		func() {
			dsk, err = disk.NewDSKWrapper(args[0])
		},
		func(r interface{}) {
			loggy.Get(0).Errorf("Error processing volume: %s", args[0])
			loggy.Get(0).Errorf(string(debug.Stack()))
			err = errors.New("bad disk image")
		},
	)
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return -1
	}

	slotid, err := mountDsk(dsk)
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return -1
	}

	commandTarget = slotid
	os.Stderr.WriteString(fmt.Sprintf("mount disk in slot %d\n", slotid))

	return 0
}

func shellUnmount(args []string) int {

	if commandVolumes[commandTarget] != nil {

		commandVolumes[commandTarget] = nil

		os.Stderr.WriteString("Unmounted volume\n")

	}

	return 0
}

func shellSlot(args []string) int {

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 || n >= MAXVOL {
		os.Stderr.WriteString("slot expects a number between 0 and 7\n")
		return -1
	}
	if commandVolumes[n] == nil {
		os.Stderr.WriteString("No disk mounted in that slot\n")
		return -1
	}
	commandTarget = n
	return 0
}

func shellDisks(args []string) int {

	for i, d := range commandVolumes {
		if d == nil {
			continue
		}
		marker := " "
		if i == commandTarget {
			marker = "*"
		}
		fmt.Printf("%s %d: %-40s %s\n", marker, i, filepath.Base(d.Filename), d.Type)
	}

	return 0
}

func shellCreate(args []string) int {

	name := disk.DEFAULT_DISK_NAME
	dt := disk.ThirtyFiveTrack
	if len(args) > 1 {
		name = strings.ToUpper(args[1])
	}
	if len(args) > 2 && args[2] == "40" {
		dt = disk.FortyTrack
	}

	dsk := disk.NewBlankDisk(dt, name)
	dsk.Filename = args[0]

	if err := dsk.Save(args[0]); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return -1
	}

	slotid, err := mountDsk(dsk)
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return -1
	}
	commandTarget = slotid

	fmt.Printf("Created %s (%q) in slot %d\n", args[0], dsk.DiskName(), slotid)

	return 0
}

func shellInfo(args []string) int {

	dsk := commandVolumes[commandTarget]
	fullpath, _ := filepath.Abs(dsk.Filename)

	fmt.Printf("Disk path   : %s\n", fullpath)
	fmt.Printf("Disk type   : %s\n", dsk.Type)
	fmt.Printf("Disk name   : %s\n", dsk.DiskName())
	fmt.Printf("Size        : %d bytes\n", len(dsk.Data))
	fmt.Printf("Free sectors: %d\n", dsk.FreeSectorCount())

	return 0
}

func shellQuit(args []string) int {

	return 999

}

func shellCat(args []string) int {

	dsk := commandVolumes[commandTarget]

	files, err := dsk.GetCatalog()
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return -1
	}

	fmt.Printf("Disk name is %q\n\n", dsk.DiskName())

	fmt.Printf("%-18s  %6s  %2s  %-16s\n", "NAME", "BLOCKS", "RO", "KIND")
	for _, f := range files {
		locked := " "
		if f.Type().Locked() {
			locked = "Y"
		}
		fmt.Printf("%-18q  %6d  %2s  %-16s\n", f.Name(), f.SizeSectors(), locked, f.Type().Kind())
	}

	fmt.Printf("\n%d blocks free\n", dsk.FreeSectorCount())

	return 0

}

func shellPut(args []string) int {

	dsk := commandVolumes[commandTarget]
	fullpath, _ := filepath.Abs(dsk.Filename)

	data, err := os.ReadFile(args[0])
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return -1
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(args[0])), ".")
	kind := disk.FileTypeFromExt(ext)
	if len(args) > 1 {
		kind = disk.FileTypeFromExt(strings.ToLower(args[1]))
	}

	base := filepath.Base(args[0])
	name := strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))

	if kind == disk.FileTypeREL {
		if len(args) < 3 {
			os.Stderr.WriteString("put: relative files need a record length\n")
			return -1
		}
		reclen, cerr := strconv.Atoi(args[2])
		if cerr != nil {
			os.Stderr.WriteString("put: bad record length\n")
			return -1
		}
		err = dsk.WriteRelFile(name, data, reclen)
	} else {
		err = dsk.WriteFile(name, kind, data)
	}
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return -1
	}

	saveDisk(dsk, fullpath)

	fmt.Printf("Stored %s as %q (%s)\n", args[0], name, kind)

	return 0
}

func shellExtract(args []string) int {

	dsk := commandVolumes[commandTarget]

	fmt.Println("Extract:", args[0])

	hostname, err := dsk.ExtractFile(args[0])
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return -1
	}

	fmt.Println("Wrote " + hostname)

	return 0

}

func shellType(args []string) int {

	dsk := commandVolumes[commandTarget]

	data, err := dsk.ReadFile(args[0])
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return -1
	}

	disk.Dump(data)

	return 0
}

func shellDelete(args []string) int {

	dsk := commandVolumes[commandTarget]
	fullpath, _ := filepath.Abs(dsk.Filename)

	if err := dsk.DeleteFile(args[0]); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return -1
	}

	saveDisk(dsk, fullpath)

	return 0
}

func shellRename(args []string) int {

	dsk := commandVolumes[commandTarget]
	fullpath, _ := filepath.Abs(dsk.Filename)

	if err := dsk.RenameFile(args[0], args[1]); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return -1
	}

	saveDisk(dsk, fullpath)

	return 0
}

func shellLock(args []string) int {

	dsk := commandVolumes[commandTarget]
	fullpath, _ := filepath.Abs(dsk.Filename)

	if err := dsk.SetLocked(args[0], true); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return -1
	}

	saveDisk(dsk, fullpath)

	return 0
}

func shellUnlock(args []string) int {

	dsk := commandVolumes[commandTarget]
	fullpath, _ := filepath.Abs(dsk.Filename)

	if err := dsk.SetLocked(args[0], false); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return -1
	}

	saveDisk(dsk, fullpath)

	return 0
}

func shellRelabel(args []string) int {

	dsk := commandVolumes[commandTarget]
	fullpath, _ := filepath.Abs(dsk.Filename)

	dsk.RenameDisk(strings.ToUpper(args[0]))

	saveDisk(dsk, fullpath)

	return 0
}

func shellVerify(args []string) int {

	dsk := commandVolumes[commandTarget]

	if dsk.VerifyBAMIntegrity(false, os.Stderr) {
		fmt.Println("BAM OK")
		return 0
	}

	fmt.Println("BAM has errors (use fix to repair)")
	return -1
}

func shellFix(args []string) int {

	dsk := commandVolumes[commandTarget]
	fullpath, _ := filepath.Abs(dsk.Filename)

	ok := dsk.VerifyBAMIntegrity(true, os.Stderr)

	saveDisk(dsk, fullpath)

	if ok {
		fmt.Println("BAM OK")
	} else {
		fmt.Println("BAM repaired")
	}

	return 0
}

func shellCompact(args []string) int {

	dsk := commandVolumes[commandTarget]
	fullpath, _ := filepath.Abs(dsk.Filename)

	changed, err := dsk.CompactDirectory()
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return -1
	}
	if !changed {
		fmt.Println("Nothing to compact")
		return 0
	}

	saveDisk(dsk, fullpath)

	return 0
}

func shellReorder(args []string) int {

	dsk := commandVolumes[commandTarget]
	fullpath, _ := filepath.Abs(dsk.Filename)

	changed, err := dsk.ReorderDirectoryByNames(args)
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return -1
	}
	if !changed {
		fmt.Println("Directory already in that order")
		return 0
	}

	saveDisk(dsk, fullpath)

	return 0
}

func shellSort(args []string) int {

	dsk := commandVolumes[commandTarget]
	fullpath, _ := filepath.Abs(dsk.Filename)

	changed, err := dsk.ReorderDirectoryFunc(func(a, b *disk.FileDescriptor) bool {
		return a.Name() < b.Name()
	})
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return -1
	}
	if !changed {
		fmt.Println("Directory already sorted")
		return 0
	}

	saveDisk(dsk, fullpath)

	return 0
}

func shellMoveFirst(args []string) int {

	dsk := commandVolumes[commandTarget]
	fullpath, _ := filepath.Abs(dsk.Filename)

	changed, err := dsk.MoveFileFirst(args[0])
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return -1
	}
	if changed {
		saveDisk(dsk, fullpath)
	}

	return 0
}

func shellMoveUp(args []string) int {
	return shellMove(args[0], true)
}

func shellMoveDown(args []string) int {
	return shellMove(args[0], false)
}

func shellMove(name string, up bool) int {

	dsk := commandVolumes[commandTarget]
	fullpath, _ := filepath.Abs(dsk.Filename)

	changed, err := dsk.MoveFile(name, up)
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return -1
	}
	if changed {
		saveDisk(dsk, fullpath)
	}

	return 0
}

func shellFree(args []string) int {

	dsk := commandVolumes[commandTarget]
	fmt.Printf("%d blocks free\n", dsk.FreeSectorCount())

	return 0
}

func shellDump(args []string) int {

	dsk := commandVolumes[commandTarget]

	t, err1 := strconv.Atoi(args[0])
	s, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		os.Stderr.WriteString("dump expects numeric track and sector\n")
		return -1
	}

	data, err := dsk.GetSector(t, s)
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return -1
	}

	fmt.Printf("Track %d, Sector %d:\n", t, s)
	disk.Dump(data)

	return 0
}

func shellCd(args []string) int {

	if len(args) > 0 {
		err := os.Chdir(args[0])
		if err != nil {
			os.Stderr.WriteString("Change directory failed: " + err.Error() + "\n")
			return -1
		}
	}

	wd, _ := os.Getwd()
	os.Stderr.WriteString("Working directory is now " + wd + "\n")
	return 0

}

func shellListFiles(args []string) int {

	if len(args) == 0 {
		wd, _ := os.Getwd()
		args = append(args, wd+"/*.*")
	}

	for _, a := range args {

		files, err := filepath.Glob(a)
		if err != nil {
			os.Stderr.WriteString("Error reading path " + a + ": " + err.Error() + "\n")
			continue
		}

		fmt.Printf("%10s  %s\n", "SIZE", "NAME")
		for _, f := range files {
			fi, err := os.Stat(f)
			if err != nil {
				continue
			}
			fmt.Printf("%10d  %s\n", fi.Size(), fi.Name())
		}
	}

	return 0
}

func shellHelp(args []string) int {

	if len(args) == 0 {
		keys := make([]string, 0)
		for k := range commandList {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			info := commandList[k]
			fmt.Printf("%-10s %s\n", info.Name, info.Description)
		}
	} else {
		command := strings.ToLower(args[0])
		if details, ok := commandList[command]; ok {
			if details.Text != nil {
				for _, l := range details.Text {
					fmt.Println(l)
				}
			} else {
				os.Stderr.WriteString("No help available for " + command)
			}
		} else {
			os.Stderr.WriteString("No help available for " + command)
		}
	}

	return 0
}

func fts() string {
	t := time.Now()
	return fmt.Sprintf(
		"%.4d%.2d%.2d%.2d%.2d%.2d",
		t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
	)
}

func backupFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	path = strings.Replace(path, ":", "", -1)
	path = strings.Replace(path, "\\", "/", -1)

	bpath := binpath() + "/backup/" + path + "." + fts()
	os.MkdirAll(filepath.Dir(bpath), 0755)

	f, err := os.Create(bpath)
	if err != nil {
		return err
	}
	f.Write(data)
	f.Close()

	os.Stderr.WriteString("Backed up disk to: " + bpath + "\n")

	return nil
}

func saveDisk(dsk *disk.DSKWrapper, path string) error {

	backupFile(path)

	err := dsk.Save(path)
	if err != nil {
		return err
	}

	fmt.Println("Updated disk " + path)
	return nil
}
