// stlink-tool is a command-line front end for the stlink package: identify,
// read/write registers and memory, erase and program flash, dump and
// verify against local files.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/go-stlink/stlink"
)

var (
	flagBlink   = flag.Bool("B", false, "blink demo (not implemented; logs a notice)")
	flagVerify  = flag.Bool("C", false, "verify target memory against a file")
	flagDown    = flag.String("D", "", "download (program) a file to flash")
	flagUp      = flag.String("U", "", "upload (dump) flash to a file")
	flagVerbose = flag.Bool("v", false, "verbose diagnostic logging")
	flagVersion = flag.Bool("V", false, "print the probe's firmware version")
	flagUsage   = flag.Bool("u", false, "print usage")
)

func init() {
	flag.BoolVar(flagBlink, "blink", false, "blink demo (not implemented; logs a notice)")
	flag.BoolVar(flagVerify, "verify", false, "verify target memory against a file")
	flag.StringVar(flagDown, "download", "", "download (program) a file to flash")
	flag.StringVar(flagUp, "upload", "", "upload (dump) flash to a file")
	flag.BoolVar(flagVerbose, "verbose", false, "verbose diagnostic logging")
	flag.BoolVar(flagVersion, "version", false, "print the probe's firmware version")
	flag.BoolVar(flagUsage, "usage", false, "print usage")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] [device] [command ...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "commands: program=<file> info version reset run step status debug\n")
		fmt.Fprintf(os.Stderr, "          regs reg<N> wreg<N>=<V> read<addr> write<addr>=<val>\n")
		fmt.Fprintf(os.Stderr, "          erase erase=all erase=<addr>\n")
		fmt.Fprintf(os.Stderr, "          flash:r:<file> flash:w:<file> flash:v:<file> sys:r:<file>\n\n")
		fmt.Fprintf(os.Stderr, "flags:\n")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	if *flagUsage {
		flag.Usage()
		os.Exit(0)
	}

	logger := log.New(os.Stderr, "stlink: ", 0)

	t, err := stlink.OpenUSB(logger)
	if err != nil {
		logger.Printf("%v", err)
		os.Exit(1)
	}

	sess, err := stlink.Open(t, stlink.WithLogger(logger), stlink.WithVerbose(*flagVerbose))
	if err != nil {
		logger.Printf("%v", err)
		os.Exit(1)
	}
	defer sess.Close()

	if *flagVersion {
		printVersion(sess, logger)
	}

	if *flagBlink {
		logger.Printf("blink: not implemented by this tool, probe LED control only")
	}

	if *flagDown != "" {
		if err := sess.ProgramFile(*flagDown, sess.Personality().FlashBase); err != nil {
			logger.Printf("%v", err)
			os.Exit(1)
		}
	}

	if *flagUp != "" {
		if err := sess.DumpToFile(*flagUp, sess.Personality().FlashBase, int(sess.Personality().FlashSize)); err != nil {
			logger.Printf("%v", err)
			os.Exit(1)
		}
	}

	if *flagVerify {
		if *flagDown == "" {
			logger.Printf("-C/--verify requires -D/--download to name a file")
			os.Exit(1)
		}
		if err := sess.VerifyFile(*flagDown, sess.Personality().FlashBase); err != nil {
			logger.Printf("%v", err)
			os.Exit(3)
		}
	}

	args := flag.Args()
	if len(args) == 0 && !*flagVersion {
		flag.Usage()
		os.Exit(2)
	}

	// The first positional argument may be a device path; everything after
	// it (or everything, if it doesn't look like a path) is a command list.
	if len(args) > 0 && !looksLikeCommand(args[0]) {
		args = args[1:]
	}

	exit := 0
	for _, cmd := range args {
		if err := dispatch(sess, cmd, logger); err != nil {
			logger.Printf("%v", err)
			if _, ok := err.(*stlink.VerifyMismatchError); ok {
				exit = 3
			} else {
				exit = 1
			}
		}
	}
	os.Exit(exit)
}

func looksLikeCommand(s string) bool {
	for _, prefix := range []string{"program=", "info", "version", "blink", "reset", "run",
		"step", "status", "debug", "regs", "reg", "wreg", "read", "write", "erase", "flash:", "sys:"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

func printVersion(sess *stlink.Session, logger *log.Logger) {
	v, err := sess.Version()
	if err != nil {
		logger.Printf("%v", err)
		return
	}
	fmt.Printf("STLink v%d, JTAG v%d, SWIM v%d, VID %#04x PID %#04x\n",
		v.STLink, v.JTAG, v.SWIM, v.VendorID, v.ProductID)
}

func dispatch(sess *stlink.Session, cmd string, logger *log.Logger) error {
	switch {
	case cmd == "info":
		fmt.Println(sess.Info())
		return nil
	case cmd == "version":
		printVersion(sess, logger)
		return nil
	case cmd == "blink":
		logger.Printf("blink: not implemented by this tool, probe LED control only")
		return nil
	case cmd == "reset":
		return sess.Reset()
	case cmd == "run":
		return sess.Run()
	case cmd == "step":
		return sess.Step()
	case cmd == "debug":
		return sess.Halt()
	case cmd == "status":
		st, err := sess.Status()
		if err != nil {
			return err
		}
		fmt.Println(statusString(st))
		return nil
	case cmd == "regs":
		regs, err := sess.AllRegisters()
		if err != nil {
			return err
		}
		for i, r := range regs.R {
			fmt.Printf("r%-2d = %#08x\n", i, r)
		}
		fmt.Printf("xpsr = %#08x\n", regs.XPSR)
		return nil
	case strings.HasPrefix(cmd, "wreg") && strings.Contains(cmd, "="):
		return cmdWriteReg(sess, cmd)
	case strings.HasPrefix(cmd, "reg"):
		return cmdReadReg(sess, cmd)
	case strings.HasPrefix(cmd, "write") && strings.Contains(cmd, "="):
		return cmdWriteMem(sess, cmd)
	case strings.HasPrefix(cmd, "read"):
		return cmdReadMem(sess, cmd)
	case cmd == "erase":
		return sess.EraseAll()
	case strings.HasPrefix(cmd, "erase="):
		return cmdErase(sess, cmd)
	case strings.HasPrefix(cmd, "program="):
		return sess.ProgramFile(cmd[len("program="):], sess.Personality().FlashBase)
	case strings.HasPrefix(cmd, "flash:w:"):
		return sess.ProgramFile(cmd[len("flash:w:"):], sess.Personality().FlashBase)
	case strings.HasPrefix(cmd, "flash:v:"):
		return sess.VerifyFile(cmd[len("flash:v:"):], sess.Personality().FlashBase)
	case strings.HasPrefix(cmd, "flash:r:"):
		return dumpFlash(sess, cmd[len("flash:r:"):])
	case strings.HasPrefix(cmd, "sys:r:"):
		return dumpSystemMemory(sess, cmd[len("sys:r:"):])
	}
	return fmt.Errorf("unrecognised command %q", cmd)
}

func statusString(st stlink.CoreStatus) string {
	switch st {
	case stlink.CoreRunning:
		return "running"
	case stlink.CoreHalted:
		return "halted"
	default:
		return "unknown"
	}
}

func cmdReadReg(sess *stlink.Session, cmd string) error {
	idx, err := strconv.Atoi(cmd[len("reg"):])
	if err != nil {
		return fmt.Errorf("bad register command %q: %w", cmd, err)
	}
	v, err := sess.ReadRegister(idx)
	if err != nil {
		return err
	}
	fmt.Printf("r%d = %#08x\n", idx, v)
	return nil
}

func cmdWriteReg(sess *stlink.Session, cmd string) error {
	body := cmd[len("wreg"):]
	parts := strings.SplitN(body, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("bad wreg command %q", cmd)
	}
	idx, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("bad register index in %q: %w", cmd, err)
	}
	val, err := strconv.ParseUint(strings.TrimPrefix(parts[1], "0x"), 16, 32)
	if err != nil {
		return fmt.Errorf("bad register value in %q: %w", cmd, err)
	}
	return sess.WriteRegister(idx, uint32(val))
}

func cmdReadMem(sess *stlink.Session, cmd string) error {
	addr, err := strconv.ParseUint(strings.TrimPrefix(cmd[len("read"):], "0x"), 16, 32)
	if err != nil {
		return fmt.Errorf("bad address in %q: %w", cmd, err)
	}
	buf, err := sess.ReadMemory(uint32(addr), 4)
	if err != nil {
		return err
	}
	fmt.Printf("%#08x: % x\n", addr, buf)
	return nil
}

func cmdWriteMem(sess *stlink.Session, cmd string) error {
	body := cmd[len("write"):]
	parts := strings.SplitN(body, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("bad write command %q", cmd)
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(parts[0], "0x"), 16, 32)
	if err != nil {
		return fmt.Errorf("bad address in %q: %w", cmd, err)
	}
	val, err := strconv.ParseUint(strings.TrimPrefix(parts[1], "0x"), 16, 32)
	if err != nil {
		return fmt.Errorf("bad value in %q: %w", cmd, err)
	}
	return sess.WriteWord(uint32(addr), uint32(val))
}

func cmdErase(sess *stlink.Session, cmd string) error {
	arg := cmd[len("erase="):]
	if arg == "all" {
		return sess.EraseAll()
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(arg, "0x"), 16, 32)
	if err != nil {
		return fmt.Errorf("bad erase address %q: %w", arg, err)
	}
	return sess.ErasePage(uint32(addr))
}

func dumpFlash(sess *stlink.Session, file string) error {
	per := sess.Personality()
	return sess.DumpToFile(file, per.FlashBase, int(per.FlashSize))
}

func dumpSystemMemory(sess *stlink.Session, file string) error {
	per := sess.Personality()
	if per.SysFlashSize == 0 {
		return fmt.Errorf("target has no system memory region")
	}
	return sess.DumpToFile(file, per.SysFlashBase, int(per.SysFlashSize))
}
