package bwtree

import (
	"fmt"
	"log"
	"os"

	"github.com/hmarui66/bwtree-go/pagetable"
)

// errPrintf is the low-level diagnostic print used by call paths that
// run before a *log.Logger is available, mirroring the teacher's own
// errPrintf helper.
func errPrintf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format, a...)
}

func logSwapIn(pid pagetable.PID, diskAddr uint64) {
	log.Printf("bwtree: swap-in pid=%d disk=%#x", pid, diskAddr)
}

func logConsolidate(pid pagetable.PID, oldLen uint8) {
	log.Printf("bwtree: consolidate pid=%d chain-len=%d", pid, oldLen)
}

func logSplit(pid pagetable.PID, right pagetable.PID, middle []byte) {
	log.Printf("bwtree: split pid=%d right=%d middle=%q", pid, right, middle)
}

func logMerge(left, right pagetable.PID) {
	log.Printf("bwtree: merge left=%d right=%d", left, right)
}
