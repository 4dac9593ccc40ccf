// Command bwtree is a thin argv-driven smoke-test driver over the tree
// engine: it opens a tree against a chosen store and runs a single
// get/put/delete; get prints the value (or "<not found>"), put and delete
// print nothing on success. Not a production CLI surface,
// just the kind of flat driver the teacher keeps next to its library
// package.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/hmarui66/bwtree-go/bwtree"
	"github.com/hmarui66/bwtree-go/epoch"
	"github.com/hmarui66/bwtree-go/store"
	"github.com/hmarui66/bwtree-go/store/diskstore"
	"github.com/hmarui66/bwtree-go/store/memstore"
)

func main() {
	storeKind := flag.String("store", "mem", "backing store: mem or disk")
	file := flag.String("file", "bwtree.db", "disk store file (only used with -store=disk)")
	deltaLen := flag.Uint("delta-len", 8, "chain length that triggers consolidation")
	nodeSize := flag.Int("node-size", 4096, "base-page byte threshold that triggers split")
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		usage()
	}

	st, closeStore := openStore(*storeKind, *file)
	defer closeStore()

	opts := bwtree.Options{
		DataDeltaLength: uint8(*deltaLen),
		DataNodeSize:    *nodeSize,
		IndexNodeSize:   *nodeSize,
	}
	t := bwtree.Open(opts, st)
	guard := t.Pin()
	defer guard.Unpin()

	op, rest := args[0], args[1:]
	switch op {
	case "get":
		runGet(t, guard, rest)
	case "put":
		runPut(t, guard, rest)
	case "delete":
		runDelete(t, guard, rest)
	default:
		usage()
	}
}

func openStore(kind, file string) (store.Store, func()) {
	switch kind {
	case "mem":
		s := memstore.New()
		return s, func() { closeLogged(s) }
	case "disk":
		s, err := diskstore.Open(file)
		if err != nil {
			log.Fatalf("bwtree: open disk store: %v", err)
		}
		return s, func() { closeLogged(s) }
	default:
		log.Fatalf("bwtree: unknown store kind %q", kind)
		return nil, func() {}
	}
}

func closeLogged(s store.Store) {
	if err := s.Close(); err != nil {
		errPrintf("bwtree: close store: %v\n", err)
	}
}

func runGet(t *bwtree.Tree, guard *epoch.Guard, args []string) {
	if len(args) < 2 {
		usage()
	}
	val, ok, err := t.Get([]byte(args[0]), parseLSN(args[1]), guard)
	if err != nil {
		log.Fatalf("bwtree: get: %v", err)
	}
	if !ok {
		fmt.Println("<not found>")
		return
	}
	fmt.Println(string(val))
}

func runPut(t *bwtree.Tree, guard *epoch.Guard, args []string) {
	if len(args) < 3 {
		usage()
	}
	if err := t.Put([]byte(args[0]), parseLSN(args[2]), []byte(args[1]), guard); err != nil {
		log.Fatalf("bwtree: put: %v", err)
	}
}

func runDelete(t *bwtree.Tree, guard *epoch.Guard, args []string) {
	if len(args) < 2 {
		usage()
	}
	if err := t.Delete([]byte(args[0]), parseLSN(args[1]), guard); err != nil {
		log.Fatalf("bwtree: delete: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: bwtree [-store mem|disk] [-file path] get key lsn | put key value lsn | delete key lsn")
	os.Exit(2)
}

func parseLSN(s string) uint64 {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		log.Fatalf("bwtree: invalid lsn %q: %v", s, err)
	}
	return n
}

func errPrintf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format, a...)
}
