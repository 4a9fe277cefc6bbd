package main

import (
	"fmt"
	"os"
)

const usage = `matchctl <command> [flags]

commands:
  replay    feed a jsonl file of orders through an in-process engine
  wal       dump a cmd.wal file as json lines
  discover  list matchd instances registered in etcd
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "replay":
		err = replayCmd(os.Args[2:], os.Stdin, os.Stdout)
	case "wal":
		err = walCmd(os.Args[2:], os.Stdout)
	case "discover":
		err = discoverCmd(os.Args[2:], os.Stdout)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "matchctl:", err)
		os.Exit(1)
	}
}
