// mccortex builds, cleans, threads and traverses colored de Bruijn graphs
// stored in CORTEX binary graph (.ctx) and path (.ctp) files.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
)

const usage = `
usage: mccortex <command> [options] <args>

Command:  build       FASTA/FASTQ -> cortex graph file
          view        print header and contents of a graph file (.ctx)
          healthcheck load and check a graph file (.ctx)
          clean       clean errors from a graph
          join        combine graphs into a multicolor graph
          supernodes  pull out supernodes
          subgraph    filter a subgraph around seed sequences
          reads       filter reads against a graph
          extend      extend contigs using a graph
          contigs     assemble contigs for a sample
          inferedges  infer graph edges between loaded kmers
          thread      thread reads through the graph into a path file
          pview       view read threading information (.ctp)
          pjoin       merge path files (.ctp)

  Type a command with no arguments to see help.

Common Options:
  -memory <M>      Memory to use, e.g. 1G
  -nkmers <H>      Hash table entries, e.g. 4M
  -ncols <C>       Number of graph colours to load at once [default: 1]
  -threads <T>     Number of threads [default: 2]
  -kmer <K>        Kmer size [default: read from graph files]
  -out <file>      Output file
  -paths <in.ctp>  Assembly path file
`

type command struct {
	name string
	fn   func(ctx context.Context, args []string) error
}

var commands = []command{
	{"build", buildMain},
	{"view", viewMain},
	{"healthcheck", healthcheckMain},
	{"clean", cleanMain},
	{"join", joinMain},
	{"supernodes", supernodesMain},
	{"subgraph", subgraphMain},
	{"reads", readsMain},
	{"extend", extendMain},
	{"contigs", contigsMain},
	{"inferedges", inferedgesMain},
	{"thread", threadMain},
	{"pview", pviewMain},
	{"pjoin", pjoinMain},
}

func printUsage(format string, args ...interface{}) {
	if format != "" {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
	fmt.Fprint(os.Stderr, usage)
	os.Exit(1)
}

func main() {
	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	if flag.NArg() == 0 {
		printUsage("")
	}
	name := flag.Arg(0)
	start := time.Now()
	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}
		log.Printf("[cmd] mccortex %s", name)
		if err := cmd.fn(ctx, flag.Args()[1:]); err != nil {
			log.Error.Printf("%s: %v", name, err)
			log.Printf("Fail.")
			os.Exit(1)
		}
		log.Printf("Done. [time] %.2f seconds", time.Since(start).Seconds())
		return
	}
	printUsage("Unrecognised command: %s", name)
}
