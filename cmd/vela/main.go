// Command vela runs Vela source files and hosts an interactive REPL.
package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"vela-lang/internal/history"
	"vela-lang/internal/history/dynamostore"
	"vela-lang/internal/history/sqlitestore"
	"vela-lang/internal/pipeline"
)

const version = "0.1.0"

func main() {
	disassemble := flag.Bool("disassemble", false, "print bytecode disassembly before running")
	historyPath := flag.String("history", "", "path to a SQLite file recording every run")
	historyTable := flag.String("history-table", "", "DynamoDB table recording every run (mutually exclusive with -history)")
	showVersion := flag.Bool("version", false, "print version information and exit")

	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "Usage: %s [options] [script]\n\n", os.Args[0])
		fmt.Fprintln(out, "With no script, starts an interactive REPL.")
		fmt.Fprintln(out, "Options:")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("vela %s\n", version)
		return
	}

	store, err := openHistoryStore(*historyPath, *historyTable)
	if err != nil {
		log.Printf("history store disabled: %v", err)
		store = nil
	}
	if store != nil {
		defer store.Close()
	}

	switch args := flag.Args(); len(args) {
	case 0:
		runREPL(store, *disassemble)
	case 1:
		runFile(args[0], store, *disassemble)
	default:
		flag.CommandLine.SetOutput(os.Stdout)
		flag.Usage()
		os.Exit(1)
	}
}

func openHistoryStore(path, table string) (history.Store, error) {
	switch {
	case path != "" && table != "":
		return nil, fmt.Errorf("-history and -history-table are mutually exclusive")
	case table != "":
		return dynamostore.Open(context.Background(), table)
	case path != "":
		return sqlitestore.Open(path)
	default:
		return nil, nil
	}
}

func runFile(path string, store history.Store, disassemble bool) {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %s\n", err)
		os.Exit(1)
	}
	if execute(string(src), store, disassemble) {
		os.Exit(1)
	}
}

func runREPL(store history.Store, disassemble bool) {
	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	if interactive {
		fmt.Printf("Vela %s\n", version)
		fmt.Println("Press Ctrl+D to exit.")
	}

	in := bufio.NewScanner(os.Stdin)
	for {
		if interactive {
			fmt.Print(">>> ")
		}
		if !in.Scan() {
			break
		}
		line := in.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		// Each line is compiled and run from scratch: the REPL does not
		// persist compiler or VM state between lines.
		execute(line, store, disassemble)
	}
	if interactive {
		fmt.Println()
	}
}

// execute compiles and runs source, recording it to store if one is
// configured, and reports whether the run failed.
func execute(source string, store history.Store, disassemble bool) bool {
	start := time.Now()

	var buf *bytes.Buffer
	var w io.Writer = os.Stdout
	if store != nil {
		buf = &bytes.Buffer{}
		w = io.MultiWriter(os.Stdout, buf)
	}

	var runErr error
	ch, compileErr := pipeline.Compile(source, w)
	if compileErr != nil {
		runErr = compileErr
	} else {
		if disassemble {
			fmt.Fprint(w, ch.Disassemble("main"))
		}
		runErr = pipeline.Execute(ch, w)
	}

	if store != nil {
		rec := history.Record{
			ID:       uuid.NewString(),
			Source:   source,
			Output:   buf.String(),
			Failed:   runErr != nil,
			Duration: time.Since(start),
		}
		if runErr != nil {
			rec.ErrorMessage = runErr.Error()
		}
		if err := store.Append(context.Background(), rec); err != nil {
			log.Printf("history append failed: %v", err)
		}
	}

	return runErr != nil
}
