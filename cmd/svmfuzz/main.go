// Package main implements the svmfuzz entry point: two stdin prompts
// (spec §6), with an optional flag override pair for scripted runs.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"svmfuzz/core/fuzzloop"
	"svmfuzz/core/key"
)

const defaultIterations = 10_000

func main() {
	programFlag := flag.String("program", "", "path to the program artifact (skips the stdin prompt)")
	iterationsFlag := flag.Int("iterations", 0, "iteration count (skips the stdin prompt)")
	outDirFlag := flag.String("out", ".", "working directory for crashes/ and bugs/")
	flag.Parse()

	reader := bufio.NewReader(os.Stdin)

	programPath := *programFlag
	if programPath == "" {
		programPath = prompt(reader, "Path to program artifact: ")
	}

	iterations := *iterationsFlag
	if iterations <= 0 {
		iterations = promptIterations(reader)
	}

	programBytes, err := os.ReadFile(programPath)
	if err != nil {
		// Program artifact absent ⇒ empty byte buffer (spec §6); the VM is
		// a tracer, not an interpreter, so a missing file is never fatal.
		programBytes = nil
	}

	programID := key.Digest([]byte("svmfuzz-program"), []byte(programPath))

	driver := fuzzloop.New(fuzzloop.Config{
		ProgramID:    programID,
		ProgramBytes: programBytes,
		Iterations:   iterations,
		OutDir:       *outDirFlag,
	})

	log.Printf("[fuzz] starting %d iterations against %s (program_id=%s)", iterations, programPath, programID.Hex())
	if err := driver.Run(); err != nil {
		log.Printf("[fuzz] aborting: %v", err)
		os.Exit(1)
	}
	log.Printf("[fuzz] completed %d iterations", iterations)
}

func prompt(r *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptIterations(r *bufio.Reader) int {
	raw := prompt(r, "Iteration count: ")
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return defaultIterations
	}
	return int(n)
}
