// Package main provides the Eddy runtime CLI.
package main

import (
	"fmt"
	"os"

	"github.com/eddy-ml/eddy/vm"
)

const version = "v0.0.1-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("Eddy Runtime %s\n", version)
			return
		case "env":
			printEnv(os.Args[2:])
			return
		}
	}

	fmt.Println("Eddy - Distributed Tensor Runtime for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  env        Show the effective runtime configuration")
}

func printEnv(args []string) {
	cfg := vm.DefaultConfig()
	if len(args) > 0 {
		loaded, err := vm.LoadConfig(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "eddy: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	fmt.Printf("workers:            %d\n", cfg.VM.Workers)
	fmt.Printf("submit queue depth: %d\n", cfg.VM.SubmitQueueDepth)
	fmt.Printf("default device:     %s\n", cfg.DefaultDevice)
	fmt.Printf("process rank:       %d\n", cfg.ProcessRank)
}
