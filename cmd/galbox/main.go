package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/PyuraMazo/galgame-box/pkg/config"
)

var (
	version   = "dev"
	gitCommit string
)

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func printVersion() {
	fmt.Printf("galbox %s\n", formatVersion())
	fmt.Printf("  Go: %s\n", runtime.Version())
}

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "gateway":
		gatewayCmd(false)
	case "console":
		gatewayCmd(true)
	case "version", "--version", "-v":
		printVersion()
	case "help", "--help", "-h":
		printHelp()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Printf("galbox - visual novel lookup bot v%s\n\n", version)
	fmt.Println("Usage: galbox <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  gateway     Start the bot on the configured chat channels")
	fmt.Println("  console     Start the bot on the local console only")
	fmt.Println("  version     Show version information")
}

func getConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".galbox", "config.json")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(getConfigPath())
}
