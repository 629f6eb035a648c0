// Package main provides the entry point for the syllabus analyzer CLI and HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "syllabus_agent",
	Short:         "Syllabus Industry-Alignment Analyzer",
	Long:          "Syllabus Agent scores how well a course syllabus matches current industry demand, weights its subjects, and maps them to marketable skills.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
