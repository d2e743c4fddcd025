package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/threatforge/threatforge/internal/job"
	"github.com/threatforge/threatforge/internal/types"
)

var (
	analyzeTitle        string
	analyzeFile         string
	analyzeMode         string
	analyzeIteration    int
	analyzeDiagram      string
	analyzeAssumptions  []string
	analyzeInstructions string
	analyzeTimeout      time.Duration
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one threat-modeling job and print the catalog",
	Long: `Analyze submits a single job, polls it to completion, and prints the
resulting threat catalog as JSON. The system description is read from
--file, or from stdin when --file is omitted.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeTitle, "title", "t", "", "System title (required)")
	analyzeCmd.Flags().StringVarP(&analyzeFile, "file", "f", "", "System description file (stdin when omitted)")
	analyzeCmd.Flags().StringVarP(&analyzeMode, "mode", "m", "graph", "Execution mode: graph or agentic")
	analyzeCmd.Flags().IntVarP(&analyzeIteration, "iteration", "i", 0, "Improvement passes (0 lets gap analysis decide)")
	analyzeCmd.Flags().StringVar(&analyzeDiagram, "diagram", "", "Architecture diagram reference")
	analyzeCmd.Flags().StringArrayVar(&analyzeAssumptions, "assume", nil, "Analysis assumption (repeatable)")
	analyzeCmd.Flags().StringVar(&analyzeInstructions, "instructions", "", "Additional analysis instructions")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 30*time.Minute, "Maximum time to wait for the job")

	analyzeCmd.MarkFlagRequired("title")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	description, err := readDescription()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := cfg.Logger()
	manager, cleanup, err := buildManager(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	id, err := manager.StartNew(ctx, job.Submission{
		Title:        analyzeTitle,
		Description:  description,
		Assumptions:  analyzeAssumptions,
		Instructions: analyzeInstructions,
		DiagramRef:   analyzeDiagram,
		Mode:         types.ExecutionMode(analyzeMode),
		Iteration:    analyzeIteration,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "job %s started\n", id)

	if _, err := manager.PollUntilDone(ctx, id, 0, analyzeTimeout); err != nil {
		return err
	}

	results, err := manager.GetResults(ctx, id)
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func readDescription() (string, error) {
	if analyzeFile != "" {
		data, err := os.ReadFile(analyzeFile)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil || len(data) == 0 {
		return "", types.NewError(types.SUBMISSION_INVALID, "no description: provide --file or pipe stdin")
	}
	return string(data), nil
}
