package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/company-insights/internal/observability"
)

var (
	analyzeURL       string
	analyzeQuestions []string
	analyzeJSON      bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a company website once and print the result",
	Example: `  insights_agent analyze --url https://example.com
  insights_agent analyze --url https://example.com -q "Who are their customers?" -q "Where are they based?"`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeURL, "url", "u", "", "Company homepage URL")
	analyzeCmd.Flags().StringArrayVarP(&analyzeQuestions, "question", "q", nil, "Question to answer (repeatable)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the raw JSON result")
	_ = analyzeCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	if err := appConfig.RequireSecrets(false); err != nil {
		return err
	}

	svc, err := newServices(cmd.Context(), appConfig, logger)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	result, err := svc.analyzer.Analyze(cmd.Context(), analyzeURL, analyzeQuestions)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if analyzeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printer := observability.NewPrinter(os.Stdout)
	printer.PrintCompanyInfo(result.URL, &result.CompanyInfo)
	printer.PrintAnswers(result.ExtractedAnswers)
	return nil
}
