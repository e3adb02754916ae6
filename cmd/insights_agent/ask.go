package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/company-insights/internal/conversation"
	"github.com/jonathan/company-insights/internal/observability"
)

var (
	askURL   string
	askQuery string
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask questions about a company website",
	Long: `Ask a question about a website. With --query a single answer is printed; without it, questions
are read line by line from stdin and each answer is grounded on the earlier ones.`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askURL, "url", "u", "", "Company homepage URL")
	askCmd.Flags().StringVar(&askQuery, "query", "", "Question to ask (omit for an interactive session)")
	_ = askCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, _ []string) error {
	if err := appConfig.RequireSecrets(false); err != nil {
		return err
	}

	svc, err := newServices(cmd.Context(), appConfig, logger)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	printer := observability.NewPrinter(os.Stdout)
	if askQuery != "" {
		return askOnce(cmd, svc.agent, printer, askQuery)
	}
	return askLoop(cmd, svc.agent, printer, os.Stdin)
}

func askOnce(cmd *cobra.Command, agent *conversation.Agent, printer *observability.Printer, query string) error {
	exchange, err := agent.Converse(cmd.Context(), askURL, query, nil)
	if err != nil {
		return fmt.Errorf("conversation failed: %w", err)
	}
	printer.PrintConversation(exchange)
	return nil
}

func askLoop(cmd *cobra.Command, agent *conversation.Agent, printer *observability.Printer, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(cmd.OutOrStdout(), "> ")
	for scanner.Scan() {
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			fmt.Fprint(cmd.OutOrStdout(), "> ")
			continue
		}
		if err := askOnce(cmd, agent, printer, query); err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), "> ")
	}
	return scanner.Err()
}
