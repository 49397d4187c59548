package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shopbot-ai/shopbot/internal/agent"
	"github.com/shopbot-ai/shopbot/internal/app"
	"github.com/shopbot-ai/shopbot/internal/catalog"
	"github.com/shopbot-ai/shopbot/internal/config"
)

var (
	askImagePath string
	askStream    bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the shopping assistant a one-shot question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askImagePath, "image", "", "image file to search with")
	askCmd.Flags().BoolVar(&askStream, "stream", false, "print the answer as it is generated")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	req := agent.Request{Message: strings.Join(args, " ")}
	if askImagePath != "" {
		img, err := os.ReadFile(askImagePath)
		if err != nil {
			return fmt.Errorf("reading image: %w", err)
		}
		req.Image = img
	}

	if askStream {
		for ev := range a.Agent.ChatStream(ctx, req) {
			switch ev.Type {
			case agent.EventContent:
				fmt.Print(ev.Content)
			case agent.EventComplete:
				fmt.Println()
				printProducts(ev.Products, ev.ToolUsed)
			case agent.EventError:
				fmt.Println()
				return fmt.Errorf("generating answer: %w", ev.Err)
			}
		}
		return nil
	}

	turn, err := a.Agent.Chat(ctx, req)
	if err != nil {
		return fmt.Errorf("generating answer: %w", err)
	}
	fmt.Println(turn.Reply)
	printProducts(turn.Products, turn.ToolUsed)
	return nil
}

func printProducts(products []catalog.Product, toolUsed string) {
	if toolUsed == "" || len(products) == 0 {
		return
	}
	fmt.Printf("\nMatched products (%s):\n", toolUsed)
	for i, p := range products {
		fmt.Printf("  %d. %s - $%.2f\n", i+1, p.Name, p.Price)
	}
}
