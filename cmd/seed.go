package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shopbot-ai/shopbot/internal/app"
	"github.com/shopbot-ai/shopbot/internal/config"
)

var seedProductsPath string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Embed the product catalog into the similarity store",
	Long: `Seed loads a JSON array of products, embeds each product's name,
description, and tags into the text partition, and each product image into
the image partition. Re-running replaces existing entries by product ID.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedProductsPath, "products", "", "path to products.json (overrides config)")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	path := cfg.ProductsPath
	if seedProductsPath != "" {
		path = seedProductsPath
	}

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	sum, err := a.Seeder.SeedFile(ctx, path)
	if err != nil {
		return fmt.Errorf("seeding catalog: %w", err)
	}

	fmt.Printf("Seeded %d products into the text partition, %d into the image partition",
		sum.TextIndexed, sum.ImageIndexed)
	if sum.Skipped > 0 {
		fmt.Printf(" (%d skipped)", sum.Skipped)
	}
	fmt.Println()
	return nil
}
