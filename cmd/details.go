package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"propscout/models"
	"propscout/scraper"
	"propscout/services"
)

var detailsURL string

var detailsCmd = &cobra.Command{
	Use:   "details",
	Short: "Scrape one listing page and print it as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := scraper.ValidateListingURL(detailsURL); err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		d, err := a.scraper.ListingDetails(ctx, detailsURL)
		if err != nil {
			return fmt.Errorf("details %s: %w", detailsURL, err)
		}

		p := services.MergeDetails(models.Property{URL: detailsURL}, *d)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

func init() {
	detailsCmd.Flags().StringVarP(&detailsURL, "url", "u", "", "listing URL")
	_ = detailsCmd.MarkFlagRequired("url")
}
