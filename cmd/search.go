package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"propscout/models"
	"propscout/services"
	"propscout/storage"
)

var (
	searchParams models.SearchParams
	searchCSV    string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one portal search and print a market summary",
	Long: `search scrapes result pages for --location, prints an insight report
and optionally writes the properties to a CSV file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		params := a.scraper.Normalize(searchParams)
		props, ok := a.store.Search(params)
		if !ok {
			props, err = a.scraper.SearchResults(ctx, params)
			if err != nil {
				return fmt.Errorf("search %s: %w", params.Location, err)
			}
			a.store.SaveSearch(params, props)
		}

		if len(props) == 0 {
			a.logger.Warn("[app] No properties found for %s", params.Location)
			return nil
		}

		if searchCSV != "" {
			w, err := storage.NewCSVWriter(searchCSV)
			if err != nil {
				return err
			}
			if err := w.Write(props); err != nil {
				w.Close()
				return fmt.Errorf("write csv: %w", err)
			}
			if err := w.Close(); err != nil {
				return err
			}
			a.logger.Info("[app] %d properties saved to %s", len(props), searchCSV)
		}

		insights := services.NewInsightService(a.logger)
		insights.Print(insights.Generate(props))
		return nil
	},
}

func init() {
	f := searchCmd.Flags()
	f.StringVarP(&searchParams.Location, "location", "l", "Manchester", "town, city or region")
	f.StringVarP(&searchParams.Source, "source", "s", "", "portal: rightmove or zoopla")
	f.IntVar(&searchParams.MinPrice, "min-price", 0, "minimum asking price")
	f.IntVar(&searchParams.MaxPrice, "max-price", 0, "maximum asking price")
	f.IntVar(&searchParams.MinBedrooms, "bedrooms", 0, "minimum bedrooms")
	f.IntVar(&searchParams.MaxBedrooms, "max-bedrooms", 0, "maximum bedrooms")
	f.StringVar(&searchParams.PropertyType, "type", "", "keep only this property type")
	f.Float64Var(&searchParams.Radius, "radius", 0, "search radius in miles")
	f.IntVar(&searchParams.MaxPages, "pages", 0, "result pages to scrape (default DEFAULT_MAX_PAGES)")
	f.StringVar(&searchCSV, "csv", "", "also write results to this CSV file")
}
