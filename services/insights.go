package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"propscout/models"
	"propscout/scraper/extract"
	"propscout/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

func (s *InsightService) Generate(props []models.Property) *models.InsightReport {
	report := &models.InsightReport{
		BySource:   make(map[string]int),
		ByPostcode: make(map[string]int),
		TopYield:   []*models.Property{},
	}

	if len(props) == 0 {
		return report
	}

	report.TotalProperties = len(props)

	var priced []*models.Property
	var withYield []*models.Property

	for i := range props {
		p := &props[i]
		if p.Source != "" {
			report.BySource[p.Source]++
		}
		if p.Price > 0 {
			priced = append(priced, p)
		}
		if p.Yield != nil {
			withYield = append(withYield, p)
		}
		if p.Postcode != "" {
			report.ByPostcode[p.Postcode]++
		}
		for _, f := range p.Flags {
			switch f {
			case extract.FlagReduced:
				report.ReducedCount++
			case extract.FlagModernisation:
				report.ModernisationCount++
			}
		}
	}

	if len(priced) > 0 {
		report.MinPrice = priced[0].Price
		report.MaxPrice = priced[0].Price
		report.MostExpensive = priced[0]
		var total float64
		for _, p := range priced {
			total += float64(p.Price)
			if p.Price < report.MinPrice {
				report.MinPrice = p.Price
			}
			if p.Price > report.MaxPrice {
				report.MaxPrice = p.Price
				report.MostExpensive = p
			}
		}
		report.AveragePrice = round2(total / float64(len(priced)))
	}

	if len(withYield) > 0 {
		var total float64
		for _, p := range withYield {
			total += *p.Yield
		}
		report.AverageYield = round2(total / float64(len(withYield)))
	}

	// Top 5 by yield
	sort.SliceStable(withYield, func(i, j int) bool {
		return *withYield[i].Yield > *withYield[j].Yield
	})
	if len(withYield) > 5 {
		report.TopYield = withYield[:5]
	} else {
		report.TopYield = withYield
	}

	s.logger.Debug("[insights] Report over %d properties", report.TotalProperties)
	return report
}

// Print writes the report to stdout.
func (s *InsightService) Print(r *models.InsightReport) {
	s.Fprint(os.Stdout, r)
}

func (s *InsightService) Fprint(w io.Writer, r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🏠 PROPERTY MARKET INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total properties : \033[1m%d\033[0m\n", r.TotalProperties)
	for _, src := range sortedKeys(r.BySource) {
		fmt.Fprintf(w, "  %-16s : \033[1m%d\033[0m\n", src, r.BySource[src])
	}
	fmt.Fprintf(w, "  Reduced in price : \033[1m%d\033[0m\n", r.ReducedCount)
	fmt.Fprintf(w, "  Need modernising : \033[1m%d\033[0m\n", r.ModernisationCount)
	fmt.Fprintln(w)

	// Price Stats
	fmt.Fprintf(w, "\033[1;33m  Asking Prices\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.AveragePrice > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32m£%s\033[0m\n", formatPounds(int(r.AveragePrice+0.5)))
		fmt.Fprintf(w, "  Minimum price : \033[1;32m£%s\033[0m\n", formatPounds(r.MinPrice))
		fmt.Fprintf(w, "  Maximum price : \033[1;32m£%s\033[0m\n", formatPounds(r.MaxPrice))
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	if r.MostExpensive != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Expensive Property\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.MostExpensive.Address, 50))
		fmt.Fprintf(w, "  Price : \033[1;31m£%s\033[0m\n", formatPounds(r.MostExpensive.Price))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\033[1;33m  Top 5 Estimated Yields (avg %.2f%%)\033[0m\n", r.AverageYield)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.TopYield) == 0 {
		fmt.Fprintf(w, "  No yield data\n")
	} else {
		for i, p := range r.TopYield {
			fmt.Fprintf(w, "  \033[1m%d.\033[0m %-40s \033[1;32m%.2f%%\033[0m\n",
				i+1, truncate(p.Address, 38), *p.Yield)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Properties by Postcode\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ByPostcode) == 0 {
		fmt.Fprintf(w, "  No postcode data\n")
	} else {
		type pcCount struct {
			pc    string
			count int
		}
		var pcs []pcCount
		for pc, cnt := range r.ByPostcode {
			pcs = append(pcs, pcCount{pc, cnt})
		}
		sort.Slice(pcs, func(i, j int) bool {
			if pcs[i].count != pcs[j].count {
				return pcs[i].count > pcs[j].count
			}
			return pcs[i].pc < pcs[j].pc
		})
		for _, pc := range pcs {
			bar := strings.Repeat("█", pc.count)
			fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(pc.pc, 28), bar, pc.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatPounds renders 1250000 as "1,250,000".
func formatPounds(n int) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return "-" + formatPounds(-n)
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}
