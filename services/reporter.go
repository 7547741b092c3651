package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"asin-insights/models"
)

const reportWidth = 64

// PrintRunReport formats the run summary and per-identifier highlights
func PrintRunReport(w io.Writer, result *models.RunResult) {
	border := strings.Repeat("═", reportWidth)
	thin := strings.Repeat("─", reportWidth)

	fmt.Fprintf(w, "\n╔%s╗\n", border)
	fmt.Fprintf(w, "║%s║\n", center("COMPETITIVE INSIGHTS", reportWidth))
	fmt.Fprintf(w, "╚%s╝\n", border)

	p := result.Portfolio
	fmt.Fprintf(w, "\n PORTFOLIO\n%s\n", thin)
	fmt.Fprintf(w, "  Source file             : %s\n", result.FileName)
	fmt.Fprintf(w, "  Run                     : %s\n", result.RunID)
	fmt.Fprintf(w, "  Identifiers processed   : %d\n", p.ASINsProcessed)
	fmt.Fprintf(w, "  Average rating          : %.1f\n", p.AvgRating)
	fmt.Fprintf(w, "  Average price           : $%.2f\n", p.AvgPrice)
	fmt.Fprintf(w, "  Est. daily clicks       : %d\n", p.TotalEstClicks)
	fmt.Fprintf(w, "  Average priority score  : %.3f\n", p.AvgPriorityScore)

	if len(result.ASINs) == 0 {
		fmt.Fprintf(w, "\n%s\n\n", border)
		return
	}

	// Highest priority first; ties keep input order
	items := make([]models.ProcessedAsinData, len(result.ASINs))
	copy(items, result.ASINs)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Insights.PriorityScore > items[j].Insights.PriorityScore
	})

	fmt.Fprintf(w, "\n PRIORITY RANKING\n%s\n", thin)
	for i, item := range items {
		bar := strings.Repeat("▓", int(item.Insights.PriorityScore*20+0.5))
		fmt.Fprintf(w, "  %d. %-10s %-28s %.3f  %s\n", i+1, item.ASIN,
			truncate(item.Label, 28), item.Insights.PriorityScore, bar)
	}

	for _, item := range items {
		in := item.Insights
		fmt.Fprintf(w, "\n %s  %s\n%s\n", item.ASIN, truncate(item.Target.ProductName, 45), thin)
		fmt.Fprintf(w, "  Price $%.2f (%s)  Rating %.1f  Clicks share %.0f%%\n",
			item.Target.Price, in.PricePosition, item.Target.AvgRating, in.ClicksShare*100)
		fmt.Fprintf(w, "  Gaps: top-4 %.1f  page-1 %.1f  reviews %d\n", in.KW4Gap, in.KWP1Gap, in.ReviewsDeficit)
		if len(in.Actions) == 0 {
			fmt.Fprintf(w, "  No actions recommended\n")
		}
		for i, a := range in.Actions {
			fmt.Fprintf(w, "  %d) [%-4s] %s\n", i+1, a.Effort, truncate(a.Title, 52))
		}
	}

	fmt.Fprintf(w, "\n%s\n\n", border)
}

func center(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return s
	}
	pad := (width - len(runes)) / 2
	return strings.Repeat(" ", pad) + s + strings.Repeat(" ", width-len(runes)-pad)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
