package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"
)

const (
	priceBarWidth   = 4
	priceBarGap     = 2
	priceChartLines = 6
)

// priceChartHeight is the number of lines renderPriceChart occupies.
func priceChartHeight() int {
	// title + bars + labels
	return 1 + priceChartLines + 1
}

// renderPriceChart draws the visible courses' prices as bars, the selected
// course highlighted.
func (m *Model) renderPriceChart(width int) string {
	cards := m.page.Cards
	if len(cards) == 0 {
		return ""
	}

	var maxPrice uint64
	for _, c := range cards {
		maxPrice = max(maxPrice, c.Price)
	}
	title := chartTitleStyle.Render("Prices") + helpStyle.Render(fmt.Sprintf("  max %d", maxPrice))

	slot := priceBarWidth + priceBarGap
	bars := min(len(cards), max(1, width/slot))
	chartWidth := bars * slot

	bc := barchart.New(chartWidth, priceChartLines,
		barchart.WithBarGap(priceBarGap),
		barchart.WithBarWidth(priceBarWidth),
		barchart.WithNoAxis(),
	)

	normal := lipgloss.NewStyle().Foreground(ColorPrice).Background(ColorPrice)
	hot := lipgloss.NewStyle().Foreground(ColorPriceHot).Background(ColorPriceHot)

	var labels strings.Builder
	for i := 0; i < bars; i++ {
		style := normal
		if i == m.selected {
			style = hot
		}
		bc.Push(barchart.BarData{
			Label: "",
			Values: []barchart.BarValue{
				{Name: cards[i].Title, Value: float64(cards[i].Price), Style: style},
			},
		})
		labels.WriteString(fmt.Sprintf("%-*s", slot, courseCode(cards[i].Title, priceBarWidth)))
	}

	bc.Draw()
	return lipgloss.JoinVertical(lipgloss.Left, title, bc.View(), helpStyle.Render(labels.String()))
}

// courseCode returns the leading token of a title ("O101 - Meet Onat" → "O101"),
// cut to width.
func courseCode(title string, width int) string {
	code := title
	if fields := strings.Fields(title); len(fields) > 0 {
		code = fields[0]
	}
	if len(code) > width {
		code = code[:width]
	}
	return code
}
