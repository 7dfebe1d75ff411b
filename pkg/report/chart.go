package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	chartWidth  = "100%"
	chartHeight = "500px"
	xAxisRotate = 45
	pageTitle   = "sasspipe"
	seriesColor = "#c6538c"
	accentColor = "#4a90d9"
	kibibyte    = 1024.0
)

func newBar(title, subtitle, yName string, labels []string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight, PageTitle: pageTitle}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: xAxisRotate, Interval: "0"}}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
	)
	bar.SetXAxis(labels)

	return bar
}

func barData[T int | int64 | float64](values []T) []opts.BarData {
	data := make([]opts.BarData, len(values))
	for i, v := range values {
		data[i] = opts.BarData{Value: v}
	}

	return data
}

func renderPage(w io.Writer, bars ...*charts.Bar) error {
	page := components.NewPage()
	page.SetPageTitle(pageTitle)
	page.SetLayout(components.PageFlexLayout)

	for _, bar := range bars {
		page.AddCharts(bar)
	}

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("html render: %w", err)
	}

	return nil
}

func writeDependenciesHTML(w io.Writer, root string, deps []Dependencies) error {
	labels := make([]string, len(deps))
	counts := make([]int, len(deps))
	sizes := make([]float64, len(deps))

	for i, entry := range deps {
		labels[i] = display(root, entry.Entry)
		counts[i] = len(entry.Files)
		sizes[i] = float64(entry.TotalBytes()) / kibibyte
	}

	countBar := newBar("Dependencies per entry", "transitive imports", "files", labels)
	countBar.AddSeries("Dependencies", barData(counts), charts.WithItemStyleOpts(opts.ItemStyle{Color: seriesColor}))

	sizeBar := newBar("Imported source size", "sum of dependency sizes", "KiB", labels)
	sizeBar.AddSeries("Size", barData(sizes), charts.WithItemStyleOpts(opts.ItemStyle{Color: accentColor}))

	return renderPage(w, countBar, sizeBar)
}

func writeBuildHTML(w io.Writer, summary BuildSummary) error {
	labels := make([]string, len(summary.Files))
	cssSizes := make([]float64, len(summary.Files))
	seconds := make([]float64, len(summary.Files))

	for i, f := range summary.Files {
		labels[i] = f.Entry
		cssSizes[i] = float64(f.CSSBytes) / kibibyte
		seconds[i] = f.Seconds
	}

	sizeBar := newBar("CSS output size", fmt.Sprintf("%d entries", len(summary.Files)), "KiB", labels)
	sizeBar.AddSeries("CSS", barData(cssSizes), charts.WithItemStyleOpts(opts.ItemStyle{Color: seriesColor}))

	timeBar := newBar("Compile time", "per entry", "seconds", labels)
	timeBar.AddSeries("Time", barData(seconds), charts.WithItemStyleOpts(opts.ItemStyle{Color: accentColor}))

	return renderPage(w, sizeBar, timeBar)
}
