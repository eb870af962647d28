package report

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/faanross/RCR-payload-jitter/analysis"
)

const histogramBins = 50

const (
	plotWidth    = 720
	plotHeight   = 320
	marginLeft   = 50
	marginRight  = 15
	marginTop    = 15
	marginBottom = 40
)

// histogramSVG renders a fixed-bin histogram of the sample as an inline SVG.
// When a mask is supplied the normal and outlier points are drawn as separate
// overlaid series, and when an adjusted range is supplied its bounds are
// drawn as dashed vertical markers.
func histogramSVG(sample []float64, normalMask []bool, adjustedRange *analysis.Range) template.HTML {
	if len(sample) == 0 {
		return ""
	}

	min, max := sample[0], sample[0]
	for _, value := range sample {
		if value < min {
			min = value
		}
		if value > max {
			max = value
		}
	}

	// a flat sample still gets a single visible bar
	span := max - min
	if span == 0 {
		span = 1
	}
	binWidth := span / histogramBins

	normalCounts := make([]int, histogramBins)
	outlierCounts := make([]int, histogramBins)
	for i, value := range sample {
		bin := int((value - min) / binWidth)
		if bin >= histogramBins {
			bin = histogramBins - 1
		}
		if normalMask != nil && !normalMask[i] {
			outlierCounts[bin]++
		} else {
			normalCounts[bin]++
		}
	}

	maxCount := 1
	for i := 0; i < histogramBins; i++ {
		if normalCounts[i] > maxCount {
			maxCount = normalCounts[i]
		}
		if outlierCounts[i] > maxCount {
			maxCount = outlierCounts[i]
		}
	}

	innerWidth := float64(plotWidth - marginLeft - marginRight)
	innerHeight := float64(plotHeight - marginTop - marginBottom)
	barWidth := innerWidth / histogramBins

	xPos := func(bin int) float64 {
		return marginLeft + float64(bin)*barWidth
	}
	barHeight := func(count int) float64 {
		return innerHeight * float64(count) / float64(maxCount)
	}

	var svg strings.Builder
	fmt.Fprintf(&svg, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%d" height="%d">`,
		plotWidth, plotHeight, plotWidth, plotHeight)

	// axes
	fmt.Fprintf(&svg, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#999"/>`,
		marginLeft, plotHeight-marginBottom, plotWidth-marginRight, plotHeight-marginBottom)
	fmt.Fprintf(&svg, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#999"/>`,
		marginLeft, marginTop, marginLeft, plotHeight-marginBottom)

	// bars
	for bin := 0; bin < histogramBins; bin++ {
		if normalCounts[bin] > 0 {
			h := barHeight(normalCounts[bin])
			fmt.Fprintf(&svg, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="skyblue" fill-opacity="0.6"/>`,
				xPos(bin), float64(plotHeight-marginBottom)-h, barWidth, h)
		}
		if outlierCounts[bin] > 0 {
			h := barHeight(outlierCounts[bin])
			fmt.Fprintf(&svg, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="red" fill-opacity="0.3"/>`,
				xPos(bin), float64(plotHeight-marginBottom)-h, barWidth, h)
		}
	}

	// dashed markers at the adjusted range bounds
	if adjustedRange != nil {
		for _, bound := range []float64{adjustedRange.Min, adjustedRange.Max} {
			x := marginLeft + innerWidth*(bound-min)/span
			if x < marginLeft {
				x = marginLeft
			}
			if x > float64(plotWidth-marginRight) {
				x = float64(plotWidth - marginRight)
			}
			fmt.Fprintf(&svg, `<line x1="%.1f" y1="%d" x2="%.1f" y2="%d" stroke="red" stroke-dasharray="6,4"/>`,
				x, marginTop, x, plotHeight-marginBottom)
		}
	}

	// axis labels
	fmt.Fprintf(&svg, `<text x="%d" y="%d" font-size="12" fill="#333">%.0f</text>`,
		marginLeft, plotHeight-marginBottom+16, min)
	fmt.Fprintf(&svg, `<text x="%d" y="%d" font-size="12" fill="#333" text-anchor="end">%.0f</text>`,
		plotWidth-marginRight, plotHeight-marginBottom+16, max)
	fmt.Fprintf(&svg, `<text x="%d" y="%d" font-size="12" fill="#333" text-anchor="middle">Bytes</text>`,
		marginLeft+int(innerWidth/2), plotHeight-8)
	fmt.Fprintf(&svg, `<text x="%d" y="%d" font-size="12" fill="#333" transform="rotate(-90 14 %d)">Connection Count</text>`,
		14, marginTop+int(innerHeight/2), marginTop+int(innerHeight/2))
	fmt.Fprintf(&svg, `<text x="%d" y="%d" font-size="12" fill="#333" text-anchor="end">%d</text>`,
		marginLeft-6, marginTop+10, maxCount)

	svg.WriteString(`</svg>`)

	//nolint:gosec
	return template.HTML(svg.String())
}
