package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/verte-zerg/moadil/internal/grades"
)

// Series is a named line on a grade chart.
type Series struct {
	Name   string
	Values []float64
}

// PlotOptions controls chart rendering. Zero Width uses the terminal width,
// zero Height uses defaultPlotHeight.
type PlotOptions struct {
	MaxGrade float64
	Width    int
	Height   int
	Color    bool
}

type dashPattern struct {
	name   string
	period int
	on     int
}

const (
	defaultPlotHeight   = 10
	minPlotWidth        = 10
	axisSeparator       = " │ "
	terminalWidthBackup = 80
)

var dashPatterns = []dashPattern{
	{name: "solid", period: 1, on: 1},
	{name: "dotted", period: 4, on: 1},
	{name: "dashed", period: 6, on: 3},
}

var seriesColors = []string{"\x1b[36m", "\x1b[33m", "\x1b[35m"}

// PlotGrades draws series as braille lines on an axis from 0 to MaxGrade.
// The pass mark is labelled on the axis. Values outside the scale are
// clamped to its edges.
func PlotGrades(w io.Writer, title string, series []Series, opts PlotOptions) error {
	series = nonEmptySeries(series)
	if len(series) == 0 {
		return nil
	}
	maxGrade := opts.MaxGrade
	if maxGrade <= 0 {
		maxGrade = grades.DefaultMax
	}
	height := opts.Height
	if height <= 0 {
		height = defaultPlotHeight
	}
	labels := axisLabels(height, maxGrade)
	labelWidth := 0
	for _, l := range labels {
		labelWidth = max(labelWidth, runewidth.StringWidth(l))
	}
	width := opts.Width
	if width <= 0 {
		width = PlotWidthFor(TerminalWidth(), labelWidth)
	}
	width = max(width, minPlotWidth)

	layers := make([][][]uint8, len(series))
	for i, s := range series {
		layers[i] = drawSeries(resample(s.Values, width), dashPatterns[i%len(dashPatterns)], width, height, maxGrade)
	}

	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	for y := 0; y < height; y++ {
		var row strings.Builder
		row.WriteString(runewidth.FillLeft(labels[y], labelWidth))
		row.WriteString(axisSeparator)
		for x := 0; x < width; x++ {
			mask, layer := mergeCell(layers, x, y)
			ch := rune(0x2800 + int(mask))
			if opts.Color && layer >= 0 {
				row.WriteString(seriesColors[layer%len(seriesColors)])
				row.WriteRune(ch)
				row.WriteString(colorReset)
				continue
			}
			row.WriteRune(ch)
		}
		if _, err := fmt.Fprintln(w, row.String()); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, legend(series, opts.Color))
	return err
}

// PlotWidthFor returns the chart width that fits totalWidth next to an axis
// of labelWidth columns.
func PlotWidthFor(totalWidth, labelWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	return max(totalWidth-labelWidth-runewidth.StringWidth(axisSeparator), minPlotWidth)
}

// TerminalWidth reports the width of stdout, or 80 when it is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// UseColor reports whether ANSI colors should be written to w. NO_COLOR
// always wins; otherwise force or a terminal enables color.
func UseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func nonEmptySeries(series []Series) []Series {
	out := make([]Series, 0, len(series))
	for _, s := range series {
		if len(s.Values) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func axisLabels(height int, maxGrade float64) []string {
	labels := make([]string, height)
	labels[0] = grades.FormatGrade(maxGrade)
	if height > 1 {
		labels[height-1] = "0"
	}
	if height > 2 {
		labels[gradeRow(PassMark(maxGrade), maxGrade, height*4)/4] = grades.FormatGrade(PassMark(maxGrade))
	}
	return labels
}

// drawSeries plots values into a height x width grid of braille masks. Each
// cell holds 2x4 dots.
func drawSeries(values []float64, dash dashPattern, width, height int, maxGrade float64) [][]uint8 {
	cells := make([][]uint8, height)
	for y := range cells {
		cells[y] = make([]uint8, width)
	}
	plot := func(x, y int) {
		if dash.period > 1 && x%dash.period >= dash.on {
			return
		}
		if y < 0 || y >= height*4 || x < 0 || x >= width*2 {
			return
		}
		cells[y/4][x/2] |= brailleDot(x%2, y%4)
	}
	prevX, prevY := -1, -1
	for i, v := range values {
		x, y := i*2, gradeRow(v, maxGrade, height*4)
		if prevX < 0 {
			plot(x, y)
		} else {
			bresenham(prevX, prevY, x, y, plot)
		}
		prevX, prevY = x, y
	}
	return cells
}

// gradeRow maps v onto dot rows, row 0 being maxGrade.
func gradeRow(v, maxGrade float64, rows int) int {
	if rows <= 1 {
		return 0
	}
	pos := math.Min(math.Max(v/maxGrade, 0), 1)
	return int(math.Round((1 - pos) * float64(rows-1)))
}

func mergeCell(layers [][][]uint8, x, y int) (uint8, int) {
	var mask uint8
	first := -1
	for i, cells := range layers {
		if cells[y][x] == 0 {
			continue
		}
		if first < 0 {
			first = i
		}
		mask |= cells[y][x]
	}
	return mask, first
}

// resample stretches or averages values onto width points.
func resample(values []float64, width int) []float64 {
	out := make([]float64, width)
	n := len(values)
	switch {
	case n == width:
		copy(out, values)
	case n > width:
		for i := range out {
			start := i * n / width
			end := max((i+1)*n/width, start+1)
			out[i] = mean(values[start:min(end, n)])
		}
	case n == 1 || width == 1:
		for i := range out {
			out[i] = values[0]
		}
	default:
		for i := range out {
			pos := float64(i) * float64(n-1) / float64(width-1)
			idx := int(pos)
			if idx >= n-1 {
				out[i] = values[n-1]
				continue
			}
			frac := pos - float64(idx)
			out[i] = values[idx]*(1-frac) + values[idx+1]*frac
		}
	}
	return out
}

func legend(series []Series, color bool) string {
	parts := make([]string, 0, len(series))
	for i, s := range series {
		label := fmt.Sprintf("%c %s (%s)", rune(0x2801), s.Name, dashPatterns[i%len(dashPatterns)].name)
		if color {
			label = seriesColors[i%len(seriesColors)] + label + colorReset
		}
		parts = append(parts, label)
	}
	return "Legend: " + strings.Join(parts, "  ")
}

func bresenham(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// brailleDot returns the Unicode braille bit for dot column x and row y.
func brailleDot(x, y int) uint8 {
	if y == 3 {
		return 0x40 << x
	}
	return 1 << (y + 3*x)
}
