package metric

import (
	"bytes"
	"fmt"
	"image/png"
	"time"

	"github.com/nfnt/resize"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	chartWidth     = 800
	chartHeight    = 400
	ThumbnailWidth = 320
)

var chartTitles = map[Type]string{
	TypeWeight:        "Weight (kg)",
	TypeBloodPressure: "Blood Pressure (mmHg)",
	TypeHeartRate:     "Heart Rate (bpm)",
}

// renderChart draws points, which must share one type and be ordered by
// measurement date, as a PNG line chart.
func renderChart(t Type, points []*Metric) ([]byte, error) {
	if len(points) == 0 {
		return nil, ErrNoData
	}

	xs := make([]time.Time, len(points))
	var series []chart.Series
	switch t {
	case TypeWeight:
		ys := make([]float64, len(points))
		for i, m := range points {
			xs[i] = m.MeasurementDate
			ys[i] = m.Value.(Weight).Kg
		}
		series = append(series, timeSeries("Weight", xs, ys, chart.ColorBlue))
	case TypeBloodPressure:
		sys := make([]float64, len(points))
		dia := make([]float64, len(points))
		for i, m := range points {
			bp := m.Value.(BloodPressure)
			xs[i] = m.MeasurementDate
			sys[i] = float64(bp.Systolic)
			dia[i] = float64(bp.Diastolic)
		}
		series = append(series,
			timeSeries("Systolic", xs, sys, chart.ColorRed),
			timeSeries("Diastolic", xs, dia, chart.ColorBlue),
		)
	case TypeHeartRate:
		ys := make([]float64, len(points))
		for i, m := range points {
			xs[i] = m.MeasurementDate
			ys[i] = float64(m.Value.(HeartRate).BPM)
		}
		series = append(series, timeSeries("Heart Rate", xs, ys, chart.ColorRed))
	default:
		return nil, ErrUnknownChart
	}

	yMin, yMax := valueRange(series)
	graph := chart.Chart{
		Title:  chartTitles[t],
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeDateValueFormatter,
			Range: &chart.ContinuousRange{
				Min: chart.TimeToFloat64(xs[0].Add(-12 * time.Hour)),
				Max: chart.TimeToFloat64(xs[len(xs)-1].Add(12 * time.Hour)),
			},
		},
		YAxis: chart.YAxis{
			Name:  chartTitles[t],
			Range: &chart.ContinuousRange{Min: yMin, Max: yMax},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.Bytes(), nil
}

func timeSeries(name string, xs []time.Time, ys []float64, color drawing.Color) chart.TimeSeries {
	return chart.TimeSeries{
		Name: name,
		Style: chart.Style{
			StrokeColor: color,
			StrokeWidth: 2,
			DotColor:    color,
			DotWidth:    4,
		},
		XValues: xs,
		YValues: ys,
	}
}

// valueRange pads the y extent by 10% so a flat series still has height.
func valueRange(series []chart.Series) (float64, float64) {
	lo, hi := 0.0, 0.0
	first := true
	for _, s := range series {
		for _, y := range s.(chart.TimeSeries).YValues {
			if first || y < lo {
				lo = y
			}
			if first || y > hi {
				hi = y
			}
			first = false
		}
	}
	pad := (hi - lo) * 0.1
	if pad == 0 {
		pad = 1
	}
	return lo - pad, hi + pad
}

// thumbnail scales a PNG down to width pixels, keeping the aspect ratio.
func thumbnail(data []byte, width uint) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode chart: %w", err)
	}

	resized := resize.Resize(width, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
