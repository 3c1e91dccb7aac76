// Package chart renders per-symbol candle charts for review and for
// vision-capable models.
package chart

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"okxagent/internal/indicator"
	"okxagent/internal/market"
	"okxagent/internal/snapshot"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorBull          = "#34d399"
	colorBear          = "#f87171"
	colorEma20         = "#3b82f6"
	colorEma50         = "#fbbf24"
	colorDIF           = "#22d3ee"
	colorDEA           = "#fb7185"

	chartWidthPx   = 1600
	klineHeightPx  = 560
	volumeHeightPx = 220
	macdHeightPx   = 240

	defaultWindow = 60
)

// Panel 一个周期的K线；Candles 为完整历史，只展示最后 Window 根。
type Panel struct {
	Bar     string
	Candles []market.Candle
	Window  int
}

// Image is a rendered PNG.
type Image struct {
	Bytes       []byte `json:"-"`
	Filename    string `json:"filename"`
	Description string `json:"description"`
}

func (img *Image) DataURI() string {
	if img == nil || len(img.Bytes) == 0 {
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(img.Bytes)
}

// Artifact 渲染产物：HTML 路径，启用 PNG 时附带图片。
type Artifact struct {
	Symbol   string `json:"symbol"`
	HTMLPath string `json:"html_path"`
	PNGPath  string `json:"png_path,omitempty"`
	Image    *Image `json:"-"`
}

// Renderer writes chart pages under Dir.
type Renderer struct {
	Dir       string
	RenderPNG bool

	nowFn func() time.Time
	pngFn func(ctx context.Context, html []byte, width, height int) ([]byte, error)
}

func NewRenderer(dir string, renderPNG bool) *Renderer {
	return &Renderer{Dir: dir, RenderPNG: renderPNG, nowFn: time.Now, pngFn: renderHTMLToPNG}
}

// PanelsFromSnapshot builds intraday + swing panels from the snapshot's
// fetched history.
func PanelsFromSnapshot(snap snapshot.PerpSnapshot) []Panel {
	var panels []Panel
	if len(snap.IntradayHistory) > 0 {
		panels = append(panels, Panel{Bar: snap.Intraday.Bar, Candles: snap.IntradayHistory})
	}
	if len(snap.SwingHistory) > 0 {
		panels = append(panels, Panel{Bar: snap.Swing.Bar, Candles: snap.SwingHistory})
	}
	return panels
}

// RenderSnapshot renders the snapshot panels; see Render.
func (r *Renderer) RenderSnapshot(ctx context.Context, snap snapshot.PerpSnapshot) (Artifact, error) {
	return r.Render(ctx, snap.Symbol, PanelsFromSnapshot(snap))
}

// Render 写出 HTML，RenderPNG 打开时再用无头浏览器截图。
// PNG 失败只记录在错误里，HTML 仍然返回。
func (r *Renderer) Render(ctx context.Context, symbol string, panels []Panel) (Artifact, error) {
	if strings.TrimSpace(symbol) == "" {
		return Artifact{}, fmt.Errorf("chart: symbol required")
	}
	html, desc, err := BuildHTML(symbol, panels)
	if err != nil {
		return Artifact{}, err
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("chart: create dir: %w", err)
	}
	stem := fmt.Sprintf("%s_%s", fileSafe(symbol), r.nowFn().UTC().Format("20060102_1504"))
	art := Artifact{Symbol: symbol, HTMLPath: filepath.Join(r.Dir, stem+".html")}
	if err := os.WriteFile(art.HTMLPath, html, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("chart: write html: %w", err)
	}
	if !r.RenderPNG {
		return art, nil
	}
	height := len(panels) * (klineHeightPx + volumeHeightPx + macdHeightPx)
	png, err := r.pngFn(ctx, html, chartWidthPx, height)
	if err != nil {
		return art, fmt.Errorf("chart: render png: %w", err)
	}
	art.PNGPath = filepath.Join(r.Dir, stem+".png")
	if err := os.WriteFile(art.PNGPath, png, 0o644); err != nil {
		return art, fmt.Errorf("chart: write png: %w", err)
	}
	art.Image = &Image{Bytes: png, Filename: filepath.Base(art.PNGPath), Description: desc}
	return art, nil
}

func fileSafe(symbol string) string {
	r := strings.NewReplacer("/", "_", ":", "_", " ", "")
	return strings.ToLower(r.Replace(symbol))
}

// BuildHTML renders the page and a one-line description per panel.
func BuildHTML(symbol string, panels []Panel) ([]byte, string, error) {
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	descriptions := make([]string, 0, len(panels))

	for _, p := range panels {
		if len(p.Candles) == 0 {
			continue
		}
		window := p.Window
		if window <= 0 {
			window = defaultWindow
		}
		closes := market.Closes(p.Candles)
		ema20 := indicator.EMA(closes, 20)
		ema50 := indicator.EMA(closes, 50)
		macd := indicator.MACD(closes, 12, 26, 9)

		shown := tailCandles(p.Candles, window)
		xAxis := buildXAxis(shown)
		n := len(shown)

		kline := buildKline(symbol, p.Bar, shown, xAxis)
		line := charts.NewLine()
		line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
		line.SetXAxis(xAxis)
		line.AddSeries("EMA20", toLineData(tail(ema20, n), n), charts.WithLineStyleOpts(opts.LineStyle{Color: colorEma20, Width: 2}))
		line.AddSeries("EMA50", toLineData(tail(ema50, n), n), charts.WithLineStyleOpts(opts.LineStyle{Color: colorEma50, Width: 2}))
		kline.Overlap(line)

		volume := buildVolumeChart(p.Bar, xAxis, shown)
		macdChart := buildMACDChart(p.Bar, xAxis, tail(macd.Line, n), tail(macd.Signal, n), tail(macd.Hist, n))
		page.AddCharts(kline, volume, macdChart)

		last := shown[n-1]
		descriptions = append(descriptions, fmt.Sprintf("%s: close=%g ema20=%s ema50=%s", p.Bar, last.Close, fmtLatest(ema20), fmtLatest(ema50)))
	}
	if len(page.Charts) == 0 {
		return nil, "", fmt.Errorf("chart: no candles for %s", symbol)
	}
	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, "", err
	}
	desc := fmt.Sprintf("%s | %s", strings.ToUpper(symbol), strings.Join(descriptions, " | "))
	return buf.Bytes(), desc, nil
}

func fmtLatest(series []float64) string {
	if v, ok := indicator.Latest(series); ok {
		return fmt.Sprintf("%.4f", v)
	}
	return "N/A"
}

func initOpts(height int) opts.Initialization {
	return opts.Initialization{
		Theme:           types.ThemeWesteros,
		Width:           fmt.Sprintf("%dpx", chartWidthPx),
		Height:          fmt.Sprintf("%dpx", height),
		BackgroundColor: colorBackground,
	}
}

func buildKline(symbol, bar string, candles []market.Candle, xAxis []string) *charts.Kline {
	minPrice, maxPrice := priceBounds(candles)
	padding := (maxPrice - minPrice) * 0.05
	if padding <= 0 {
		padding = math.Max(1, math.Abs(maxPrice)*0.01)
	}
	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(klineHeightPx)),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTitleOpts(opts.Title{
			Title:      fmt.Sprintf("%s %s", strings.ToUpper(symbol), bar),
			Left:       "left",
			Top:        "10",
			TitleStyle: &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			Min:       round(minPrice-padding, 4),
			Max:       round(maxPrice+padding, 4),
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	kline.SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	)
	data := make([]opts.KlineData, 0, len(candles))
	for _, c := range candles {
		data = append(data, opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}})
	}
	kline.SetXAxis(xAxis)
	kline.AddSeries("Price_"+bar, data)
	return kline
}

func buildVolumeChart(bar string, xAxis []string, candles []market.Candle) *charts.Bar {
	chart := charts.NewBar()
	chart.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(volumeHeightPx)),
		charts.WithTitleOpts(opts.Title{Title: "Volume " + bar, Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)}}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	vols := make([]opts.BarData, len(candles))
	for i, c := range candles {
		color := colorBear
		if c.Close >= c.Open {
			color = colorBull
		}
		vols[i] = opts.BarData{Value: c.Volume, ItemStyle: &opts.ItemStyle{Color: color, Opacity: opts.Float(0.6)}}
	}
	chart.SetXAxis(xAxis)
	chart.AddSeries("Volume", vols)
	return chart
}

func buildMACDChart(bar string, xAxis []string, dif, dea, hist []float64) *charts.Bar {
	chart := charts.NewBar()
	chart.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(macdHeightPx)),
		charts.WithTitleOpts(opts.Title{Title: "MACD " + bar, Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextSecondary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)}}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	n := len(xAxis)
	histData := make([]opts.BarData, n)
	offset := n - len(hist)
	for i := range histData {
		j := i - offset
		if j < 0 || math.IsNaN(hist[j]) {
			histData[i] = opts.BarData{Value: nil}
			continue
		}
		color := colorBear
		if hist[j] >= 0 {
			color = colorBull
		}
		histData[i] = opts.BarData{Value: round(hist[j], 4), ItemStyle: &opts.ItemStyle{Color: color}}
	}
	chart.SetXAxis(xAxis)
	chart.AddSeries("MACD Hist", histData)

	line := charts.NewLine()
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	line.SetXAxis(xAxis)
	line.AddSeries("DIF", toLineData(dif, n), charts.WithLineStyleOpts(opts.LineStyle{Color: colorDIF, Width: 2}))
	line.AddSeries("DEA", toLineData(dea, n), charts.WithLineStyleOpts(opts.LineStyle{Color: colorDEA, Width: 2}))
	chart.Overlap(line)
	return chart
}

func buildXAxis(candles []market.Candle) []string {
	x := make([]string, len(candles))
	for i, c := range candles {
		x[i] = c.Time().Format("01-02 15:04")
	}
	return x
}

// toLineData right-aligns series into length slots; NaN and missing slots are
// left empty.
func toLineData(series []float64, length int) []opts.LineData {
	line := make([]opts.LineData, length)
	offset := length - len(series)
	for i := range line {
		j := i - offset
		if j < 0 || math.IsNaN(series[j]) {
			line[i] = opts.LineData{Value: nil}
			continue
		}
		line[i] = opts.LineData{Value: round(series[j], 4)}
	}
	return line
}

func tail(series []float64, keep int) []float64 {
	if keep <= 0 || len(series) == 0 {
		return nil
	}
	if len(series) <= keep {
		return series
	}
	return series[len(series)-keep:]
}

func tailCandles(candles []market.Candle, keep int) []market.Candle {
	if len(candles) <= keep {
		return candles
	}
	return candles[len(candles)-keep:]
}

func round(val float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}

func priceBounds(candles []market.Candle) (minVal, maxVal float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	minVal, maxVal = candles[0].Low, candles[0].High
	for _, c := range candles {
		minVal = math.Min(minVal, c.Low)
		maxVal = math.Max(maxVal, c.High)
	}
	return minVal, maxVal
}
