package worksheet

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
)

// ============================================================================
// 图表渲染
// ============================================================================
//
// 旧版直接 exec 模型返回的 matplotlib 代码，等于给모델任意代码执行权限。
// 现在提示词要求模型输出声明式的图形命令（每行一条），由固定解释器绘制：
//
//   line x1 y1 x2 y2
//   circle cx cy r
//   dot cx cy
//   rect x y w h
//   polygon x1 y1 x2 y2 x3 y3 ...
//   arc cx cy r 起始角 终止角        （角度制）
//   text x y 내용
//
// 坐标是抽象数学坐标（y 向上），渲染时统一缩放到画布并保持纵横比，
// 效果对应旧版的 autoscale + set_aspect('equal')

const (
	chartWidth  = 750
	chartHeight = 600
	chartMargin = 50.0
)

type chartOp struct {
	kind   string
	coords []float64
	text   string
}

// RenderChart 把图形命令渲染成 PNG 字节
// 任何一行不合法都整体报错，由调用方决定"该题不配图"
func RenderChart(code string, fontPath string) ([]byte, error) {
	ops, err := parseChartOps(code)
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("图形命令为空")
	}

	minX, minY, maxX, maxY := chartBounds(ops)

	spanX := maxX - minX
	spanY := maxY - minY
	if spanX <= 0 {
		spanX = 1
	}
	if spanY <= 0 {
		spanY = 1
	}
	// 两个方向取同一缩放系数，保持纵横比
	scale := math.Min(
		(chartWidth-2*chartMargin)/spanX,
		(chartHeight-2*chartMargin)/spanY,
	)
	offsetX := (chartWidth - spanX*scale) / 2
	offsetY := (chartHeight - spanY*scale) / 2

	tx := func(x float64) float64 { return offsetX + (x-minX)*scale }
	ty := func(y float64) float64 { return chartHeight - offsetY - (y-minY)*scale }

	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(3)

	hasFont := false
	if fontPath != "" {
		if err := dc.LoadFontFace(fontPath, 26); err == nil {
			hasFont = true
		}
	}

	for _, op := range ops {
		c := op.coords
		switch op.kind {
		case "line":
			dc.DrawLine(tx(c[0]), ty(c[1]), tx(c[2]), ty(c[3]))
			dc.Stroke()
		case "circle":
			dc.DrawCircle(tx(c[0]), ty(c[1]), c[2]*scale)
			dc.Stroke()
		case "dot":
			dc.DrawCircle(tx(c[0]), ty(c[1]), 5)
			dc.Fill()
		case "rect":
			// rect 的 y 是左下角，画布坐标系 y 向下，取上边作为起点
			dc.DrawRectangle(tx(c[0]), ty(c[1]+c[3]), c[2]*scale, c[3]*scale)
			dc.Stroke()
		case "polygon":
			dc.MoveTo(tx(c[0]), ty(c[1]))
			for i := 2; i+1 < len(c); i += 2 {
				dc.LineTo(tx(c[i]), ty(c[i+1]))
			}
			dc.ClosePath()
			dc.Stroke()
		case "arc":
			// gg 的角度顺时针为正，数学坐标取负号翻转
			dc.DrawArc(tx(c[0]), ty(c[1]), c[2]*scale, -gg.Radians(c[3]), -gg.Radians(c[4]))
			dc.Stroke()
		case "text":
			if hasFont {
				dc.DrawStringAnchored(op.text, tx(c[0]), ty(c[1]), 0.5, 0.5)
			}
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("编码 PNG 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// arity 各命令要求的最少坐标数
var chartOpArity = map[string]int{
	"line":    4,
	"circle":  3,
	"dot":     2,
	"rect":    4,
	"polygon": 6,
	"arc":     5,
	"text":    2,
}

func parseChartOps(code string) ([]chartOp, error) {
	var ops []chartOp
	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		kind := strings.ToLower(fields[0])
		need, ok := chartOpArity[kind]
		if !ok {
			return nil, fmt.Errorf("未知图形命令: %s", fields[0])
		}

		args := fields[1:]
		var text string
		if kind == "text" {
			if len(args) < 3 {
				return nil, fmt.Errorf("text 命令参数不足: %s", line)
			}
			text = strings.Join(args[2:], " ")
			args = args[:2]
		}

		if len(args) < need {
			return nil, fmt.Errorf("%s 命令参数不足: %s", kind, line)
		}

		coords := make([]float64, 0, len(args))
		for _, a := range args {
			v, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return nil, fmt.Errorf("坐标不是数字: %s", a)
			}
			coords = append(coords, v)
		}
		if kind == "polygon" && len(coords)%2 != 0 {
			return nil, fmt.Errorf("polygon 坐标必须成对: %s", line)
		}
		if kind == "circle" || kind == "arc" {
			if coords[2] <= 0 {
				return nil, fmt.Errorf("半径必须为正: %s", line)
			}
		}

		ops = append(ops, chartOp{kind: kind, coords: coords, text: text})
	}
	return ops, nil
}

func chartBounds(ops []chartOp) (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)

	grow := func(x, y float64) {
		minX = math.Min(minX, x)
		minY = math.Min(minY, y)
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
	}

	for _, op := range ops {
		c := op.coords
		switch op.kind {
		case "line":
			grow(c[0], c[1])
			grow(c[2], c[3])
		case "circle", "arc":
			grow(c[0]-c[2], c[1]-c[2])
			grow(c[0]+c[2], c[1]+c[2])
		case "dot", "text":
			grow(c[0], c[1])
		case "rect":
			grow(c[0], c[1])
			grow(c[0]+c[2], c[1]+c[3])
		case "polygon":
			for i := 0; i+1 < len(c); i += 2 {
				grow(c[i], c[i+1])
			}
		}
	}
	return
}
