package worksheet

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderChart(t *testing.T) {
	code := `line 0 0 4 0
line 4 0 4 3
line 4 3 0 0
circle 2 1 0.5
dot 2 1
rect 5 0 2 2
polygon 0 4 1 5 2 4
arc 2 2 1 0 90`

	data, err := RenderChart(code, "")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, chartWidth, img.Bounds().Dx())
	assert.Equal(t, chartHeight, img.Bounds().Dy())
}

func TestRenderChartTextWithoutFont(t *testing.T) {
	// 字体不可用时 text 命令静默跳过，其余图形照常绘制
	data, err := RenderChart("line 0 0 1 1\ntext 0.5 0.5 빗변", "")
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestRenderChartRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		code string
	}{
		{"unknown command", "triangle 0 0 1 1 2 2"},
		{"missing args", "line 0 0 4"},
		{"non numeric", "circle 0 0 abc"},
		{"zero radius", "circle 0 0 0"},
		{"negative radius", "arc 0 0 -1 0 90"},
		{"odd polygon coords", "polygon 0 0 1 1 2"},
		{"text without content", "text 1 2"},
		{"empty", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := RenderChart(tc.code, "")
			assert.Error(t, err)
		})
	}
}

func TestChartBoundsKeepAspect(t *testing.T) {
	ops, err := parseChartOps("circle 0 0 2")
	require.NoError(t, err)

	minX, minY, maxX, maxY := chartBounds(ops)
	assert.Equal(t, -2.0, minX)
	assert.Equal(t, -2.0, minY)
	assert.Equal(t, 2.0, maxX)
	assert.Equal(t, 2.0, maxY)
}
