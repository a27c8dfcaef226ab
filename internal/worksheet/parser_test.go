package worksheet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRaw = `문제 1:
삼각형의 세 내각의 합은 몇 도인가?
정답: 180도
@@@
문제 2:
반지름이 3인 원의 넓이를 구하시오.
CODE_START
circle 0 0 3
text 0 0 r=3
CODE_END
정답: 9π
@@@
문제 3:
2 + 3 × 4 를 계산하시오.
정답: 14
`

func TestParseItems(t *testing.T) {
	items := ParseItems(sampleRaw, 10)
	require.Len(t, items, 3)

	assert.Equal(t, 1, items[0].Index)
	assert.Equal(t, "삼각형의 세 내각의 합은 몇 도인가?", items[0].Question)
	assert.Equal(t, "180도", items[0].Answer)
	assert.Empty(t, items[0].ChartCode)

	assert.Equal(t, 2, items[1].Index)
	assert.Equal(t, "9π", items[1].Answer)
	assert.Equal(t, "circle 0 0 3\ntext 0 0 r=3", items[1].ChartCode)
	// CODE 块内容不能混进题干
	assert.NotContains(t, items[1].Question, "circle")

	assert.Equal(t, 3, items[2].Index)
	assert.Equal(t, "14", items[2].Answer)
}

func TestParseItemsLimit(t *testing.T) {
	items := ParseItems(sampleRaw, 2)
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[1].Index)
}

func TestParseItemsDropsNumberingLine(t *testing.T) {
	items := ParseItems(sampleRaw, 10)
	for _, item := range items {
		assert.NotContains(t, item.Question, "문제")
	}
}

func TestParseItemsMissingAnswer(t *testing.T) {
	raw := "다음을 계산하시오: 1 + 1"
	items := ParseItems(raw, 10)
	require.Len(t, items, 1)
	assert.Equal(t, "다음을 계산하시오: 1 + 1", items[0].Question)
	assert.Empty(t, items[0].Answer)
}

func TestParseItemsUnterminatedCodeBlock(t *testing.T) {
	raw := "사각형을 보고 답하시오.\nCODE_START\nrect 0 0 4 3\n정답: 12"
	items := ParseItems(raw, 10)
	require.Len(t, items, 1)
	// CODE 块没闭合：之后的行全算代码，정답行仍然被识别
	assert.Equal(t, "rect 0 0 4 3", items[0].ChartCode)
	assert.Equal(t, "12", items[0].Answer)
}

func TestParseItemsSkipsEmptyChunks(t *testing.T) {
	raw := "@@@\n\n@@@\n첫 번째 문제\n정답: 1\n@@@\n"
	items := ParseItems(raw, 10)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Index)
}

func TestParseItemsEmptyInput(t *testing.T) {
	assert.Empty(t, ParseItems("", 10))
	assert.Empty(t, ParseItems(strings.Repeat("@@@", 5), 10))
}
