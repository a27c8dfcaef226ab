package worksheet

import (
	"fmt"
)

// BuildPrompt 组装发给生成模型的提示词
// 输出格式约定要和 parser.go / chart.go 的标记保持一致
func BuildPrompt(school, grade, topic, difficulty string, count int) string {
	return fmt.Sprintf(`당신은 대한민국 수학 최상위권 교재 집필진입니다.
요청: %s %s학년 '%s' (난이도: %s) %d문제.

[작성 규칙]
1. 사고력, 문장제, 도형 위주로 출제합니다.
2. 모든 문제에 아래 도형 명령어로 '교과서 삽화' 스타일 그림을 넣습니다.
3. 도형 명령어는 CODE_START 와 CODE_END 사이에 한 줄에 하나씩 씁니다.

[도형 명령어]
line x1 y1 x2 y2          (선분)
circle cx cy r            (원)
dot cx cy                 (점)
rect x y w h              (직사각형, x y 는 왼쪽 아래 꼭짓점)
polygon x1 y1 x2 y2 ...   (다각형, 꼭짓점 3개 이상)
arc cx cy r a1 a2         (호, 각도는 도 단위)
text x y 내용             (라벨)

[출력 형식]
문제 1: (문제 내용)
CODE_START
(도형 명령어)
CODE_END
정답: (정답)
%s
`, school, grade, topic, difficulty, count, ItemDelimiter)
}
