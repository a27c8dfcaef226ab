package worksheet

import (
	"strings"
)

// 模型输出的分隔标记
const (
	ItemDelimiter = "@@@"
	CodeStart     = "CODE_START"
	CodeEnd       = "CODE_END"
	AnswerLabel   = "정답:"
	QuestionLabel = "문제"
)

// Item 解析出的一道题
// 只在一次文档组装内存活，渲染完即丢弃
type Item struct {
	Index     int
	Question  string
	Answer    string
	ChartCode string
}

// ParseItems 把模型的原始文本拆成结构化题目
//
// 逐行单遍扫描，TEXT / CODE 两种模式由 CODE_START / CODE_END 切换。
// 格式残缺（缺정답行、CODE 块没闭合）只会得到对应字段为空的题目，
// 永远不报错；模型少给了题目就少渲染几道
func ParseItems(raw string, limit int) []Item {
	var items []Item

	for _, chunk := range strings.Split(raw, ItemDelimiter) {
		if len(items) >= limit {
			break
		}
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}

		mode := "TEXT"
		var questionLines []string
		var codeBuilder strings.Builder
		answer := ""

		for _, line := range strings.Split(chunk, "\n") {
			trimmed := strings.TrimSpace(line)
			switch {
			case strings.Contains(trimmed, CodeStart):
				mode = "CODE"
			case strings.Contains(trimmed, CodeEnd):
				mode = "TEXT"
			case strings.HasPrefix(trimmed, AnswerLabel):
				answer = strings.TrimSpace(strings.TrimPrefix(trimmed, AnswerLabel))
			default:
				if mode == "CODE" {
					codeBuilder.WriteString(line)
					codeBuilder.WriteString("\n")
				} else if !strings.HasPrefix(trimmed, QuestionLabel) {
					// "문제 N:" 行是模型的编号行，正文里重新编号
					questionLines = append(questionLines, line)
				}
			}
		}

		items = append(items, Item{
			Index:     len(items) + 1,
			Question:  strings.TrimSpace(strings.Join(questionLines, "\n")),
			Answer:    answer,
			ChartCode: strings.TrimSpace(codeBuilder.String()),
		})
	}

	return items
}
