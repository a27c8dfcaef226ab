package worksheet

import (
	"context"
	"fmt"
	"log"
	"strings"

	"geniemath/internal/docx"
)

const (
	brandName = "지니매쓰"

	// 列宽（twips）：题目区 4.8 英寸，풀이区 2.5 英寸
	questionColWidth = 6912
	solutionColWidth = 3600
	headerColWidth   = 5233

	// 每页放 4 道题
	itemsPerPage = 4
)

// TextModel 生成模型的抽象，方便测试时替换
type TextModel interface {
	Configured() bool
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Request 一次学习지生成请求
type Request struct {
	School     string
	Grade      string
	Topic      string
	Difficulty string
	Count      int
	Commercial bool
}

// Result 生成结果
// Failed 为 true 时 Data 是错误说明文档：对调用方来说生成"从不失败"，
// 但计费、上传、日志只在 Failed 为 false 时进行
type Result struct {
	Data       []byte
	Failed     bool
	FailReason string
	ItemCount  int
}

// Generator 学习지生成器
// 只负责产出文档字节，不碰이용권余额，也不做上传
type Generator struct {
	model TextModel
}

func NewGenerator(model TextModel) *Generator {
	return &Generator{model: model}
}

// Generate 生成一份学习지
func (g *Generator) Generate(ctx context.Context, req *Request) *Result {
	if g.model == nil || !g.model.Configured() {
		return g.errorResult("AI 모델(Gemini)이 설정되지 않았습니다. API Key를 확인해주세요.")
	}

	prompt := BuildPrompt(req.School, req.Grade, req.Topic, req.Difficulty, req.Count)

	raw, err := g.model.GenerateContent(ctx, prompt)
	if err != nil {
		return g.errorResult(fmt.Sprintf("AI 응답 오류: %v", err))
	}

	items := ParseItems(raw, req.Count)
	data, err := AssembleDocument(req, items)
	if err != nil {
		return g.errorResult(fmt.Sprintf("문서 생성 오류: %v", err))
	}

	return &Result{Data: data, ItemCount: len(items)}
}

// errorResult 把错误包装成说明文档，生成失败对上层永不致命
func (g *Generator) errorResult(reason string) *Result {
	data, err := BuildErrorDocument(reason)
	if err != nil {
		// 连错误文档都组不出来才真正空手而归
		log.Printf("[Worksheet] 生成错误说明文档失败: %v", err)
		data = nil
	}
	return &Result{Data: data, Failed: true, FailReason: reason}
}

// AssembleDocument 把解析后的题目排版成学习지文档
func AssembleDocument(req *Request, items []Item) ([]byte, error) {
	doc := docx.New()
	fontPath := KoreanFontPath()

	// 页眉：无边框两列表格，左 logo 文字、右单元信息
	doc.AddTable(docx.Table{
		ColWidths: []int{headerColWidth, headerColWidth},
		Rows: [][]docx.Cell{{
			{
				Border: docx.BorderNone,
				Paras: []docx.Para{{Runs: []docx.Run{
					{Text: brandName, Size: 16, Bold: true, Color: "003399"},
				}}},
			},
			{
				Border: docx.BorderNone,
				Paras: []docx.Para{{
					Align: docx.AlignRight,
					Runs: []docx.Run{
						{Text: fmt.Sprintf("%s (%s)  |  %s", req.Topic, req.Difficulty, brandName), Size: 11},
					},
				}},
			},
		}},
	})
	doc.AddText("")

	var answers []string

	for _, item := range items {
		answers = append(answers, fmt.Sprintf("%d. %s", item.Index, item.Answer))

		questionParas := []docx.Para{
			{Runs: []docx.Run{{Text: fmt.Sprintf("%d. ", item.Index), Size: 13, Bold: true}}},
			{Runs: []docx.Run{{Text: item.Question, Size: 11}}},
		}

		// 单题的图表渲染失败只丢图，不影响整份文档
		if item.ChartCode != "" {
			img, err := RenderChart(item.ChartCode, fontPath)
			if err != nil {
				log.Printf("[Worksheet] 第%d题图表渲染失败: %v", item.Index, err)
			} else {
				questionParas = append(questionParas, docx.Para{
					Align: docx.AlignCenter,
					Runs:  []docx.Run{{Image: img, ImageWidth: 3.5}},
				})
			}
		}

		doc.AddTable(docx.Table{
			ColWidths: []int{questionColWidth, solutionColWidth},
			Rows: [][]docx.Cell{{
				{Paras: questionParas},
				{
					Border: docx.BorderLeftRule,
					Paras: []docx.Para{{
						Align: docx.AlignRight,
						Runs:  []docx.Run{{Text: "[ 풀 이 ]", Size: 10, Color: "969696"}},
					}},
				},
			}},
		})
		doc.AddText("")

		if item.Index%itemsPerPage == 0 {
			if item.Index < len(items) {
				doc.AddPageBreak()
			}
		} else {
			doc.AddParagraph(docx.Para{
				Align: docx.AlignCenter,
				Runs:  []docx.Run{{Text: strings.Repeat("-", 90), Size: 8, Color: "C8C8C8"}},
			})
		}
	}

	// 答案合集：另起一页，两列表格
	doc.AddPageBreak()
	doc.AddParagraph(docx.Para{
		Align: docx.AlignCenter,
		Runs:  []docx.Run{{Text: "< 정 답 및 풀 이 >", Size: 16, Bold: true}},
	})
	doc.AddText("")

	if len(answers) > 0 {
		rows := make([][]docx.Cell, (len(answers)+1)/2)
		for i, ans := range answers {
			r, c := i/2, i%2
			if rows[r] == nil {
				// 最后一行可能只有一个答案，另一格留空
				rows[r] = []docx.Cell{{}, {}}
			}
			rows[r][c] = docx.Cell{Paras: []docx.Para{{Runs: []docx.Run{{Text: ans, Size: 10}}}}}
		}
		doc.AddTable(docx.Table{
			ColWidths: []int{headerColWidth, headerColWidth},
			Rows:      rows,
			Grid:      true,
		})
	}

	// 页脚：授权文字 + 页码域；个人授权文档在文件层面设为只读
	if req.Commercial {
		doc.SetFooterText(brandName + " Premium  |  ")
	} else {
		doc.SetFooterText("개인 학습용  |  ")
		doc.SetReadOnly()
	}

	return doc.Save()
}

// BuildErrorDocument 生成失败时给用户的说明文档
func BuildErrorDocument(reason string) ([]byte, error) {
	doc := docx.New()
	doc.AddParagraph(docx.Para{Runs: []docx.Run{{Text: "⚠️ 문제 생성 실패", Size: 20, Bold: true}}})
	doc.AddParagraph(docx.Para{Runs: []docx.Run{{Text: "오류 내용: " + reason, Color: "FF0000"}}})
	doc.AddText("")
	doc.AddText("[해결 방법]")
	doc.AddText("1. 설정 파일에 Gemini API Key가 있는지 확인하세요.")
	doc.AddText("2. API Key가 올바른지(오타, 공백) 확인하세요.")
	doc.SetFooterText(brandName + "  |  ")
	return doc.Save()
}

// FileName 生成下载用的文件名
func FileName(req *Request, free bool) string {
	switch {
	case free:
		return fmt.Sprintf("지니매쓰_무료_%s%s_%s.docx", req.School, req.Grade, req.Topic)
	case req.Commercial:
		return fmt.Sprintf("지니매쓰_COMMERCIAL_%s%s_%s.docx", req.School, req.Grade, req.Topic)
	default:
		return fmt.Sprintf("지니매쓰_PERSONAL_%s%s_%s.docx", req.School, req.Grade, req.Topic)
	}
}
