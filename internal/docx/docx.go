// Package docx 按需生成 Word 文档（OOXML）。
//
// 学习지的版式需要 footer 页码域、documentProtection 只读保护和
// 逐单元格的边框控制，现成的 Go 库覆盖不了这些部件，
// 这里直接写 OOXML 包（zip + 若干 XML part）。
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image/png"
	"strings"
)

const (
	// EMUPerInch 图片尺寸单位（English Metric Unit）
	EMUPerInch = 914400
	// TwipsPerInch 页边距、列宽单位
	TwipsPerInch = 1440
)

// Align 段落对齐
type Align string

const (
	AlignLeft   Align = ""
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// CellBorder 单元格边框模式
type CellBorder int

const (
	BorderInherit  CellBorder = iota // 跟随表格样式
	BorderNone                       // 四边全部隐藏
	BorderLeftRule                   // 只留浅灰左分隔线
)

// Run 一段同格式的文字，或一张内嵌图片
type Run struct {
	Text  string
	Bold  bool
	Size  int    // 字号（磅），0 表示默认
	Color string // 十六进制 RRGGBB，空表示默认
	Font  string // 字体名，空表示默认

	Image      []byte  // PNG 字节，非空时本 Run 是图片
	ImageWidth float64 // 图片宽度（英寸）
}

// Para 段落
type Para struct {
	Runs  []Run
	Align Align
}

// Cell 表格单元格
type Cell struct {
	Paras  []Para
	Border CellBorder
}

// Table 表格
type Table struct {
	ColWidths []int // 列宽（twips），与列数一致
	Rows      [][]Cell
	Grid      bool // true 时套用带框线的 Table Grid 样式
}

type image struct {
	data []byte
	rid  string
	name string
}

// Document 一份待生成的文档
type Document struct {
	blocks     []string
	images     []image
	readOnly   bool
	footerText string
}

func New() *Document {
	return &Document{}
}

// SetReadOnly 写入 documentProtection，个人授权的文档在 Word 里只读打开
func (d *Document) SetReadOnly() {
	d.readOnly = true
}

// SetFooterText 设置页脚文字，后面自动拼接 PAGE 页码域
func (d *Document) SetFooterText(text string) {
	d.footerText = text
}

// AddParagraph 追加一个段落
func (d *Document) AddParagraph(p Para) {
	d.blocks = append(d.blocks, d.renderPara(p))
}

// AddText 追加一个纯文本段落
func (d *Document) AddText(text string) {
	d.AddParagraph(Para{Runs: []Run{{Text: text}}})
}

// AddPageBreak 追加分页符
func (d *Document) AddPageBreak() {
	d.blocks = append(d.blocks, `<w:p><w:r><w:br w:type="page"/></w:r></w:p>`)
}

// AddTable 追加一个表格
func (d *Document) AddTable(t Table) {
	var b strings.Builder
	b.WriteString(`<w:tbl><w:tblPr>`)
	if t.Grid {
		b.WriteString(`<w:tblStyle w:val="TableGrid"/>`)
	}
	b.WriteString(`<w:tblW w:w="0" w:type="auto"/></w:tblPr><w:tblGrid>`)
	for _, w := range t.ColWidths {
		fmt.Fprintf(&b, `<w:gridCol w:w="%d"/>`, w)
	}
	b.WriteString(`</w:tblGrid>`)

	for _, row := range t.Rows {
		b.WriteString(`<w:tr>`)
		for i, cell := range row {
			width := 0
			if i < len(t.ColWidths) {
				width = t.ColWidths[i]
			}
			b.WriteString(`<w:tc><w:tcPr>`)
			fmt.Fprintf(&b, `<w:tcW w:w="%d" w:type="dxa"/>`, width)
			switch cell.Border {
			case BorderNone:
				b.WriteString(`<w:tcBorders>` +
					`<w:top w:val="nil"/><w:left w:val="nil"/>` +
					`<w:bottom w:val="nil"/><w:right w:val="nil"/>` +
					`</w:tcBorders>`)
			case BorderLeftRule:
				b.WriteString(`<w:tcBorders>` +
					`<w:top w:val="nil"/>` +
					`<w:left w:val="single" w:sz="6" w:color="E0E0E0"/>` +
					`<w:bottom w:val="nil"/><w:right w:val="nil"/>` +
					`</w:tcBorders>`)
			}
			b.WriteString(`</w:tcPr>`)
			// 单元格至少要有一个段落，否则 Word 认为文档损坏
			if len(cell.Paras) == 0 {
				b.WriteString(`<w:p/>`)
			}
			for _, p := range cell.Paras {
				b.WriteString(d.renderPara(p))
			}
			b.WriteString(`</w:tc>`)
		}
		b.WriteString(`</w:tr>`)
	}
	b.WriteString(`</w:tbl>`)
	d.blocks = append(d.blocks, b.String())
}

func (d *Document) renderPara(p Para) string {
	var b strings.Builder
	b.WriteString(`<w:p>`)
	if p.Align != AlignLeft {
		fmt.Fprintf(&b, `<w:pPr><w:jc w:val="%s"/></w:pPr>`, p.Align)
	}
	for _, r := range p.Runs {
		if r.Image != nil {
			b.WriteString(d.renderImageRun(r))
			continue
		}
		b.WriteString(renderTextRun(r))
	}
	b.WriteString(`</w:p>`)
	return b.String()
}

func renderTextRun(r Run) string {
	var b strings.Builder
	// 多行文本拆成 <w:br/> 分隔的片段
	lines := strings.Split(r.Text, "\n")
	for i, line := range lines {
		b.WriteString(`<w:r>`)
		b.WriteString(renderRunProps(r))
		if i > 0 {
			b.WriteString(`<w:br/>`)
		}
		fmt.Fprintf(&b, `<w:t xml:space="preserve">%s</w:t>`, escape(line))
		b.WriteString(`</w:r>`)
	}
	return b.String()
}

func renderRunProps(r Run) string {
	if !r.Bold && r.Size == 0 && r.Color == "" && r.Font == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<w:rPr>`)
	if r.Font != "" {
		fmt.Fprintf(&b, `<w:rFonts w:ascii="%s" w:eastAsia="%s" w:hAnsi="%s"/>`,
			escape(r.Font), escape(r.Font), escape(r.Font))
	}
	if r.Bold {
		b.WriteString(`<w:b/>`)
	}
	if r.Color != "" {
		fmt.Fprintf(&b, `<w:color w:val="%s"/>`, r.Color)
	}
	if r.Size > 0 {
		// w:sz 的单位是半磅
		fmt.Fprintf(&b, `<w:sz w:val="%d"/><w:szCs w:val="%d"/>`, r.Size*2, r.Size*2)
	}
	b.WriteString(`</w:rPr>`)
	return b.String()
}

func (d *Document) renderImageRun(r Run) string {
	idx := len(d.images) + 1
	rid := fmt.Sprintf("rId%d", idx+3) // rId1~3 被 styles/settings/footer 占用
	name := fmt.Sprintf("image%d.png", idx)
	d.images = append(d.images, image{data: r.Image, rid: rid, name: name})

	width := r.ImageWidth
	if width <= 0 {
		width = 3.5
	}
	cx := int64(width * EMUPerInch)
	cy := cx
	if cfg, err := png.DecodeConfig(bytes.NewReader(r.Image)); err == nil && cfg.Width > 0 {
		cy = int64(float64(cx) * float64(cfg.Height) / float64(cfg.Width))
	}

	return fmt.Sprintf(`<w:r><w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0">`+
		`<wp:extent cx="%d" cy="%d"/>`+
		`<wp:docPr id="%d" name="%s"/>`+
		`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:pic>`+
		`<pic:nvPicPr><pic:cNvPr id="%d" name="%s"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>`+
		`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
		`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r>`,
		cx, cy, idx, name, idx, name, rid, cx, cy)
}

// Save 打包为 docx 字节
func (d *Document) Save() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	parts := []struct {
		name string
		data string
	}{
		{"[Content_Types].xml", d.contentTypes()},
		{"_rels/.rels", rootRels},
		{"word/document.xml", d.documentXML()},
		{"word/_rels/document.xml.rels", d.documentRels()},
		{"word/styles.xml", stylesXML},
		{"word/settings.xml", d.settingsXML()},
		{"word/footer1.xml", d.footerXML()},
	}

	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, fmt.Errorf("写入 %s 失败: %w", p.name, err)
		}
		if _, err := w.Write([]byte(p.data)); err != nil {
			return nil, fmt.Errorf("写入 %s 失败: %w", p.name, err)
		}
	}

	for _, img := range d.images {
		w, err := zw.Create("word/media/" + img.name)
		if err != nil {
			return nil, fmt.Errorf("写入图片失败: %w", err)
		}
		if _, err := w.Write(img.data); err != nil {
			return nil, fmt.Errorf("写入图片失败: %w", err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("打包文档失败: %w", err)
	}
	return buf.Bytes(), nil
}

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

const nsMain = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

const rootRels = xmlHeader +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const stylesXML = xmlHeader +
	`<w:styles xmlns:w="` + nsMain + `">` +
	`<w:docDefaults><w:rPrDefault><w:rPr>` +
	`<w:rFonts w:ascii="맑은 고딕" w:eastAsia="맑은 고딕" w:hAnsi="맑은 고딕"/>` +
	`<w:sz w:val="22"/><w:szCs w:val="22"/>` +
	`</w:rPr></w:rPrDefault></w:docDefaults>` +
	`<w:style w:type="table" w:styleId="TableGrid"><w:name w:val="Table Grid"/>` +
	`<w:tblPr><w:tblBorders>` +
	`<w:top w:val="single" w:sz="4" w:color="auto"/>` +
	`<w:left w:val="single" w:sz="4" w:color="auto"/>` +
	`<w:bottom w:val="single" w:sz="4" w:color="auto"/>` +
	`<w:right w:val="single" w:sz="4" w:color="auto"/>` +
	`<w:insideH w:val="single" w:sz="4" w:color="auto"/>` +
	`<w:insideV w:val="single" w:sz="4" w:color="auto"/>` +
	`</w:tblBorders></w:tblPr></w:style>` +
	`</w:styles>`

func (d *Document) contentTypes() string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	b.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	b.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	if len(d.images) > 0 {
		b.WriteString(`<Default Extension="png" ContentType="image/png"/>`)
	}
	b.WriteString(`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>`)
	b.WriteString(`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>`)
	b.WriteString(`<Override PartName="/word/settings.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.settings+xml"/>`)
	b.WriteString(`<Override PartName="/word/footer1.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.footer+xml"/>`)
	b.WriteString(`</Types>`)
	return b.String()
}

func (d *Document) documentRels() string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	b.WriteString(`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>`)
	b.WriteString(`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/settings" Target="settings.xml"/>`)
	b.WriteString(`<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/footer" Target="footer1.xml"/>`)
	for _, img := range d.images {
		fmt.Fprintf(&b, `<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/%s"/>`, img.rid, img.name)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

func (d *Document) settingsXML() string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<w:settings xmlns:w="` + nsMain + `">`)
	if d.readOnly {
		b.WriteString(`<w:documentProtection w:edit="readOnly" w:enforcement="1"/>`)
	}
	b.WriteString(`</w:settings>`)
	return b.String()
}

func (d *Document) footerXML() string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<w:ftr xmlns:w="` + nsMain + `">`)
	b.WriteString(`<w:p><w:pPr><w:jc w:val="center"/></w:pPr>`)
	if d.footerText != "" {
		fmt.Fprintf(&b, `<w:r><w:rPr><w:b/><w:sz w:val="18"/><w:szCs w:val="18"/></w:rPr><w:t xml:space="preserve">%s</w:t></w:r>`, escape(d.footerText))
	}
	// PAGE 页码域
	b.WriteString(`<w:r><w:fldChar w:fldCharType="begin"/></w:r>`)
	b.WriteString(`<w:r><w:instrText xml:space="preserve">PAGE</w:instrText></w:r>`)
	b.WriteString(`<w:r><w:fldChar w:fldCharType="end"/></w:r>`)
	b.WriteString(`</w:p></w:ftr>`)
	return b.String()
}

func (d *Document) documentXML() string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<w:document xmlns:w="` + nsMain + `"` +
		` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"` +
		` xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"` +
		` xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"` +
		` xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">`)
	b.WriteString(`<w:body>`)
	for _, block := range d.blocks {
		b.WriteString(block)
	}
	// 0.5 英寸页边距，页脚引用
	b.WriteString(`<w:sectPr>` +
		`<w:footerReference w:type="default" r:id="rId3"/>` +
		`<w:pgSz w:w="11906" w:h="16838"/>` +
		`<w:pgMar w:top="720" w:right="720" w:bottom="720" w:left="720" w:header="708" w:footer="708" w:gutter="0"/>` +
		`</w:sectPr>`)
	b.WriteString(`</w:body></w:document>`)
	return b.String()
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func escape(s string) string {
	return escaper.Replace(s)
}
