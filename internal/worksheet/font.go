package worksheet

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

// 图表里的韩文标注需要本地字体文件，容器里通常没有，
// 启动后首次用到时从 google/fonts 拉一份，失败则图表退化为无文字
const (
	fontFile = "NanumGothic.ttf"
	fontURL  = "https://github.com/google/fonts/raw/main/ofl/nanumgothic/NanumGothic-Regular.ttf"
)

var (
	fontOnce sync.Once
	fontPath string
)

// KoreanFontPath 返回韩文字体文件路径，不可用时返回空串
func KoreanFontPath() string {
	fontOnce.Do(func() {
		if _, err := os.Stat(fontFile); err == nil {
			fontPath = fontFile
			return
		}
		if err := downloadFont(); err != nil {
			log.Printf("[Worksheet] 下载韩文字体失败，图表将不含文字: %v", err)
			return
		}
		fontPath = fontFile
	})
	return fontPath
}

func downloadFont() error {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(fontURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("状态码 %d", resp.StatusCode)
	}

	f, err := os.Create(fontFile)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(fontFile)
		return err
	}
	return nil
}
