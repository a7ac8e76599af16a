// Package artwork 处理曲目封面：缺失时生成占位封面，已有封面统一裁剪为正方形 JPEG。
package artwork

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/text/unicode/norm"
)

// DefaultSize 默认封面边长
const DefaultSize = 1024

// NormalizeTitle 标题做 NFC 规范化并折叠空白
func NormalizeTitle(title string) string {
	title = norm.NFC.String(title)
	return strings.Join(strings.Fields(title), " ")
}

// Normalize 将任意格式的封面裁剪为 size×size 的 JPEG
func Normalize(data []byte, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("解析封面失败: %w", err)
	}

	img = imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("编码封面失败: %w", err)
	}
	return buf.Bytes(), nil
}

// Placeholder 根据标题生成渐变占位封面（PNG）
func Placeholder(title string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	title = NormalizeTitle(title)
	if title == "" {
		title = "Untitled"
	}

	from, to := palette(title)
	s := float64(size)

	dc := gg.NewContext(size, size)
	grad := gg.NewLinearGradient(0, 0, s, s)
	grad.AddColorStop(0, from)
	grad.AddColorStop(1, to)
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, s, s)
	dc.Fill()

	// basicfont 字形很小，放大后居中绘制
	scale := s / 256
	dc.Push()
	dc.Scale(scale, scale)
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetRGB(1, 1, 1)
	dc.DrawStringWrapped(title, 128, 128, 0.5, 0.5, 220, 1.4, gg.AlignCenter)
	dc.Pop()

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("编码占位封面失败: %w", err)
	}
	return buf.Bytes(), nil
}

// palette 同一标题总是得到同一组颜色
func palette(title string) (color.Color, color.Color) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(title))
	sum := h.Sum32()

	from := color.RGBA{R: uint8(sum), G: uint8(sum >> 8), B: 160, A: 255}
	to := color.RGBA{R: 20, G: uint8(sum >> 16), B: uint8(sum >> 24), A: 255}
	return from, to
}
