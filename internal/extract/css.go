package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// cssStrategy 用 goquery 的 CSS 选择器抽取。XML 内容也按 HTML 宽松解析，
// 对 RSS 这种 <link> 带文本的格式请用 rss / xpath。
type cssStrategy struct {
	d Descriptor
}

func (s *cssStrategy) Name() string {
	if s.d.Item == "" {
		return "css"
	}
	return "css:" + s.d.Item
}

func (s *cssStrategy) Extract(content string, _ Kind) (Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return Candidate{}, fmt.Errorf("%w: %v", ErrMalformedContent, err)
	}

	item := doc.Selection
	if s.d.Item != "" {
		// 非法选择器在 goquery 中只会得到空结果，不会 panic
		item = doc.Find(s.d.Item).First()
	}
	if item.Length() == 0 {
		return Candidate{}, ErrNoMatch
	}

	return readFields(&s.d, func(selector, attr string) (string, error) {
		target := item
		if selector != "" {
			target = item.Find(selector).First()
		}
		if target.Length() == 0 {
			return "", nil
		}
		if attr != "" {
			v, _ := target.Attr(attr)
			return v, nil
		}
		return target.Text(), nil
	})
}
