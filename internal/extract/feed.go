package extract

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RSS 2.0 与 Atom 的默认取值方式
var (
	rssPreset = Descriptor{
		Item:    "//channel/item",
		Title:   Rule{Selector: "title"},
		Date:    Rule{Selector: "pubDate"}.Or(Rule{Selector: "dc:date"}),
		Summary: Rule{Selector: "description"}.Or(Rule{Selector: "content:encoded"}),
		Link:    Rule{Selector: "link"}.Or(Rule{Selector: "guid"}),
	}
	atomPreset = Descriptor{
		Item:    "//entry",
		Title:   Rule{Selector: "title"},
		Date:    Rule{Selector: "updated"}.Or(Rule{Selector: "published"}),
		Summary: Rule{Selector: "summary"}.Or(Rule{Selector: "content"}),
		Link:    Rule{Selector: "link[@rel='alternate']", Attr: "href"}.Or(Rule{Selector: "link", Attr: "href"}),
	}
)

// feedStrategy 取订阅源里的第一条。描述里写了 Item 时只用这一套规则，
// 未填写的字段沿用 RSS 默认值。
type feedStrategy struct {
	variants []*xpathStrategy
}

func newFeedStrategy(d Descriptor) *feedStrategy {
	if d.Item == "" {
		return &feedStrategy{variants: []*xpathStrategy{
			{d: rssPreset, forceXML: true},
			{d: atomPreset, forceXML: true},
		}}
	}
	merged := d
	merged.Title = orDefault(d.Title, rssPreset.Title)
	merged.Date = orDefault(d.Date, rssPreset.Date)
	merged.Summary = orDefault(d.Summary, rssPreset.Summary)
	merged.Link = orDefault(d.Link, rssPreset.Link)
	return &feedStrategy{variants: []*xpathStrategy{{d: merged, forceXML: true}}}
}

func orDefault(r, def Rule) Rule {
	if r.Selector == "" && r.Attr == "" && r.Fallback == nil {
		return def
	}
	return r
}

func (s *feedStrategy) Name() string { return "rss" }

func (s *feedStrategy) Extract(content string, kind Kind) (Candidate, error) {
	var lastErr error = ErrNoMatch
	for _, v := range s.variants {
		c, err := v.Extract(content, KindXML)
		if err == nil {
			c.Summary = stripTags(c.Summary)
			return c, nil
		}
		// 内容本身坏了，换一套规则也没用
		if errors.Is(err, ErrMalformedContent) {
			return Candidate{}, err
		}
		lastErr = err
	}
	return Candidate{}, lastErr
}

// stripTags description 里常常是转义后的 HTML，只保留文字
func stripTags(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return cleanText(doc.Text())
}
