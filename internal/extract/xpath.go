package extract

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// xpathStrategy HTML 走 htmlquery，XML 走 xmlquery；表达式在使用时编译，
// 编译失败归为 ErrMalformedDescriptor。
type xpathStrategy struct {
	d Descriptor
	// forceXML 为 true 时忽略传入的 Kind，一律按 XML 解析（rss 策略使用）
	forceXML bool
}

func (s *xpathStrategy) Name() string {
	if s.d.Item == "" {
		return "xpath"
	}
	return "xpath:" + s.d.Item
}

func (s *xpathStrategy) Extract(content string, kind Kind) (Candidate, error) {
	if s.forceXML || kind == KindXML {
		return s.extractXML(content)
	}
	return s.extractHTML(content)
}

func compile(expr string) (*xpath.Expr, error) {
	e, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: xpath %q: %v", ErrMalformedDescriptor, expr, err)
	}
	return e, nil
}

func (s *xpathStrategy) extractHTML(content string) (Candidate, error) {
	doc, err := htmlquery.Parse(strings.NewReader(content))
	if err != nil {
		return Candidate{}, fmt.Errorf("%w: %v", ErrMalformedContent, err)
	}

	item := doc
	if s.d.Item != "" {
		e, err := compile(s.d.Item)
		if err != nil {
			return Candidate{}, err
		}
		item = htmlquery.QuerySelector(doc, e)
	}
	if item == nil {
		return Candidate{}, ErrNoMatch
	}

	return readFields(&s.d, func(selector, attr string) (string, error) {
		target := item
		if selector != "" {
			e, err := compile(selector)
			if err != nil {
				return "", err
			}
			target = htmlquery.QuerySelector(item, e)
		}
		if target == nil {
			return "", nil
		}
		if attr != "" {
			return htmlquery.SelectAttr(target, attr), nil
		}
		return htmlquery.InnerText(target), nil
	})
}

func (s *xpathStrategy) extractXML(content string) (Candidate, error) {
	doc, err := xmlquery.Parse(strings.NewReader(content))
	if err != nil {
		return Candidate{}, fmt.Errorf("%w: %v", ErrMalformedContent, err)
	}

	item := doc
	if s.d.Item != "" {
		e, err := compile(s.d.Item)
		if err != nil {
			return Candidate{}, err
		}
		item = xmlquery.QuerySelector(doc, e)
	}
	if item == nil {
		return Candidate{}, ErrNoMatch
	}

	return readFields(&s.d, func(selector, attr string) (string, error) {
		target := item
		if selector != "" {
			e, err := compile(selector)
			if err != nil {
				return "", err
			}
			target = xmlquery.QuerySelector(item, e)
		}
		if target == nil {
			return "", nil
		}
		if attr != "" {
			return target.SelectAttr(attr), nil
		}
		return target.InnerText(), nil
	})
}
