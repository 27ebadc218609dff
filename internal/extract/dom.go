package extract

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var defaultContainers = []string{"article", "main", "body"}

// domStrategy 不依赖任何选择器的兜底：直接遍历 DOM 树，
// 在第一个容器中找标题、链接、时间和首段正文。
// Item 可写逗号分隔的标签名，优先于默认容器列表。
type domStrategy struct {
	d Descriptor
}

func (s *domStrategy) Name() string { return "dom" }

func (s *domStrategy) Extract(content string, _ Kind) (Candidate, error) {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return Candidate{}, fmt.Errorf("%w: %v", ErrMalformedContent, err)
	}

	var container *html.Node
	for _, tag := range s.containers() {
		if container = findFirst(root, byTag(tag)); container != nil {
			break
		}
	}
	if container == nil {
		return Candidate{}, ErrNoMatch
	}

	var c Candidate
	heading := findFirst(container, isHeading)
	if heading != nil {
		c.Title = cleanText(textOf(heading))
		if a := findFirst(heading, isLink); a != nil {
			c.Link = strings.TrimSpace(attr(a, "href"))
		}
	}
	if c.Link == "" {
		if a := findFirst(container, isLink); a != nil {
			c.Link = strings.TrimSpace(attr(a, "href"))
		}
	}
	if t := findFirst(container, byAtom(atom.Time)); t != nil {
		c.Date = strings.TrimSpace(attr(t, "datetime"))
		if c.Date == "" {
			c.Date = cleanText(textOf(t))
		}
	}
	if p := findFirst(container, func(n *html.Node) bool {
		return n.DataAtom == atom.P && cleanText(textOf(n)) != ""
	}); p != nil {
		c.Summary = cleanText(textOf(p))
	}

	if !c.Usable() {
		return c, ErrNoMatch
	}
	return c, nil
}

func (s *domStrategy) containers() []string {
	if strings.TrimSpace(s.d.Item) == "" {
		return defaultContainers
	}
	var tags []string
	for _, t := range strings.Split(s.d.Item, ",") {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			tags = append(tags, t)
		}
	}
	return append(tags, defaultContainers...)
}

func byTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

func byAtom(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == a
	}
}

func isHeading(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3:
		return cleanText(textOf(n)) != ""
	}
	return false
}

func isLink(n *html.Node) bool {
	return n.Type == html.ElementNode && n.DataAtom == atom.A && strings.TrimSpace(attr(n, "href")) != ""
}

// findFirst 深度优先，返回第一个满足条件的节点（包含 n 自身）
func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
