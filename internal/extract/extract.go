package extract

import (
	"errors"
	"strings"
)

// Kind 原始内容的类型
type Kind string

const (
	KindHTML Kind = "html"
	KindXML  Kind = "xml"
)

var (
	// ErrNoMatch 当前策略没有找到可用条目，属于正常结果
	ErrNoMatch = errors.New("extract: no match")
	// ErrMalformedContent 原始内容无法解析，对调用方等同于 ErrNoMatch
	ErrMalformedContent = errors.New("extract: malformed content")
	// ErrMalformedDescriptor 策略描述本身有问题（未知 kind、非法 xpath 等）
	ErrMalformedDescriptor = errors.New("extract: malformed descriptor")
)

// Candidate 一次抽取得到的候选条目，尚未做规范化
type Candidate struct {
	Title   string
	Date    string
	Summary string
	Link    string
}

// Usable 标题与链接都非空才算命中
func (c Candidate) Usable() bool {
	return c.Title != "" && c.Link != ""
}

// Rule 描述如何读取一个字段：Selector 为空表示条目本身，Attr 为空表示取文本。
// 主规则取到空字符串时依次尝试 Fallback。
type Rule struct {
	Selector string `mapstructure:"selector" json:"selector,omitempty"`
	Attr     string `mapstructure:"attr" json:"attr,omitempty"`
	Fallback *Rule  `mapstructure:"fallback" json:"fallback,omitempty"`
}

// Or 返回挂上 fallback 的规则副本，便于在 Go 里写静态表
func (r Rule) Or(fallback Rule) Rule {
	if r.Fallback == nil {
		r.Fallback = &fallback
		return r
	}
	next := r.Fallback.Or(fallback)
	r.Fallback = &next
	return r
}

type lookupFunc func(selector, attr string) (string, error)

func (r *Rule) eval(lookup lookupFunc) (string, error) {
	for cur := r; cur != nil; cur = cur.Fallback {
		v, err := lookup(cur.Selector, cur.Attr)
		if err != nil {
			return "", err
		}
		if v = cleanText(v); v != "" {
			return v, nil
		}
	}
	return "", nil
}

// Descriptor 一条抽取策略的数据描述；同一个源的多条策略按列表顺序决定优先级
type Descriptor struct {
	// Kind: css / xpath / rss / dom
	Kind    string `mapstructure:"kind" json:"kind"`
	Item    string `mapstructure:"item" json:"item,omitempty"`
	Title   Rule   `mapstructure:"title" json:"title"`
	Date    Rule   `mapstructure:"date" json:"date"`
	Summary Rule   `mapstructure:"summary" json:"summary"`
	Link    Rule   `mapstructure:"link" json:"link"`
}

// Strategy 把原始内容映射成候选条目的纯函数
type Strategy interface {
	Name() string
	Extract(content string, kind Kind) (Candidate, error)
}

// New 根据描述选择解析后端；未知 kind 返回一个始终报错的策略，由调用方当作未命中处理
func New(d Descriptor) Strategy {
	switch strings.ToLower(strings.TrimSpace(d.Kind)) {
	case "", "css":
		return &cssStrategy{d: d}
	case "xpath":
		return &xpathStrategy{d: d}
	case "rss", "atom":
		return newFeedStrategy(d)
	case "dom":
		return &domStrategy{d: d}
	default:
		return brokenStrategy{kind: d.Kind}
	}
}

type brokenStrategy struct {
	kind string
}

func (b brokenStrategy) Name() string { return "broken:" + b.kind }

func (b brokenStrategy) Extract(string, Kind) (Candidate, error) {
	return Candidate{}, errors.Join(ErrMalformedDescriptor, errors.New("unknown strategy kind "+b.kind))
}

// readFields 依次读取四个字段，标题或链接为空即视为未命中
func readFields(d *Descriptor, lookup lookupFunc) (Candidate, error) {
	var c Candidate
	var err error
	if c.Title, err = d.Title.eval(lookup); err != nil {
		return Candidate{}, err
	}
	if c.Date, err = d.Date.eval(lookup); err != nil {
		return Candidate{}, err
	}
	if c.Summary, err = d.Summary.eval(lookup); err != nil {
		return Candidate{}, err
	}
	if c.Link, err = d.Link.eval(lookup); err != nil {
		return Candidate{}, err
	}
	if !c.Usable() {
		return c, ErrNoMatch
	}
	return c, nil
}

// cleanText 折叠连续空白
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
