package planner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedTree 先修树结构非法（组合键缺失或多于一个、nOf 参数错误等）
var ErrMalformedTree = errors.New("先修树结构非法")

// NodeKind 先修树节点类型
type NodeKind int

const (
	NodeLeaf    NodeKind = iota + 1 // 单门课程（可含通配符）
	NodeAll                         // and：全部满足
	NodeAny                         // or：至少一个满足
	NodeAtLeast                     // nOf：至少 N 个满足
)

// PrereqTree 先修条件树
//
// nil 表示无先修要求。叶子节点的 Code 可能带有成绩后缀（"CS1010:D"）
// 与通配符（"CS1010%" 或 "CS1010*"），成绩后缀在判定时忽略。
type PrereqTree struct {
	Kind     NodeKind
	Code     string
	N        int
	Children []*PrereqTree
}

// Leaf 构造叶子节点
func Leaf(code string) *PrereqTree {
	return &PrereqTree{Kind: NodeLeaf, Code: code}
}

// All 构造 and 节点
func All(children ...*PrereqTree) *PrereqTree {
	return &PrereqTree{Kind: NodeAll, Children: children}
}

// Any 构造 or 节点
func Any(children ...*PrereqTree) *PrereqTree {
	return &PrereqTree{Kind: NodeAny, Children: children}
}

// AtLeast 构造 nOf 节点
func AtLeast(n int, children ...*PrereqTree) *PrereqTree {
	return &PrereqTree{Kind: NodeAtLeast, N: n, Children: children}
}

// ────────────────────── Satisfied ──────────────────────

// Satisfied 判断已修课程集合是否满足先修树
//
// 纯函数。and/or/nOf 均短路求值；遇到未知节点类型立即返回 ErrMalformedTree。
func Satisfied(tree *PrereqTree, completed CodeSet) (bool, error) {
	if tree == nil {
		return true, nil
	}

	switch tree.Kind {
	case NodeLeaf:
		return leafSatisfied(tree.Code, completed)

	case NodeAll:
		for _, child := range tree.Children {
			ok, err := Satisfied(child, completed)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case NodeAny:
		for _, child := range tree.Children {
			ok, err := Satisfied(child, completed)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case NodeAtLeast:
		if tree.N <= 0 {
			return true, nil
		}
		fulfilled := 0
		for _, child := range tree.Children {
			ok, err := Satisfied(child, completed)
			if err != nil {
				return false, err
			}
			if ok {
				fulfilled++
				if fulfilled >= tree.N {
					return true, nil
				}
			}
		}
		return false, nil

	default:
		return false, fmt.Errorf("%w: 未知节点类型 %d", ErrMalformedTree, tree.Kind)
	}
}

// leafSatisfied 叶子节点：去掉成绩后缀后按通配符匹配已修课程
func leafSatisfied(raw string, completed CodeSet) (bool, error) {
	pattern := raw
	if i := strings.IndexByte(pattern, ':'); i >= 0 {
		pattern = pattern[:i]
	}
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false, fmt.Errorf("%w: 叶子节点课程代码为空", ErrMalformedTree)
	}

	if !strings.ContainsAny(pattern, "%*") {
		return completed.Has(pattern), nil
	}

	re, err := wildcardRegexp(pattern)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedTree, err)
	}
	for code := range completed {
		if re.MatchString(code) {
			return true, nil
		}
	}
	return false, nil
}

// wildcardRegexp 将 "CS1010%" 转为锚定的 ^CS1010.*$
func wildcardRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range pattern {
		if r == '%' || r == '*' {
			b.WriteString(".*")
			continue
		}
		b.WriteString(regexp.QuoteMeta(string(r)))
	}
	b.WriteByte('$')
	return regexp.Compile(b.String())
}

// ────────────────────── JSON ──────────────────────

// ParsePrereqTree 解析 NUSMods 的 prereqTree 字段
//
//	"CS1010:D"                      → 叶子
//	{"and": [...]} / {"or": [...]}  → 组合
//	{"nOf": [2, [...]]}             → 至少 N 个
//
// 空输入或 null 返回 nil（无先修要求）。
func ParsePrereqTree(raw json.RawMessage) (*PrereqTree, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	return parseNode(trimmed)
}

func parseNode(raw json.RawMessage) (*PrereqTree, error) {
	var code string
	if err := json.Unmarshal(raw, &code); err == nil {
		return Leaf(code), nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTree, err)
	}
	if len(obj) != 1 {
		return nil, fmt.Errorf("%w: 组合节点需恰好一个键，实际 %d 个", ErrMalformedTree, len(obj))
	}

	for op, body := range obj {
		switch op {
		case "and", "or":
			children, err := parseChildren(body)
			if err != nil {
				return nil, err
			}
			if op == "and" {
				return All(children...), nil
			}
			return Any(children...), nil

		case "nOf":
			var pair []json.RawMessage
			if err := json.Unmarshal(body, &pair); err != nil || len(pair) != 2 {
				return nil, fmt.Errorf("%w: nOf 需为 [n, [...]]", ErrMalformedTree)
			}
			var n int
			if err := json.Unmarshal(pair[0], &n); err != nil {
				return nil, fmt.Errorf("%w: nOf 的 n 非整数", ErrMalformedTree)
			}
			children, err := parseChildren(pair[1])
			if err != nil {
				return nil, err
			}
			return AtLeast(n, children...), nil

		default:
			return nil, fmt.Errorf("%w: 未知组合键 %q", ErrMalformedTree, op)
		}
	}
	return nil, ErrMalformedTree
}

func parseChildren(raw json.RawMessage) ([]*PrereqTree, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: 子节点需为数组", ErrMalformedTree)
	}
	children := make([]*PrereqTree, 0, len(items))
	for _, item := range items {
		child, err := parseNode(item)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}
