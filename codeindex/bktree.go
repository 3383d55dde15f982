package codeindex

import (
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// bkNode is a node of a BK-tree over manhole codes. Children are keyed by
// their edit distance to the node.
type bkNode struct {
	code     string
	children map[int]*bkNode
}

type bkTree struct {
	root *bkNode
	size int
}

func distance(a, b string) int {
	return levenshtein.DistanceForStrings([]rune(a), []rune(b), levenshtein.DefaultOptionsWithSub)
}

func (t *bkTree) insert(code string) {
	if t.root == nil {
		t.root = &bkNode{code: code, children: make(map[int]*bkNode)}
		t.size++
		return
	}

	node := t.root
	for {
		d := distance(normalize(node.code), normalize(code))
		if d == 0 {
			return
		}
		child, ok := node.children[d]
		if !ok {
			node.children[d] = &bkNode{code: code, children: make(map[int]*bkNode)}
			t.size++
			return
		}
		node = child
	}
}

// search visits every code within maxDistance of the query.
func (t *bkTree) search(query string, maxDistance int, visit func(code string, d int)) {
	if t.root == nil {
		return
	}

	query = normalize(query)
	stack := []*bkNode{t.root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		d := distance(normalize(node.code), query)
		if d <= maxDistance {
			visit(node.code, d)
		}
		for dist, child := range node.children {
			if dist >= d-maxDistance && dist <= d+maxDistance {
				stack = append(stack, child)
			}
		}
	}
}
