package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"dealdossier/internal/domain"
)

const (
	jsonMaxLevel    = 5
	jsonMaxKeys     = 5
	jsonPreviewSize = 500
)

type jsonKind int

const (
	jsonObject jsonKind = iota
	jsonArray
	jsonString
	jsonNumber
	jsonBool
	jsonNull
)

// jsonNode keeps object keys in document order.
type jsonNode struct {
	kind   jsonKind
	keys   []string
	values []*jsonNode
	num    json.Number
	str    string
}

func extractJSON(data []byte) (*domain.JSONInsight, error) {
	root, err := parseJSON(data)
	if err != nil {
		return nil, err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, bytes.TrimSpace(data), "", "  "); err != nil {
		return nil, fmt.Errorf("formatting json: %w", err)
	}

	preview := pretty.String()
	if utf8.RuneCountInString(preview) > jsonPreviewSize {
		preview = firstRunes(preview, jsonPreviewSize) + "..."
	}

	in := &domain.JSONInsight{
		Kind:      domain.StrategyJSON,
		Structure: jsonStructure(root, 0),
		KeyCount:  len(root.values),
		Depth:     jsonDepth(root),
		DataTypes: jsonDataTypes(root),
		Preview:   preview,
	}
	in.KeyMetrics = jsonMetrics(root)
	return in, nil
}

func parseJSON(data []byte) (*jsonNode, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	root, err := decodeNode(dec)
	if err != nil {
		return nil, fmt.Errorf("parsing json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("parsing json: unexpected data after top-level value")
	}
	return root, nil
}

func decodeNode(dec *json.Decoder) (*jsonNode, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			n := &jsonNode{kind: jsonObject}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T", kt)
				}
				v, err := decodeNode(dec)
				if err != nil {
					return nil, err
				}
				n.keys = append(n.keys, key)
				n.values = append(n.values, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		case '[':
			n := &jsonNode{kind: jsonArray}
			for dec.More() {
				v, err := decodeNode(dec)
				if err != nil {
					return nil, err
				}
				n.values = append(n.values, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	case json.Number:
		return &jsonNode{kind: jsonNumber, num: t}, nil
	case string:
		return &jsonNode{kind: jsonString, str: t}, nil
	case bool:
		return &jsonNode{kind: jsonBool}, nil
	case nil:
		return &jsonNode{kind: jsonNull}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// typeName follows the runtime type names a browser reports; null is an object.
func (n *jsonNode) typeName() string {
	switch n.kind {
	case jsonArray:
		return "array"
	case jsonString:
		return "string"
	case jsonNumber:
		return "number"
	case jsonBool:
		return "boolean"
	default:
		return "object"
	}
}

func jsonStructure(n *jsonNode, level int) string {
	if level > jsonMaxLevel {
		return "deeply nested..."
	}
	switch n.kind {
	case jsonArray:
		return fmt.Sprintf("Array[%d]", len(n.values))
	case jsonObject:
		parts := make([]string, 0, jsonMaxKeys)
		for i, k := range n.keys {
			if i == jsonMaxKeys {
				break
			}
			parts = append(parts, k+": "+jsonStructure(n.values[i], level+1))
		}
		more := ""
		if len(n.keys) > jsonMaxKeys {
			more = ", ..."
		}
		return "{" + strings.Join(parts, ", ") + more + "}"
	default:
		return n.typeName()
	}
}

func jsonDepth(n *jsonNode) int {
	if n.kind != jsonObject && n.kind != jsonArray {
		return 0
	}
	deepest := 0
	for _, v := range n.values {
		if d := jsonDepth(v); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

func jsonDataTypes(root *jsonNode) []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(*jsonNode)
	walk = func(n *jsonNode) {
		if t := n.typeName(); !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
		for _, v := range n.values {
			walk(v)
		}
	}
	walk(root)
	sort.Strings(out)
	return out
}

// jsonMetrics reports top-level members named like a known metric.
func jsonMetrics(root *jsonNode) []domain.KeyMetric {
	if root.kind != jsonObject {
		return nil
	}
	var b strings.Builder
	for i, k := range root.keys {
		v := root.values[i]
		switch v.kind {
		case jsonNumber:
			fmt.Fprintf(&b, "%s: %s\n", k, v.num.String())
		case jsonString:
			fmt.Fprintf(&b, "%s: %s\n", k, v.str)
		}
	}
	return scanMetrics(b.String())
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
