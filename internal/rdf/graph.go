// Package rdf reads repository resources serialized as expanded JSON-LD.
//
// Only what the indexer needs is supported: node objects with @id and
// @type, value objects, and references to other nodes. Nested node objects
// are lifted into the graph so embedded children can be looked up by id.
package rdf

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidDocument is returned when the input is not a JSON-LD node list.
var ErrInvalidDocument = errors.New("rdf: invalid JSON-LD document")

// Term is one object of a triple: an IRI reference or a literal.
type Term struct {
	IRI      string
	Value    string
	Language string
	Datatype string
}

// IsIRI reports whether the term references another node.
func (t Term) IsIRI() bool {
	return t.IRI != ""
}

// String returns the IRI or the literal value.
func (t Term) String() string {
	if t.IsIRI() {
		return t.IRI
	}
	return t.Value
}

// Node is a subject and its outgoing properties in document order.
type Node struct {
	ID    string
	Types []string
	props map[string][]Term
}

// HasType reports whether the node declares typ.
func (n *Node) HasType(typ string) bool {
	return slices.Contains(n.Types, typ)
}

// Terms returns the objects of predicate.
func (n *Node) Terms(predicate string) []Term {
	return n.props[predicate]
}

// Values returns the objects of predicate as strings.
func (n *Node) Values(predicate string) []string {
	terms := n.props[predicate]
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		out = append(out, t.String())
	}
	return out
}

// Value returns the first object of predicate or "".
func (n *Node) Value(predicate string) string {
	if terms := n.props[predicate]; len(terms) > 0 {
		return terms[0].String()
	}
	return ""
}

// Objects returns the IRIs predicate points at.
func (n *Node) Objects(predicate string) []string {
	var out []string
	for _, t := range n.props[predicate] {
		if t.IsIRI() {
			out = append(out, t.IRI)
		}
	}
	return out
}

// Graph is a set of nodes keyed by id, in first-seen order.
type Graph struct {
	nodes map[string]*Node
	order []string
}

// Node returns the node with id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in first-seen order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// FirstOfType returns the first node declaring typ.
func (g *Graph) FirstOfType(typ string) (*Node, bool) {
	for _, id := range g.order {
		if n := g.nodes[id]; n.HasType(typ) {
			return n, true
		}
	}
	return nil, false
}

// ParseExpanded parses expanded JSON-LD: a top-level array of node objects,
// a single node object, or an object with an @graph array. Compact @id and
// @type strings are accepted as well.
func ParseExpanded(data []byte) (*Graph, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	g := &Graph{nodes: make(map[string]*Node)}
	switch v := raw.(type) {
	case []any:
		if err := g.addNodes(v); err != nil {
			return nil, err
		}
	case map[string]any:
		if list, ok := v["@graph"].([]any); ok {
			if err := g.addNodes(list); err != nil {
				return nil, err
			}
		} else if _, err := g.addNode(v); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: top level is %T", ErrInvalidDocument, raw)
	}
	return g, nil
}

func (g *Graph) addNodes(list []any) error {
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: element %d is %T", ErrInvalidDocument, i, item)
		}
		if _, err := g.addNode(obj); err != nil {
			return err
		}
	}
	return nil
}

// addNode merges obj into the graph and returns its id. Blank nodes without
// an @id get a generated one.
func (g *Graph) addNode(obj map[string]any) (string, error) {
	id, _ := obj["@id"].(string)
	if id == "" {
		id = fmt.Sprintf("_:b%d", len(g.order))
	}
	n, ok := g.nodes[id]
	if !ok {
		n = &Node{ID: id, props: make(map[string][]Term)}
		g.nodes[id] = n
		g.order = append(g.order, id)
	}

	for _, typ := range stringList(obj["@type"]) {
		if !n.HasType(typ) {
			n.Types = append(n.Types, typ)
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if len(key) > 0 && key[0] == '@' {
			continue
		}
		values, ok := obj[key].([]any)
		if !ok {
			values = []any{obj[key]}
		}
		for _, v := range values {
			term, err := g.term(v)
			if err != nil {
				return "", fmt.Errorf("%s %s: %w", id, key, err)
			}
			n.props[key] = append(n.props[key], term)
		}
	}
	return id, nil
}

func (g *Graph) term(v any) (Term, error) {
	switch val := v.(type) {
	case string:
		return Term{Value: val}, nil
	case float64, bool:
		return Term{Value: fmt.Sprint(val)}, nil
	case map[string]any:
		if lit, ok := val["@value"]; ok {
			t := Term{Value: fmt.Sprint(lit)}
			t.Language, _ = val["@language"].(string)
			t.Datatype, _ = val["@type"].(string)
			return t, nil
		}
		if len(val) == 1 {
			if id, ok := val["@id"].(string); ok {
				return Term{IRI: id}, nil
			}
		}
		// Embedded node object.
		id, err := g.addNode(val)
		if err != nil {
			return Term{}, err
		}
		return Term{IRI: id}, nil
	default:
		return Term{}, fmt.Errorf("%w: unsupported value %T", ErrInvalidDocument, v)
	}
}

func stringList(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
