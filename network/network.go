package network

import (
	"fmt"
	"math"

	"github.com/tebben/riool/models"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// Network is the undirected graph of a sewerage: manholes are nodes, sewers
// are edges.
type Network struct {
	g        *simple.UndirectedGraph
	ids      map[string]int64
	manholes map[int64]models.Manhole
	sewers   map[edgeKey]models.Sewer
}

type edgeKey struct {
	a, b int64
}

func key(a, b int64) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// New builds the graph of the given sewers. When two sewers connect the
// same manholes the last one is kept.
func New(sewers []models.Sewer) *Network {
	n := &Network{
		g:        simple.NewUndirectedGraph(),
		ids:      make(map[string]int64),
		manholes: make(map[int64]models.Manhole),
		sewers:   make(map[edgeKey]models.Sewer),
	}

	for _, s := range sewers {
		a := n.node(s.Manhole1)
		b := n.node(s.Manhole2)
		if a.ID() == b.ID() {
			// simple graphs have no self loops, such a sewer is never on a path
			continue
		}
		n.g.SetEdge(n.g.NewEdge(a, b))
		n.sewers[key(a.ID(), b.ID())] = s
	}

	return n
}

func (n *Network) node(m models.Manhole) graph.Node {
	if id, ok := n.ids[m.Code]; ok {
		return n.g.Node(id)
	}
	node := n.g.NewNode()
	n.g.AddNode(node)
	n.ids[m.Code] = node.ID()
	n.manholes[node.ID()] = m
	return node
}

// Manhole returns a manhole by code.
func (n *Network) Manhole(code string) (models.Manhole, bool) {
	id, ok := n.ids[code]
	if !ok {
		return models.Manhole{}, false
	}
	return n.manholes[id], true
}

// Sewer returns the sewer between two adjacent manholes.
func (n *Network) Sewer(a, b string) (models.Sewer, bool) {
	ida, ok := n.ids[a]
	if !ok {
		return models.Sewer{}, false
	}
	idb, ok := n.ids[b]
	if !ok {
		return models.Sewer{}, false
	}
	s, ok := n.sewers[key(ida, idb)]
	return s, ok
}

// ShortestPath returns the manhole codes on a path with the fewest sewers.
func (n *Network) ShortestPath(source, target string) ([]string, error) {
	from, ok := n.ids[source]
	if !ok {
		return nil, fmt.Errorf("source %s not in graph", source)
	}
	to, ok := n.ids[target]
	if !ok {
		return nil, fmt.Errorf("target %s not in graph", target)
	}

	shortest := path.DijkstraFrom(n.g.Node(from), n.g)
	nodes, weight := shortest.To(to)
	if len(nodes) == 0 || math.IsInf(weight, 1) {
		return nil, fmt.Errorf("no path between %s and %s", source, target)
	}

	codes := make([]string, len(nodes))
	for i, node := range nodes {
		codes[i] = n.manholes[node.ID()].Code
	}
	return codes, nil
}

// Sewers returns the sewer codes along a path of manholes.
func (n *Network) Sewers(manholes []string) ([]string, error) {
	var codes []string
	for i := 0; i < len(manholes)-1; i++ {
		s, ok := n.Sewer(manholes[i], manholes[i+1])
		if !ok {
			return nil, fmt.Errorf("manholes %s and %s are not connected", manholes[i], manholes[i+1])
		}
		codes = append(codes, s.Code)
	}
	return codes, nil
}
