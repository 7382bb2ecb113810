// Package report renders the call tree of one iteration as a DOT graph.
package report

import (
	"fmt"
	"strconv"

	"github.com/awalterschulze/gographviz"

	"github.com/roach88/filibuster/internal/dei"
	"github.com/roach88/filibuster/internal/ir"
)

const (
	graphName = "iteration"
	rootID    = "root"
)

// node is one call in the tree.
type node struct {
	id     string
	parent string // execution index of the parent call; empty for root calls
	label  string
	fault  *ir.Fault
	failed bool
}

// RenderDOT builds a directed graph of the calls in events: one node per
// execution index, labelled "service.method #count", with an edge from each
// call to the calls it made. Faulted calls are filled red; calls that
// completed with an exception of their own have red text.
//
// Events must be in generated_id order, as the store and the engine return
// them.
func RenderDOT(events []ir.Event) (string, error) {
	nodes := make(map[string]*node)
	var order []string

	for _, ev := range events {
		idx, err := dei.ParseString(ev.ExecutionIndex)
		if err != nil || idx.Len() == 0 {
			continue
		}
		key := idx.Key()

		n, ok := nodes[key]
		if !ok {
			top, _ := idx.Top()
			n = &node{
				id:     "n" + strconv.Itoa(len(order)),
				parent: idx.Parent().Key(),
				label:  fmt.Sprintf("%s.%s #%d", ev.Service, ev.Method, top.Count),
			}
			if idx.Len() == 1 {
				n.parent = ""
			}
			nodes[key] = n
			order = append(order, key)
		}

		if ev.Type == ir.InstrumentationInvocationComplete {
			if ev.Fault != nil {
				n.fault = ev.Fault
			} else if ev.Exception != nil {
				n.failed = true
			}
		}
	}

	g := gographviz.NewGraph()
	if err := g.SetName(graphName); err != nil {
		return "", err
	}
	if err := g.SetDir(true); err != nil {
		return "", err
	}

	if err := g.AddNode(graphName, rootID, map[string]string{
		"label": strconv.Quote("test"),
		"shape": "box",
	}); err != nil {
		return "", err
	}

	for _, key := range order {
		n := nodes[key]
		if err := g.AddNode(graphName, n.id, n.attrs()); err != nil {
			return "", err
		}
	}

	for _, key := range order {
		n := nodes[key]
		from := rootID
		if p, ok := nodes[n.parent]; ok {
			from = p.id
		}
		if err := g.AddEdge(from, n.id, true, map[string]string{
			"color": strconv.Quote("black"),
		}); err != nil {
			return "", err
		}
	}

	return g.String(), nil
}

func (n *node) attrs() map[string]string {
	label := n.label
	attrs := map[string]string{
		"style":     strconv.Quote("filled, solid"),
		"color":     strconv.Quote("gray50"),
		"fontcolor": strconv.Quote("black"),
		"fillcolor": strconv.Quote("white"),
	}
	if n.fault != nil {
		label += "\n" + n.fault.String()
		attrs["style"] = strconv.Quote("filled, bold")
		attrs["color"] = strconv.Quote("black")
		attrs["fillcolor"] = strconv.Quote("crimson")
	}
	if n.failed {
		attrs["fontcolor"] = strconv.Quote("crimson")
	}
	attrs["label"] = strconv.Quote(label)
	return attrs
}
