package pipeline

import (
	"fmt"

	"github.com/awalterschulze/gographviz"
	"github.com/gorgonia/mnistpipe/model"
)

const graphName = "pipeline"

// ToDot describes the roles of a pipeline with the given number of hidden workers and
// the handshakes between them in graphviz format. Edge labels carry the handshake name
// and its initial token count.
func ToDot(workers int) string {
	g := gographviz.NewGraph()
	if err := g.SetName(graphName); err != nil {
		panic(err)
	}
	g.SetDir(true)

	role := func(name, shape string) {
		g.AddNode(graphName, name, map[string]string{"shape": shape})
	}
	edge := func(src, dst, label string, initial int, style string) {
		attrs := map[string]string{"label": fmt.Sprintf("%q", fmt.Sprintf("%s (%d)", label, initial))}
		if style != "" {
			attrs["style"] = style
		}
		g.AddEdge(src, dst, true, attrs)
	}

	role("feeder", "box")
	role("collector", "box")
	for h := 0; h < workers; h++ {
		role(hiddenName(h), "ellipse")
	}
	for c := 0; c < model.Classes; c++ {
		role(outputName(c), "ellipse")
	}

	for h := 0; h < workers; h++ {
		edge("feeder", hiddenName(h), "sample-ready", 0, "")
		edge(hiddenName(h), "feeder", "admission", 1, "")
		for c := 0; c < model.Classes; c++ {
			edge(hiddenName(h), outputName(c), "hidden-ready", 0, "")
			edge(outputName(c), hiddenName(h), "output-retired", 1, "")
		}
	}
	for c := 0; c < model.Classes; c++ {
		edge(outputName(c), "collector", "output-ready", 0, "")
		edge("collector", outputName(c), "result-retired", 1, "")
	}
	edge("feeder", "collector", "display", 0, "dashed")
	edge("collector", "feeder", "display", 1, "dashed")
	return g.String()
}

func hiddenName(id int) string    { return fmt.Sprintf("hidden%d", id) }
func outputName(class int) string { return fmt.Sprintf("output%d", class) }
