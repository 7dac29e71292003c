// Package visualizer renders a graph as a standalone D3.js page.
package visualizer

import (
	"bytes"
	"encoding/json"
	"html/template"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/athapong/gencode-kg/pkg/graph"
	"github.com/athapong/gencode-kg/pkg/table"
)

const d3Template = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
    <script src="https://d3js.org/d3.v7.min.js"></script>
    <style>
        body { 
            margin: 0;
            font-family: Arial, sans-serif;
        }
        #graph {
            width: 100%;
            height: 100vh;
            background-color: #f5f5f5;
        }
        .node {
            stroke: #fff;
            stroke-width: 1.5px;
        }
        .link {
            stroke: #999;
            stroke-opacity: 0.6;
        }
        .node-label {
            font-size: 10px;
            pointer-events: none;
        }
        .controls {
            position: absolute;
            top: 10px;
            left: 10px;
            background-color: rgba(255,255,255,0.8);
            padding: 10px;
            border-radius: 5px;
            box-shadow: 0 0 10px rgba(0,0,0,0.1);
        }
    </style>
</head>
<body>
    <div id="graph"></div>
    <div class="controls">
        <h3>{{.Title}}</h3>
        <p>Nodes: {{.NodeCount}}, Edges: {{.EdgeCount}}</p>
        <div>
            <label for="node-type-filter">Filter by prefix:</label>
            <select id="node-type-filter">
                <option value="all">All Prefixes</option>
            </select>
        </div>
    </div>

    <script>
        const graphData = {{.GraphData}};
        
        const simulation = d3.forceSimulation(graphData.nodes)
            .force("link", d3.forceLink(graphData.edges).id(d => d.id).distance(120))
            .force("charge", d3.forceManyBody().strength(-300))
            .force("center", d3.forceCenter(window.innerWidth / 2, window.innerHeight / 2));

        const svg = d3.select("#graph")
            .append("svg")
            .attr("width", "100%")
            .attr("height", "100%")
            .call(d3.zoom().on("zoom", (event) => {
                g.attr("transform", event.transform);
            }));

        const g = svg.append("g");

        const nodeTypes = [...new Set(graphData.nodes.map(node => node.type))];
        const colorScale = d3.scaleOrdinal(d3.schemeCategory10).domain(nodeTypes);

        nodeTypes.forEach(type => {
            d3.select("#node-type-filter")
                .append("option")
                .attr("value", type)
                .text(type);
        });

        const link = g.append("g")
            .selectAll("line")
            .data(graphData.edges)
            .enter()
            .append("line")
            .attr("class", "link")
            .attr("stroke-width", 1.5);

        const node = g.append("g")
            .selectAll("circle")
            .data(graphData.nodes)
            .enter()
            .append("circle")
            .attr("class", "node")
            .attr("r", 8)
            .attr("fill", d => colorScale(d.type))
            .call(d3.drag()
                .on("start", dragstarted)
                .on("drag", dragged)
                .on("end", dragended));

        const label = g.append("g")
            .selectAll("text")
            .data(graphData.nodes)
            .enter()
            .append("text")
            .attr("class", "node-label")
            .attr("dx", 12)
            .attr("dy", ".35em")
            .text(d => d.label);

        node.append("title")
            .text(d => d.id + (d.label ? " " + d.label : ""));

        link.append("title")
            .text(d => d.type);

        simulation.on("tick", () => {
            link
                .attr("x1", d => d.source.x)
                .attr("y1", d => d.source.y)
                .attr("x2", d => d.target.x)
                .attr("y2", d => d.target.y);

            node
                .attr("cx", d => d.x)
                .attr("cy", d => d.y);

            label
                .attr("x", d => d.x)
                .attr("y", d => d.y);
        });

        d3.select("#node-type-filter").on("change", function() {
            const selectedType = this.value;
            
            if (selectedType === "all") {
                node.style("visibility", "visible");
                link.style("visibility", "visible");
                label.style("visibility", "visible");
                return;
            }
            
            node.style("visibility", d => d.type === selectedType ? "visible" : "hidden");
            
            label.style("visibility", d => d.type === selectedType ? "visible" : "hidden");
            
            link.style("visibility", d => {
                const sourceVisible = d.source.type === selectedType;
                const targetVisible = d.target.type === selectedType;
                return sourceVisible || targetVisible ? "visible" : "hidden";
            });
        });

        function dragstarted(event, d) {
            if (!event.active) simulation.alphaTarget(0.3).restart();
            d.fx = d.x;
            d.fy = d.y;
        }

        function dragged(event, d) {
            d.fx = event.x;
            d.fy = event.y;
        }

        function dragended(event, d) {
            if (!event.active) simulation.alphaTarget(0);
            d.fx = null;
            d.fy = null;
        }
    </script>
</body>
</html>
`

var page = template.Must(template.New("d3").Parse(d3Template))

type viewNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

type viewEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

type view struct {
	Nodes []viewNode `json:"nodes"`
	Edges []viewEdge `json:"edges"`
}

// D3Visualizer writes an HTML page showing a graph. Nodes are coloured by
// CURIE prefix; edge objects without a node row are drawn too.
type D3Visualizer struct {
	outputPath string
	Title      string
}

// NewD3Visualizer creates a visualizer writing to outputPath.
func NewD3Visualizer(outputPath string) *D3Visualizer {
	return &D3Visualizer{
		outputPath: outputPath,
		Title:      "Knowledge Graph",
	}
}

// Visualize writes the page for g.
func (v *D3Visualizer) Visualize(g *graph.KnowledgeGraphData) error {
	return errors.Wrapf(table.AtomicWrite(v.outputPath, func(w io.Writer) error {
		return v.Render(w, g)
	}), "write visualization %s", v.outputPath)
}

// Render writes the page for g to w.
func (v *D3Visualizer) Render(w io.Writer, g *graph.KnowledgeGraphData) error {
	vw := buildView(g)
	// encoding/json escapes <, > and & so the payload is safe inside <script>
	graphData, err := json.Marshal(vw)
	if err != nil {
		return errors.Wrap(err, "encode graph")
	}

	data := struct {
		Title     string
		GraphData template.JS
		NodeCount int
		EdgeCount int
	}{
		Title:     v.Title,
		GraphData: template.JS(graphData),
		NodeCount: len(vw.Nodes),
		EdgeCount: len(vw.Edges),
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		return errors.Wrap(err, "render template")
	}
	_, err = w.Write(buf.Bytes())
	return err
}

func buildView(g *graph.KnowledgeGraphData) view {
	vw := view{
		Nodes: make([]viewNode, 0, len(g.Nodes)),
		Edges: make([]viewEdge, 0, len(g.Edges)),
	}
	seen := make(map[string]bool, len(g.Nodes))
	add := func(id, label string) {
		if seen[id] {
			return
		}
		seen[id] = true
		vw.Nodes = append(vw.Nodes, viewNode{ID: id, Label: label, Type: prefix(id)})
	}
	for _, n := range g.Nodes {
		add(n.ID, n.Label)
	}
	for _, e := range g.Edges {
		add(e.Subject, "")
		add(e.Object, "")
		vw.Edges = append(vw.Edges, viewEdge{Source: e.Subject, Target: e.Object, Type: e.Predicate})
	}
	return vw
}

func prefix(id string) string {
	p, _, ok := strings.Cut(id, ":")
	if !ok {
		return "unknown"
	}
	return p
}
