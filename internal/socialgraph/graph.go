// Package socialgraph builds the channel mention graph: who references
// whom, how central each channel is, and which channels cluster together.
//
// Mentions are literal lexical extractions, not inferred relationships,
// so the links this package emits carry a fixed high confidence.
package socialgraph

import (
	"regexp"
	"sort"

	"github.com/avandelay/loom/internal/config"
	"github.com/avandelay/loom/internal/model"
)

// mentionRegex matches channel references like @frontline_watch.
var mentionRegex = regexp.MustCompile(`@([A-Za-z0-9_]{2,32})`)

// ExtractMentions finds channel-reference tokens in text.
// Returns deduplicated referenced channel ids, in first-hit order.
func ExtractMentions(text string) []string {
	matches := mentionRegex.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool)
	var result []string

	for _, match := range matches {
		if len(match) > 1 {
			ref := match[1]
			if !seen[ref] {
				seen[ref] = true
				result = append(result, ref)
			}
		}
	}

	return result
}

// pair is a directed edge key.
type pair struct {
	from, to string
}

// Graph is a weighted directed mention graph between channels.
type Graph struct {
	edges map[pair]int
	nodes map[string]bool
}

// Builder constructs mention graphs and their derived analysis.
type Builder struct {
	cfg config.SocialConfig
}

// NewBuilder creates a social graph builder.
func NewBuilder(cfg config.SocialConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Build extracts mention edges from a batch of messages. Every
// (source_channel, referenced_channel) occurrence increments the edge
// weight; self-mentions are ignored.
func (b *Builder) Build(msgs []model.Message) *Graph {
	g := &Graph{
		edges: make(map[pair]int),
		nodes: make(map[string]bool),
	}

	for _, m := range msgs {
		if m.ChannelID == "" {
			continue
		}
		for _, ref := range ExtractMentions(m.Text) {
			if ref == m.ChannelID {
				continue
			}
			g.edges[pair{from: m.ChannelID, to: ref}]++
			g.nodes[m.ChannelID] = true
			g.nodes[ref] = true
		}
	}

	return g
}

// Nodes returns all channel ids in the graph, sorted.
func (g *Graph) Nodes() []string {
	nodes := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return nodes
}

// EdgeWeight returns the directed weight from one channel to another.
func (g *Graph) EdgeWeight(from, to string) int {
	return g.edges[pair{from: from, to: to}]
}

// Centrality returns each channel's total edge degree: the sum of in and
// out edge weights across the whole graph.
func (g *Graph) Centrality() map[string]float64 {
	centrality := make(map[string]float64, len(g.nodes))
	for n := range g.nodes {
		centrality[n] = 0
	}
	for p, w := range g.edges {
		centrality[p.from] += float64(w)
		centrality[p.to] += float64(w)
	}
	return centrality
}

// Hubs returns the channels whose centrality is at or above the
// configured percentile of all centrality scores, sorted by id.
func (g *Graph) Hubs(percentile float64) []string {
	centrality := g.Centrality()
	if len(centrality) == 0 {
		return nil
	}

	scores := make([]float64, 0, len(centrality))
	for _, s := range centrality {
		scores = append(scores, s)
	}
	sort.Float64s(scores)

	idx := int(percentile * float64(len(scores)))
	if idx >= len(scores) {
		idx = len(scores) - 1
	}
	threshold := scores[idx]

	var hubs []string
	for n, s := range centrality {
		if s >= threshold && s > 0 {
			hubs = append(hubs, n)
		}
	}
	sort.Strings(hubs)
	return hubs
}

// Communities partitions the graph by iterative label propagation: each
// node adopts the most frequent label among its neighbors, weighted by
// edge strength, until labels stabilize or maxIterations is hit.
//
// Label propagation is non-deterministic in general; determinism is
// pinned here by visiting nodes in sorted order and breaking label-weight
// ties toward the lexicographically lowest label.
func (g *Graph) Communities(maxIterations int) map[string]string {
	nodes := g.Nodes()
	labels := make(map[string]string, len(nodes))
	for _, n := range nodes {
		labels[n] = n
	}

	// Undirected neighbor weights per node.
	neighbors := make(map[string]map[string]int, len(nodes))
	addWeight := func(a, b string, w int) {
		if neighbors[a] == nil {
			neighbors[a] = make(map[string]int)
		}
		neighbors[a][b] += w
	}
	for p, w := range g.edges {
		addWeight(p.from, p.to, w)
		addWeight(p.to, p.from, w)
	}

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for _, n := range nodes {
			best := dominantLabel(neighbors[n], labels, labels[n])
			if best != labels[n] {
				labels[n] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	return labels
}

// dominantLabel returns the neighbor label with the highest total edge
// weight. Ties go to the lexicographically lowest label; an isolated node
// keeps its current label.
func dominantLabel(nbrs map[string]int, labels map[string]string, current string) string {
	if len(nbrs) == 0 {
		return current
	}

	weights := make(map[string]int)
	for nbr, w := range nbrs {
		weights[labels[nbr]] += w
	}

	best := ""
	bestWeight := -1
	for label, w := range weights {
		if w > bestWeight || (w == bestWeight && label < best) {
			best = label
			bestWeight = w
		}
	}
	return best
}

// Links persists the graph as social-type links between channel pairs.
// Strength is the pair's combined edge weight normalized by the larger
// endpoint's total degree; confidence is fixed high since mentions are
// literal extractions.
func (b *Builder) Links(g *Graph) []model.Link {
	centrality := g.Centrality()

	// Collapse directed edges into unordered pairs.
	combined := make(map[pair]int)
	for p, w := range g.edges {
		key := p
		if key.to < key.from {
			key = pair{from: p.to, to: p.from}
		}
		combined[key] += w
	}

	links := make([]model.Link, 0, len(combined))
	for p, w := range combined {
		larger := centrality[p.from]
		if centrality[p.to] > larger {
			larger = centrality[p.to]
		}
		if larger == 0 {
			continue
		}

		strength := float64(w) / larger
		ev := model.Evidence{EdgeWeight: w}
		a := model.EntityRef{Kind: model.KindChannel, ID: p.from}
		bRef := model.EntityRef{Kind: model.KindChannel, ID: p.to}
		links = append(links, model.NewLink(a, bRef, model.LinkSocial, strength, b.cfg.LinkConfidence, ev, "social_graph_builder"))
	}

	sort.Slice(links, func(i, j int) bool {
		if links[i].A.ID != links[j].A.ID {
			return links[i].A.ID < links[j].A.ID
		}
		return links[i].B.ID < links[j].B.ID
	})
	return links
}
