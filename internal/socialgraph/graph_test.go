package socialgraph

import (
	"reflect"
	"testing"

	"github.com/avandelay/loom/internal/config"
	"github.com/avandelay/loom/internal/model"
)

func socialTestConfig() config.SocialConfig {
	return config.SocialConfig{
		HubPercentile:  0.90,
		MaxIterations:  20,
		LinkConfidence: 0.85,
	}
}

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"single mention", "forwarded from @frontline_watch", []string{"frontline_watch"}},
		{"multiple mentions", "per @alpha and @beta_news", []string{"alpha", "beta_news"}},
		{"duplicate dedups", "@alpha again @alpha", []string{"alpha"}},
		{"no mentions", "plain text without references", nil},
		{"bare at sign", "meet @ noon", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractMentions(tt.text)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractMentions(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestBuildGraph(t *testing.T) {
	b := NewBuilder(socialTestConfig())
	msgs := []model.Message{
		{ID: "m1", ChannelID: "alpha", Text: "via @beta"},
		{ID: "m2", ChannelID: "alpha", Text: "again @beta"},
		{ID: "m3", ChannelID: "beta", Text: "crediting @alpha"},
		{ID: "m4", ChannelID: "alpha", Text: "self ref @alpha ignored"},
	}

	g := b.Build(msgs)

	if got := g.EdgeWeight("alpha", "beta"); got != 2 {
		t.Errorf("edge alpha->beta = %d, want 2", got)
	}
	if got := g.EdgeWeight("beta", "alpha"); got != 1 {
		t.Errorf("edge beta->alpha = %d, want 1", got)
	}
	if got := g.EdgeWeight("alpha", "alpha"); got != 0 {
		t.Errorf("self edge = %d, want 0", got)
	}
	if nodes := g.Nodes(); !reflect.DeepEqual(nodes, []string{"alpha", "beta"}) {
		t.Errorf("nodes = %v, want [alpha beta]", nodes)
	}
}

func TestCentralityAndHubs(t *testing.T) {
	b := NewBuilder(socialTestConfig())
	// hub is referenced by everyone; spoke1..3 only reference hub.
	msgs := []model.Message{
		{ID: "m1", ChannelID: "spoke1", Text: "@hub"},
		{ID: "m2", ChannelID: "spoke1", Text: "more @hub"},
		{ID: "m3", ChannelID: "spoke2", Text: "@hub"},
		{ID: "m4", ChannelID: "spoke3", Text: "@hub"},
	}

	g := b.Build(msgs)
	centrality := g.Centrality()

	if centrality["hub"] != 4 {
		t.Errorf("hub centrality = %v, want 4", centrality["hub"])
	}
	if centrality["spoke1"] != 2 {
		t.Errorf("spoke1 centrality = %v, want 2", centrality["spoke1"])
	}

	hubs := g.Hubs(0.90)
	if !reflect.DeepEqual(hubs, []string{"hub"}) {
		t.Errorf("hubs = %v, want [hub]", hubs)
	}
}

func TestCommunitiesDeterministic(t *testing.T) {
	b := NewBuilder(socialTestConfig())
	// Two clusters joined by nothing: {a1,a2,a3} and {b1,b2}.
	msgs := []model.Message{
		{ID: "m1", ChannelID: "a1", Text: "@a2 @a3"},
		{ID: "m2", ChannelID: "a2", Text: "@a1"},
		{ID: "m3", ChannelID: "a3", Text: "@a1"},
		{ID: "m4", ChannelID: "b1", Text: "@b2"},
		{ID: "m5", ChannelID: "b2", Text: "@b1"},
	}

	g := b.Build(msgs)

	first := g.Communities(20)
	for i := 0; i < 10; i++ {
		if got := g.Communities(20); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d produced different labels: %v vs %v", i, got, first)
		}
	}

	// Same cluster, same label; different clusters, different labels.
	if first["a1"] != first["a2"] || first["a2"] != first["a3"] {
		t.Errorf("a-cluster split: %v", first)
	}
	if first["b1"] != first["b2"] {
		t.Errorf("b-cluster split: %v", first)
	}
	if first["a1"] == first["b1"] {
		t.Errorf("disconnected clusters merged: %v", first)
	}
}

func TestSocialLinks(t *testing.T) {
	b := NewBuilder(socialTestConfig())
	msgs := []model.Message{
		{ID: "m1", ChannelID: "alpha", Text: "@beta"},
		{ID: "m2", ChannelID: "alpha", Text: "@beta again"},
		{ID: "m3", ChannelID: "beta", Text: "@alpha"},
	}

	g := b.Build(msgs)
	links := b.Links(g)

	if len(links) != 1 {
		t.Fatalf("got %d links, want 1", len(links))
	}
	l := links[0]
	if l.Type != model.LinkSocial {
		t.Errorf("type = %s, want social", l.Type)
	}
	if l.A.Kind != model.KindChannel || l.B.Kind != model.KindChannel {
		t.Errorf("endpoint kinds = %s/%s, want channel/channel", l.A.Kind, l.B.Kind)
	}
	// Combined weight 3, both endpoints have degree 3: strength 1.0
	if l.Strength != 1.0 {
		t.Errorf("strength = %v, want 1.0", l.Strength)
	}
	if l.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", l.Confidence)
	}
	if l.Evidence.EdgeWeight != 3 {
		t.Errorf("evidence edge weight = %d, want 3", l.Evidence.EdgeWeight)
	}
}

func TestLinksEmptyGraph(t *testing.T) {
	b := NewBuilder(socialTestConfig())
	g := b.Build(nil)
	if links := b.Links(g); len(links) != 0 {
		t.Errorf("got %d links from empty graph, want 0", len(links))
	}
}
