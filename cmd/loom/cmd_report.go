package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/avandelay/loom/internal/model"
	"github.com/avandelay/loom/internal/socialgraph"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	titleStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	flaggedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

var allLinkTypes = []model.LinkType{model.LinkTemporal, model.LinkSpatial, model.LinkSocial, model.LinkContent}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

func runReport(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	total, err := store.LinkCount()
	if err != nil {
		return err
	}
	fmt.Println(titleStyle.Render("Links"))
	linkTable := newTable("Type", "Count")
	for _, lt := range allLinkTypes {
		links, err := store.LinksByType(lt, 0)
		if err != nil {
			return err
		}
		linkTable.Row(string(lt), strconv.Itoa(len(links)))
	}
	linkTable.Row("total", strconv.Itoa(total))
	fmt.Println(linkTable)

	profiles, err := store.LatestProfiles()
	if err != nil {
		return err
	}
	fmt.Println(titleStyle.Render("Channel tiers"))
	fmt.Println(profileTable(profiles))

	if err := printMentionGraph(store); err != nil {
		return err
	}

	for _, status := range []model.TermStatus{model.TermActive, model.TermProposed} {
		terms, err := store.TermsByStatus(status)
		if err != nil {
			return err
		}
		fmt.Printf("%s vocabulary terms: %d\n", status, len(terms))
	}
	return nil
}

// printMentionGraph rebuilds the mention graph over the recent message
// history and shows hub channels and community membership.
func printMentionGraph(store *model.Store) error {
	now := time.Now()
	from := now.Add(-time.Duration(cfg.Temporal.BaselineDays) * 24 * time.Hour)
	msgs, err := store.MessagesBetween(from, now, "")
	if err != nil {
		return err
	}

	builder := socialgraph.NewBuilder(cfg.Social)
	graph := builder.Build(msgs)
	if len(graph.Nodes()) == 0 {
		return nil
	}

	fmt.Println(titleStyle.Render("Mention graph"))

	hubs := graph.Hubs(cfg.Social.HubPercentile)
	fmt.Printf("hubs: %s\n", strings.Join(hubs, ", "))

	communities := graph.Communities(cfg.Social.MaxIterations)
	members := make(map[string][]string)
	for node, label := range communities {
		members[label] = append(members[label], node)
	}
	labels := make([]string, 0, len(members))
	for label := range members {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	t := newTable("Community", "Members")
	for _, label := range labels {
		nodes := members[label]
		sort.Strings(nodes)
		t.Row(label, strings.Join(nodes, ", "))
	}
	fmt.Println(t)
	return nil
}

func profileTable(profiles []model.ChannelProfile) *table.Table {
	t := newTable("Channel", "Tier", "Poll", "Utility", "Hit rate", "Incidents", "High conf", "FP", "Messages")
	for _, p := range profiles {
		t.Row(
			p.ChannelID,
			string(p.Tier),
			p.Tier.PollInterval().String(),
			fmt.Sprintf("%.1f", p.UtilityScore),
			fmt.Sprintf("%.3f", p.HitRate),
			strconv.Itoa(p.IncidentsLinked),
			strconv.Itoa(p.HighConfidenceLinks),
			strconv.Itoa(p.FalsePositiveCount),
			strconv.Itoa(p.TotalMessages),
		)
	}
	return t
}

func runProfiles(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 1 {
		history, err := store.ProfileHistory(args[0])
		if err != nil {
			return err
		}
		if len(history) == 0 {
			fmt.Printf("no profiles for channel %s\n", args[0])
			return nil
		}
		t := newTable("Cycle", "Tier", "Utility", "Hit rate", "Incidents", "FP")
		for _, p := range history {
			t.Row(
				strconv.FormatInt(p.Cycle, 10),
				string(p.Tier),
				fmt.Sprintf("%.1f", p.UtilityScore),
				fmt.Sprintf("%.3f", p.HitRate),
				strconv.Itoa(p.IncidentsLinked),
				strconv.Itoa(p.FalsePositiveCount),
			)
		}
		fmt.Println(t)
		return nil
	}

	profiles, err := store.LatestProfiles()
	if err != nil {
		return err
	}
	fmt.Println(profileTable(profiles))
	return nil
}

func runLinks(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	types := allLinkTypes
	if linkType != "" {
		types = []model.LinkType{model.LinkType(linkType)}
	}

	t := newTable("Type", "A", "B", "Strength", "Conf", "By", "")
	shown := 0
	for _, lt := range types {
		links, err := store.LinksByType(lt, linkLimit)
		if err != nil {
			return err
		}
		for _, l := range links {
			if shown >= linkLimit {
				break
			}
			if l.Confidence < minConfidence {
				continue
			}
			flag := ""
			if l.FalsePositive {
				flag = flaggedStyle.Render("false positive")
			}
			t.Row(string(l.Type), l.A.String(), l.B.String(),
				fmt.Sprintf("%.2f", l.Strength), fmt.Sprintf("%.2f", l.Confidence),
				l.DiscoveredBy, flag)
			shown++
		}
	}
	fmt.Println(t)
	return nil
}

func runVocabList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	t := newTable("Term", "Weight", "Status", "Cycle")
	for _, status := range []model.TermStatus{model.TermActive, model.TermProposed, model.TermRejected} {
		terms, err := store.TermsByStatus(status)
		if err != nil {
			return err
		}
		for _, term := range terms {
			t.Row(term.Term, fmt.Sprintf("%.3f", term.Weight), string(term.Status), strconv.FormatInt(term.Cycle, 10))
		}
	}
	fmt.Println(t)
	return nil
}

func runVocabApprove(cmd *cobra.Command, args []string) error {
	return resolveTerm(args[0], true)
}

func runVocabReject(cmd *cobra.Command, args []string) error {
	return resolveTerm(args[0], false)
}

func resolveTerm(term string, approve bool) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.ResolveProposed(term, approve); err != nil {
		return err
	}
	verdict := "rejected"
	if approve {
		verdict = "activated"
	}
	fmt.Printf("term %q %s\n", term, verdict)
	return nil
}
