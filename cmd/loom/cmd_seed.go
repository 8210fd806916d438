package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/avandelay/loom/internal/model"
)

// fixture is the JSON shape accepted by the seed command.
type fixture struct {
	Channels []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Platform string `json:"platform"`
	} `json:"channels"`
	Incidents []struct {
		ID          string    `json:"id"`
		OccurredAt  time.Time `json:"occurred_at"`
		Lat         float64   `json:"lat"`
		Lon         float64   `json:"lon"`
		HasCoords   bool      `json:"has_coords"`
		Place       string    `json:"place"`
		Description string    `json:"description"`
	} `json:"incidents"`
	Messages []struct {
		ID         string    `json:"id"`
		ChannelID  string    `json:"channel_id"`
		PostedAt   time.Time `json:"posted_at"`
		Text       string    `json:"text"`
		Engagement int       `json:"engagement"`
	} `json:"messages"`
}

func runSeed(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	var f fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse fixture: %w", err)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	now := time.Now()
	channels := make([]model.Channel, 0, len(f.Channels))
	for _, c := range f.Channels {
		channels = append(channels, model.Channel{ID: c.ID, Name: c.Name, Platform: c.Platform, AddedAt: now})
	}
	if err := store.SaveChannels(channels); err != nil {
		return fmt.Errorf("save channels: %w", err)
	}

	incidents := make([]model.Incident, 0, len(f.Incidents))
	for _, in := range f.Incidents {
		incidents = append(incidents, model.Incident{
			ID:          in.ID,
			OccurredAt:  in.OccurredAt,
			Lat:         in.Lat,
			Lon:         in.Lon,
			HasCoords:   in.HasCoords,
			Place:       in.Place,
			Description: in.Description,
		})
	}
	savedIncidents, err := store.SaveIncidents(incidents)
	if err != nil {
		return fmt.Errorf("save incidents: %w", err)
	}

	messages := make([]model.Message, 0, len(f.Messages))
	for _, m := range f.Messages {
		messages = append(messages, model.Message{
			ID:         m.ID,
			ChannelID:  m.ChannelID,
			PostedAt:   m.PostedAt,
			Text:       m.Text,
			Engagement: m.Engagement,
		})
	}
	savedMessages, err := store.SaveMessages(messages)
	if err != nil {
		return fmt.Errorf("save messages: %w", err)
	}

	fmt.Printf("seeded %d channels, %d incidents, %d messages\n", len(channels), savedIncidents, savedMessages)
	return nil
}
