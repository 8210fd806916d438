package correlate

import (
	"strings"

	"github.com/avandelay/loom/internal/config"
	"github.com/avandelay/loom/internal/geo"
	"github.com/avandelay/loom/internal/model"
)

// Spatial links messages to an incident when the message text names a
// location resolving within a configurable radius of the incident (or
// matching its place name exactly) and also carries a domain keyword.
//
// This is expected to be the rarest but highest-value link type: anything
// without a resolvable location is excluded, never forced.
type Spatial struct {
	cfg       config.SpatialConfig
	gazetteer *geo.Gazetteer
	vocab     map[string]float64
}

// NewSpatial creates a spatial correlator.
func NewSpatial(cfg config.SpatialConfig, gazetteer *geo.Gazetteer, vocab map[string]float64) *Spatial {
	return &Spatial{cfg: cfg, gazetteer: gazetteer, vocab: vocab}
}

// Correlate runs spatial correlation for one incident over the cycle's
// message batch. Incidents without resolvable coordinates are skipped.
func (s *Spatial) Correlate(incident model.Incident, msgs []model.Message) []model.Link {
	incidentPoint, ok := s.incidentPoint(incident)
	if !ok {
		return nil
	}
	incidentPlace := strings.ToLower(strings.TrimSpace(incident.Place))
	incidentRef := model.EntityRef{Kind: model.KindIncident, ID: incident.ID}

	var links []model.Link
	for _, m := range msgs {
		mentions := s.gazetteer.Extract(m.Text)
		if len(mentions) == 0 {
			continue
		}

		matched := MatchTerms(Tokenize(m.Text), s.vocab)
		if len(matched) == 0 {
			continue
		}

		var inRange []string
		minDist := -1.0
		for _, mention := range mentions {
			exact := incidentPlace != "" && mention.Name == incidentPlace
			dist := geo.DistanceKM(incidentPoint, mention.Point)
			if exact || dist <= s.cfg.RadiusKM {
				inRange = append(inRange, mention.Name)
				if minDist < 0 || dist < minDist {
					minDist = dist
				}
			}
		}
		if len(inRange) == 0 {
			continue
		}

		strength := s.cfg.BaseStrength
		if len(inRange) >= 2 {
			strength += s.cfg.CorroborationBonus
		}

		ev := model.Evidence{
			MatchedKeywords: matched,
			PlaceNames:      inRange,
			DistanceKM:      minDist,
			Corroborations:  len(inRange),
		}
		msgRef := model.EntityRef{Kind: model.KindMessage, ID: m.ID}
		links = append(links, model.NewLink(incidentRef, msgRef, model.LinkSpatial, strength, strength, ev, "spatial_correlator"))
	}

	return links
}

// incidentPoint resolves the incident's location, preferring explicit
// coordinates over the place name.
func (s *Spatial) incidentPoint(incident model.Incident) (geo.Point, bool) {
	if incident.HasCoords {
		return geo.Point{Lat: incident.Lat, Lon: incident.Lon}, true
	}
	if incident.Place != "" {
		return s.gazetteer.Resolve(incident.Place)
	}
	return geo.Point{}, false
}
