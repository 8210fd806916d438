package model

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avandelay/loom/internal/logging"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// Store handles persistence for the engine.
//
// Observations are written only by external collectors (or the seed tool)
// and read here; links, profiles, vocabulary, and cycle cursors are owned
// by the engine.
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite store at the given path.
//
// The database is created if it doesn't exist, and migrations are applied
// automatically.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		occurred_at DATETIME NOT NULL,
		lat REAL,
		lon REAL,
		place TEXT,
		description TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_incidents_occurred ON incidents(occurred_at);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		channel_id TEXT NOT NULL,
		posted_at DATETIME NOT NULL,
		text TEXT NOT NULL,
		engagement INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_messages_posted ON messages(posted_at);
	CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id, posted_at);

	CREATE TABLE IF NOT EXISTS channels (
		id TEXT PRIMARY KEY,
		name TEXT,
		platform TEXT,
		added_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS links (
		id TEXT PRIMARY KEY,
		a_kind TEXT NOT NULL,
		a_id TEXT NOT NULL,
		b_kind TEXT NOT NULL,
		b_id TEXT NOT NULL,
		rel_type TEXT NOT NULL,
		strength REAL NOT NULL,
		confidence REAL NOT NULL,
		evidence TEXT,
		discovered_by TEXT,
		discovered_at DATETIME NOT NULL,
		false_positive INTEGER DEFAULT 0,
		cycle_id TEXT,
		UNIQUE (a_kind, a_id, b_kind, b_id, rel_type)
	);

	CREATE INDEX IF NOT EXISTS idx_links_a ON links(a_kind, a_id);
	CREATE INDEX IF NOT EXISTS idx_links_b ON links(b_kind, b_id);
	CREATE INDEX IF NOT EXISTS idx_links_confidence ON links(confidence);
	CREATE INDEX IF NOT EXISTS idx_links_type ON links(rel_type);

	CREATE TABLE IF NOT EXISTS channel_profiles (
		channel_id TEXT NOT NULL,
		cycle INTEGER NOT NULL,
		tier TEXT NOT NULL,
		utility_score REAL NOT NULL,
		hit_rate REAL NOT NULL,
		incidents_linked INTEGER DEFAULT 0,
		high_confidence_links INTEGER DEFAULT 0,
		false_positive_count INTEGER DEFAULT 0,
		total_messages INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (channel_id, cycle)
	);

	CREATE INDEX IF NOT EXISTS idx_profiles_cycle ON channel_profiles(cycle);

	CREATE TABLE IF NOT EXISTS vocabulary (
		term TEXT PRIMARY KEY,
		weight REAL DEFAULT 1.0,
		status TEXT NOT NULL,
		cycle INTEGER DEFAULT 0,
		added_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cycles (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		window_from DATETIME NOT NULL,
		window_to DATETIME NOT NULL,
		started_at DATETIME NOT NULL,
		committed_at DATETIME,
		status TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for advanced queries.
//
// Use with caution - prefer using Store methods for common operations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// --- Observations (written by collectors / seed tool, read by the engine) ---

// SaveIncidents inserts or updates incidents in one transaction.
// Individual failures are logged and skipped; the rest still commit.
func (s *Store) SaveIncidents(incidents []Incident) (int, error) {
	if len(incidents) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO incidents (id, occurred_at, lat, lon, place, description)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			place = excluded.place,
			description = excluded.description
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	var saved int
	for _, inc := range incidents {
		var lat, lon interface{}
		if inc.HasCoords {
			lat, lon = inc.Lat, inc.Lon
		}
		if _, err := stmt.Exec(inc.ID, inc.OccurredAt, lat, lon, inc.Place, inc.Description); err != nil {
			logging.Debug("Failed to save incident", "id", inc.ID, "error", err)
			continue
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return saved, nil
}

// SaveMessages inserts or updates messages in one transaction.
func (s *Store) SaveMessages(messages []Message) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO messages (id, channel_id, posted_at, text, engagement)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			engagement = excluded.engagement
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	var saved int
	for _, m := range messages {
		if _, err := stmt.Exec(m.ID, m.ChannelID, m.PostedAt, m.Text, m.Engagement); err != nil {
			logging.Debug("Failed to save message", "id", m.ID, "error", err)
			continue
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return saved, nil
}

// SaveChannels inserts channels, ignoring ones already present.
func (s *Store) SaveChannels(channels []Channel) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range channels {
		addedAt := c.AddedAt
		if addedAt.IsZero() {
			addedAt = time.Now()
		}
		_, err := tx.Exec(`
			INSERT INTO channels (id, name, platform, added_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, c.ID, c.Name, c.Platform, addedAt)
		if err != nil {
			logging.Debug("Failed to save channel", "id", c.ID, "error", err)
		}
	}

	return tx.Commit()
}

// IncidentsBetween returns incidents with occurred_at in [from, to).
func (s *Store) IncidentsBetween(from, to time.Time) ([]Incident, error) {
	rows, err := s.db.Query(`
		SELECT id, occurred_at, lat, lon, place, description
		FROM incidents
		WHERE occurred_at >= ? AND occurred_at < ?
		ORDER BY occurred_at
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	return scanIncidents(rows)
}

func scanIncidents(rows *sql.Rows) ([]Incident, error) {
	var incidents []Incident
	for rows.Next() {
		var inc Incident
		var lat, lon sql.NullFloat64
		var place, desc sql.NullString
		if err := rows.Scan(&inc.ID, &inc.OccurredAt, &lat, &lon, &place, &desc); err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		if lat.Valid && lon.Valid {
			inc.Lat, inc.Lon, inc.HasCoords = lat.Float64, lon.Float64, true
		}
		inc.Place = place.String
		inc.Description = desc.String
		incidents = append(incidents, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return incidents, nil
}

// MessagesBetween returns messages posted in [from, to). Pass an empty
// channelID to query all channels.
func (s *Store) MessagesBetween(from, to time.Time, channelID string) ([]Message, error) {
	query := `
		SELECT id, channel_id, posted_at, text, engagement
		FROM messages
		WHERE posted_at >= ? AND posted_at < ?
	`
	args := []interface{}{from, to}
	if channelID != "" {
		query += " AND channel_id = ?"
		args = append(args, channelID)
	}
	query += " ORDER BY posted_at"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.PostedAt, &m.Text, &m.Engagement); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return messages, nil
}

// MessagesByID returns the messages with the given ids, in no particular
// order. Missing ids are silently absent from the result.
func (s *Store) MessagesByID(ids []string) ([]Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := ""
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = id
	}

	rows, err := s.db.Query(`
		SELECT id, channel_id, posted_at, text, engagement
		FROM messages WHERE id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// MessageCountByChannel returns the number of messages per channel posted
// in [from, to).
func (s *Store) MessageCountByChannel(from, to time.Time) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT channel_id, COUNT(*)
		FROM messages
		WHERE posted_at >= ? AND posted_at < ?
		GROUP BY channel_id
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var channelID string
		var count int
		if err := rows.Scan(&channelID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[channelID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return counts, nil
}

// Channels returns all known channels.
func (s *Store) Channels() ([]Channel, error) {
	rows, err := s.db.Query(`SELECT id, name, platform, added_at FROM channels ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var c Channel
		var name, platform sql.NullString
		if err := rows.Scan(&c.ID, &name, &platform, &c.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		c.Name = name.String
		c.Platform = platform.String
		channels = append(channels, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return channels, nil
}

// --- Links ---

// UpsertLinks writes links under dedup-on-conflict semantics keyed by the
// canonical (a, b, rel_type) triple. Rerunning a correlator over the same
// inputs refreshes evidence and confidence on the existing row instead of
// creating a duplicate, which is what makes an interrupted cycle safe to
// resume. A row's false_positive mark survives the update.
//
// Returns the number of rows written (inserted or refreshed).
func (s *Store) UpsertLinks(links []Link) (int, error) {
	if len(links) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO links (id, a_kind, a_id, b_kind, b_id, rel_type, strength, confidence, evidence, discovered_by, discovered_at, cycle_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(a_kind, a_id, b_kind, b_id, rel_type) DO UPDATE SET
			strength = excluded.strength,
			confidence = excluded.confidence,
			evidence = excluded.evidence,
			discovered_at = excluded.discovered_at,
			cycle_id = excluded.cycle_id
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	var written int
	var failed []string
	for _, l := range links {
		id := l.ID
		if id == "" {
			id = uuid.NewString()
		}
		evidence, err := json.Marshal(l.Evidence)
		if err != nil {
			logging.Debug("Failed to marshal evidence", "link", l.A.String()+"~"+l.B.String(), "error", err)
			evidence = []byte("{}")
		}
		_, err = stmt.Exec(
			id,
			string(l.A.Kind), l.A.ID,
			string(l.B.Kind), l.B.ID,
			string(l.Type),
			l.Strength,
			l.Confidence,
			string(evidence),
			l.DiscoveredBy,
			l.DiscoveredAt,
			l.CycleID,
		)
		if err != nil {
			failed = append(failed, l.A.String()+"~"+l.B.String())
			continue
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if len(failed) > 0 {
		logging.Warn("Some links failed to save", "failed_count", len(failed), "saved_count", written)
	}
	return written, nil
}

// LinksFor returns links touching the given entity, optionally filtered
// by relationship type and minimum confidence. This is the query surface
// consumed by downstream reports and visualizations.
func (s *Store) LinksFor(kind Kind, id string, relType LinkType, minConfidence float64) ([]Link, error) {
	query := `
		SELECT id, a_kind, a_id, b_kind, b_id, rel_type, strength, confidence, evidence, discovered_by, discovered_at, false_positive, cycle_id
		FROM links
		WHERE ((a_kind = ? AND a_id = ?) OR (b_kind = ? AND b_id = ?))
		  AND confidence >= ?
	`
	args := []interface{}{string(kind), id, string(kind), id, minConfidence}
	if relType != "" {
		query += " AND rel_type = ?"
		args = append(args, string(relType))
	}
	query += " ORDER BY confidence DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	return scanLinks(rows)
}

// LinksByType returns links of one type, newest first. A non-positive
// limit returns all of them.
func (s *Store) LinksByType(relType LinkType, limit int) ([]Link, error) {
	if limit <= 0 {
		limit = -1 // LIMIT -1 is unbounded in SQLite
	}
	rows, err := s.db.Query(`
		SELECT id, a_kind, a_id, b_kind, b_id, rel_type, strength, confidence, evidence, discovered_by, discovered_at, false_positive, cycle_id
		FROM links
		WHERE rel_type = ?
		ORDER BY discovered_at DESC
		LIMIT ?
	`, string(relType), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	return scanLinks(rows)
}

// HighConfidenceLinks returns links at or above the confidence floor that
// have not been marked false positive.
func (s *Store) HighConfidenceLinks(minConfidence float64) ([]Link, error) {
	rows, err := s.db.Query(`
		SELECT id, a_kind, a_id, b_kind, b_id, rel_type, strength, confidence, evidence, discovered_by, discovered_at, false_positive, cycle_id
		FROM links
		WHERE confidence >= ? AND false_positive = 0
		ORDER BY confidence DESC
	`, minConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	return scanLinks(rows)
}

// LinksForReview returns high-confidence links of the given type
// discovered before the cutoff and not yet marked false positive. Used by
// the false-positive review pass, which re-examines old links against a
// longer observation horizon.
func (s *Store) LinksForReview(relType LinkType, minConfidence float64, discoveredBefore time.Time) ([]Link, error) {
	rows, err := s.db.Query(`
		SELECT id, a_kind, a_id, b_kind, b_id, rel_type, strength, confidence, evidence, discovered_by, discovered_at, false_positive, cycle_id
		FROM links
		WHERE rel_type = ? AND confidence >= ? AND discovered_at < ? AND false_positive = 0
		ORDER BY discovered_at
	`, string(relType), minConfidence, discoveredBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	return scanLinks(rows)
}

func scanLinks(rows *sql.Rows) ([]Link, error) {
	var links []Link
	for rows.Next() {
		var l Link
		var aKind, bKind, relType string
		var evidence, discoveredBy, cycleID sql.NullString
		var fp int
		err := rows.Scan(
			&l.ID, &aKind, &l.A.ID, &bKind, &l.B.ID, &relType,
			&l.Strength, &l.Confidence, &evidence, &discoveredBy,
			&l.DiscoveredAt, &fp, &cycleID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		l.A.Kind = Kind(aKind)
		l.B.Kind = Kind(bKind)
		l.Type = LinkType(relType)
		l.DiscoveredBy = discoveredBy.String
		l.CycleID = cycleID.String
		l.FalsePositive = fp == 1
		if evidence.Valid && evidence.String != "" {
			if err := json.Unmarshal([]byte(evidence.String), &l.Evidence); err != nil {
				logging.Debug("Failed to unmarshal evidence", "link_id", l.ID, "error", err)
			}
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return links, nil
}

// MarkFalsePositive flags a link as no longer supported by its evidence.
// The row is retained: links are evidence and must remain auditable even
// after being discounted.
func (s *Store) MarkFalsePositive(linkID string) error {
	result, err := s.db.Exec("UPDATE links SET false_positive = 1 WHERE id = ?", linkID)
	if err != nil {
		return fmt.Errorf("failed to mark link false positive: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("link not found: %s", linkID)
	}
	return nil
}

// LinkCount returns the total number of stored links.
func (s *Store) LinkCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM links").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return count, nil
}

// --- Channel profiles ---

// SaveProfiles publishes one cycle's profile version for every channel in
// a single transaction. Reapplying the same cycle's profiles replaces the
// identical rows, keeping the operation idempotent.
func (s *Store) SaveProfiles(profiles []ChannelProfile) error {
	if len(profiles) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO channel_profiles (channel_id, cycle, tier, utility_score, hit_rate, incidents_linked, high_confidence_links, false_positive_count, total_messages, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(channel_id, cycle) DO UPDATE SET
			tier = excluded.tier,
			utility_score = excluded.utility_score,
			hit_rate = excluded.hit_rate,
			incidents_linked = excluded.incidents_linked,
			high_confidence_links = excluded.high_confidence_links,
			false_positive_count = excluded.false_positive_count,
			total_messages = excluded.total_messages
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range profiles {
		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		_, err := stmt.Exec(
			p.ChannelID, p.Cycle, string(p.Tier), p.UtilityScore, p.HitRate,
			p.IncidentsLinked, p.HighConfidenceLinks, p.FalsePositiveCount,
			p.TotalMessages, createdAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save profile for %s: %w", p.ChannelID, err)
		}
	}

	return tx.Commit()
}

// LatestProfiles returns the most recent profile version per channel -
// the surface the external collection scheduler reads.
func (s *Store) LatestProfiles() ([]ChannelProfile, error) {
	rows, err := s.db.Query(`
		SELECT p.channel_id, p.cycle, p.tier, p.utility_score, p.hit_rate, p.incidents_linked, p.high_confidence_links, p.false_positive_count, p.total_messages, p.created_at
		FROM channel_profiles p
		JOIN (
			SELECT channel_id, MAX(cycle) AS max_cycle
			FROM channel_profiles
			GROUP BY channel_id
		) latest ON p.channel_id = latest.channel_id AND p.cycle = latest.max_cycle
		ORDER BY p.utility_score DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	return scanProfiles(rows)
}

// ProfileHistory returns every published profile version for a channel,
// oldest first.
func (s *Store) ProfileHistory(channelID string) ([]ChannelProfile, error) {
	rows, err := s.db.Query(`
		SELECT channel_id, cycle, tier, utility_score, hit_rate, incidents_linked, high_confidence_links, false_positive_count, total_messages, created_at
		FROM channel_profiles
		WHERE channel_id = ?
		ORDER BY cycle
	`, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query profile history: %w", err)
	}
	defer rows.Close()

	return scanProfiles(rows)
}

func scanProfiles(rows *sql.Rows) ([]ChannelProfile, error) {
	var profiles []ChannelProfile
	for rows.Next() {
		var p ChannelProfile
		var tier string
		err := rows.Scan(
			&p.ChannelID, &p.Cycle, &tier, &p.UtilityScore, &p.HitRate,
			&p.IncidentsLinked, &p.HighConfidenceLinks, &p.FalsePositiveCount,
			&p.TotalMessages, &p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		p.Tier = Tier(tier)
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return profiles, nil
}

// --- Vocabulary ---

// SeedVocabulary inserts the configured domain keywords as active terms
// if the vocabulary is empty. Called once at engine startup.
func (s *Store) SeedVocabulary(terms []string) error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM vocabulary").Scan(&count); err != nil {
		return fmt.Errorf("failed to count vocabulary: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, term := range terms {
		_, err := tx.Exec(`
			INSERT INTO vocabulary (term, weight, status, cycle, added_at)
			VALUES (?, 1.0, ?, 0, ?)
			ON CONFLICT(term) DO NOTHING
		`, term, string(TermActive), time.Now())
		if err != nil {
			return fmt.Errorf("failed to seed term %q: %w", term, err)
		}
	}
	return tx.Commit()
}

// ActiveVocabulary returns the live weighted term set used by the content
// scorer and exported to collection-side keyword filters.
func (s *Store) ActiveVocabulary() (map[string]float64, error) {
	rows, err := s.db.Query(`SELECT term, weight FROM vocabulary WHERE status = ?`, string(TermActive))
	if err != nil {
		return nil, fmt.Errorf("failed to query vocabulary: %w", err)
	}
	defer rows.Close()

	vocab := make(map[string]float64)
	for rows.Next() {
		var term string
		var weight float64
		if err := rows.Scan(&term, &weight); err != nil {
			return nil, fmt.Errorf("failed to scan term: %w", err)
		}
		vocab[term] = weight
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return vocab, nil
}

// AddTerms records mined terms with the given status. Existing terms are
// left untouched so a re-run does not resurrect rejected proposals.
func (s *Store) AddTerms(terms []VocabTerm) error {
	if len(terms) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range terms {
		addedAt := t.AddedAt
		if addedAt.IsZero() {
			addedAt = time.Now()
		}
		_, err := tx.Exec(`
			INSERT INTO vocabulary (term, weight, status, cycle, added_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(term) DO NOTHING
		`, t.Term, t.Weight, string(t.Status), t.Cycle, addedAt)
		if err != nil {
			return fmt.Errorf("failed to add term %q: %w", t.Term, err)
		}
	}
	return tx.Commit()
}

// TermsByStatus returns vocabulary entries with the given status.
func (s *Store) TermsByStatus(status TermStatus) ([]VocabTerm, error) {
	rows, err := s.db.Query(`
		SELECT term, weight, status, cycle, added_at
		FROM vocabulary WHERE status = ? ORDER BY weight DESC
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query vocabulary: %w", err)
	}
	defer rows.Close()

	var terms []VocabTerm
	for rows.Next() {
		var t VocabTerm
		var st string
		if err := rows.Scan(&t.Term, &t.Weight, &st, &t.Cycle, &t.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan term: %w", err)
		}
		t.Status = TermStatus(st)
		terms = append(terms, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return terms, nil
}

// ResolveProposed approves or rejects a proposed term from the manual
// review queue.
func (s *Store) ResolveProposed(term string, approve bool) error {
	status := TermRejected
	if approve {
		status = TermActive
	}
	result, err := s.db.Exec(`
		UPDATE vocabulary SET status = ? WHERE term = ? AND status = ?
	`, string(status), term, string(TermProposed))
	if err != nil {
		return fmt.Errorf("failed to resolve term: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("no proposed term: %s", term)
	}
	return nil
}

// --- Cycles ---

// BeginCycle opens a new cycle over the window [from, to).
func (s *Store) BeginCycle(from, to time.Time) (Cycle, error) {
	c := Cycle{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		StartedAt: time.Now(),
		Status:    CycleRunning,
	}
	result, err := s.db.Exec(`
		INSERT INTO cycles (id, window_from, window_to, started_at, status)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.From, c.To, c.StartedAt, string(c.Status))
	if err != nil {
		return Cycle{}, fmt.Errorf("failed to begin cycle: %w", err)
	}
	c.Seq, err = result.LastInsertId()
	if err != nil {
		return Cycle{}, fmt.Errorf("failed to read cycle seq: %w", err)
	}
	return c, nil
}

// CommitCycle marks a cycle committed. Only committed cycles advance the
// cursor; an interrupted cycle's window is re-processed next run.
func (s *Store) CommitCycle(id string) error {
	result, err := s.db.Exec(`
		UPDATE cycles SET status = ?, committed_at = ? WHERE id = ? AND status = ?
	`, string(CycleCommitted), time.Now(), id, string(CycleRunning))
	if err != nil {
		return fmt.Errorf("failed to commit cycle: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("no running cycle: %s", id)
	}
	return nil
}

// LastCommittedCursor returns the window_to of the most recent committed
// cycle, or the zero time when no cycle has committed yet.
func (s *Store) LastCommittedCursor() (time.Time, error) {
	var to sql.NullTime
	err := s.db.QueryRow(`
		SELECT window_to FROM cycles
		WHERE status = ?
		ORDER BY seq DESC LIMIT 1
	`, string(CycleCommitted)).Scan(&to)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read cursor: %w", err)
	}
	return to.Time, nil
}
