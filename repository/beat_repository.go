package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"BeatFlow/model"
)

// BeatRepository defines the interface for marketplace beat operations.
type BeatRepository interface {
	CreateBeat(beat *model.Beat) error
	GetBeatByID(id string) (*model.Beat, error)
	ListBeats(filter model.BeatFilter) ([]*model.Beat, error)
	ListBeatsByProducer(producerID string) ([]*model.Beat, error)
	GetCharts(limit int) ([]*model.Beat, error)
	IncrementPlays(id string) error
	UpdateBeat(beat *model.Beat) error
	DeactivateBeat(id, producerID string) error
}

// mysqlBeatRepository implements BeatRepository for MySQL.
type mysqlBeatRepository struct {
	db *sql.DB
}

// NewMySQLBeatRepository creates a new mysqlBeatRepository.
func NewMySQLBeatRepository(db *sql.DB) BeatRepository {
	return &mysqlBeatRepository{db: db}
}

const beatColumns = "id, producer_id, producer_name, title, genre, bpm, price, description, audio_path, cover_path, duration, plays, is_active, created_at, updated_at"

func scanBeat(scanner interface{ Scan(dest ...interface{}) error }) (*model.Beat, error) {
	b := &model.Beat{}
	err := scanner.Scan(&b.ID, &b.ProducerID, &b.ProducerName, &b.Title, &b.Genre, &b.BPM,
		&b.Price, &b.Description, &b.AudioPath, &b.CoverPath, &b.Duration, &b.Plays,
		&b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// CreateBeat adds a new beat listing.
func (r *mysqlBeatRepository) CreateBeat(beat *model.Beat) error {
	query := "INSERT INTO beats (id, producer_id, producer_name, title, genre, bpm, price, description, audio_path, cover_path, duration, is_active) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare create beat statement: %w", err)
	}
	defer stmt.Close()

	if _, err := stmt.Exec(beat.ID, beat.ProducerID, beat.ProducerName, beat.Title, beat.Genre,
		beat.BPM, beat.Price, beat.Description, beat.AudioPath, beat.CoverPath, beat.Duration,
		beat.IsActive); err != nil {
		return fmt.Errorf("failed to execute create beat statement: %w", err)
	}
	return nil
}

// GetBeatByID retrieves a single beat by ID.
func (r *mysqlBeatRepository) GetBeatByID(id string) (*model.Beat, error) {
	query := "SELECT " + beatColumns + " FROM beats WHERE id = ?"
	b, err := scanBeat(r.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Beat not found
		}
		return nil, fmt.Errorf("failed to scan beat row for ID %s: %w", id, err)
	}
	return b, nil
}

// ListBeats retrieves active beats matching the filter, newest first.
// Zero-valued filter fields apply no constraint.
func (r *mysqlBeatRepository) ListBeats(filter model.BeatFilter) ([]*model.Beat, error) {
	var conds []string
	var args []interface{}

	conds = append(conds, "is_active = TRUE")
	if filter.Genre != "" {
		conds = append(conds, "genre = ?")
		args = append(args, filter.Genre)
	}
	if filter.MinBPM > 0 {
		conds = append(conds, "bpm >= ?")
		args = append(args, filter.MinBPM)
	}
	if filter.MaxBPM > 0 {
		conds = append(conds, "bpm <= ?")
		args = append(args, filter.MaxBPM)
	}
	if filter.MaxPrice > 0 {
		conds = append(conds, "price <= ?")
		args = append(args, filter.MaxPrice)
	}
	if filter.Search != "" {
		conds = append(conds, "(title LIKE ? OR producer_name LIKE ?)")
		like := "%" + filter.Search + "%"
		args = append(args, like, like)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)

	query := "SELECT " + beatColumns + " FROM beats WHERE " + strings.Join(conds, " AND ") +
		" ORDER BY created_at DESC LIMIT ?"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query beats: %w", err)
	}
	defer rows.Close()

	return collectBeats(rows)
}

// ListBeatsByProducer retrieves every beat a producer has listed,
// including deactivated ones.
func (r *mysqlBeatRepository) ListBeatsByProducer(producerID string) ([]*model.Beat, error) {
	query := "SELECT " + beatColumns + " FROM beats WHERE producer_id = ? ORDER BY created_at DESC"
	rows, err := r.db.Query(query, producerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query beats for producer %s: %w", producerID, err)
	}
	defer rows.Close()

	return collectBeats(rows)
}

// GetCharts retrieves the most played active beats.
func (r *mysqlBeatRepository) GetCharts(limit int) ([]*model.Beat, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := "SELECT " + beatColumns + " FROM beats WHERE is_active = TRUE ORDER BY plays DESC, created_at DESC LIMIT ?"
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query beat charts: %w", err)
	}
	defer rows.Close()

	return collectBeats(rows)
}

// IncrementPlays bumps the play counter for a beat.
func (r *mysqlBeatRepository) IncrementPlays(id string) error {
	if _, err := r.db.Exec("UPDATE beats SET plays = plays + 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to increment plays for beat %s: %w", id, err)
	}
	return nil
}

// UpdateBeat updates listing metadata for a beat.
func (r *mysqlBeatRepository) UpdateBeat(beat *model.Beat) error {
	query := "UPDATE beats SET title = ?, genre = ?, bpm = ?, price = ?, description = ?, cover_path = ?, updated_at = NOW() WHERE id = ? AND producer_id = ?"
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare update beat statement: %w", err)
	}
	defer stmt.Close()

	if _, err := stmt.Exec(beat.Title, beat.Genre, beat.BPM, beat.Price, beat.Description,
		beat.CoverPath, beat.ID, beat.ProducerID); err != nil {
		return fmt.Errorf("failed to update beat %s: %w", beat.ID, err)
	}
	return nil
}

// DeactivateBeat hides a listing from the marketplace. Ownership is
// enforced in the WHERE clause.
func (r *mysqlBeatRepository) DeactivateBeat(id, producerID string) error {
	res, err := r.db.Exec("UPDATE beats SET is_active = FALSE, updated_at = NOW() WHERE id = ? AND producer_id = ?", id, producerID)
	if err != nil {
		return fmt.Errorf("failed to deactivate beat %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for beat %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("beat %s not found or not owned by producer", id)
	}
	return nil
}

func collectBeats(rows *sql.Rows) ([]*model.Beat, error) {
	var beats []*model.Beat
	for rows.Next() {
		b, err := scanBeat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan beat row: %w", err)
		}
		beats = append(beats, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating beat rows: %w", err)
	}
	return beats, nil
}
