package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/escolardev/escolar-api/internal/models"
)

// RoomRepository handles persistence for classrooms.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs the repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

const roomColumns = `number, location, capacity, created_at, updated_at`

// List returns all rooms ordered by number.
func (r *RoomRepository) List(ctx context.Context) ([]models.Room, error) {
	query := fmt.Sprintf(`SELECT %s FROM rooms ORDER BY number`, roomColumns)
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// FindByNumber returns a room by its number.
func (r *RoomRepository) FindByNumber(ctx context.Context, number int) (*models.Room, error) {
	query := fmt.Sprintf(`SELECT %s FROM rooms WHERE number = $1`, roomColumns)
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, number); err != nil {
		return nil, err
	}
	return &room, nil
}

// Create persists a new room.
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	now := time.Now().UTC()
	room.CreatedAt = now
	room.UpdatedAt = now
	const query = `INSERT INTO rooms (number, location, capacity, created_at, updated_at)
VALUES (:number, :location, :capacity, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a room.
func (r *RoomRepository) Update(ctx context.Context, room *models.Room) error {
	room.UpdatedAt = time.Now().UTC()
	const query = `UPDATE rooms SET location = :location, capacity = :capacity, updated_at = :updated_at
WHERE number = :number`
	res, err := r.db.NamedExecContext(ctx, query, room)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	return requireRow(res)
}

// Delete removes a room.
func (r *RoomRepository) Delete(ctx context.Context, number int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE number = $1`, number)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return requireRow(res)
}
