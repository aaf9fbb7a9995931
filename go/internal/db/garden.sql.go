package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const nextPlantNum = `-- name: NextPlantNum :one
SELECT COALESCE(MAX(plant_num) + 1, 0)::integer
FROM garden_items
WHERE owner_id = $1`

func (q *Queries) NextPlantNum(ctx context.Context, ownerID string) (int32, error) {
	row := q.db.QueryRowContext(ctx, nextPlantNum, ownerID)
	var num int32
	err := row.Scan(&num)
	return num, err
}

const insertGardenItem = `-- name: InsertGardenItem :exec
INSERT INTO garden_items (id, owner_id, session_id, plant_num, plant_type, rarity, growth_stage, created_at)
VALUES ($1, $2, $3, $4, $5, $6, 0, $7)`

type InsertGardenItemParams struct {
	ID        uuid.UUID
	OwnerID   string
	SessionID uuid.UUID
	PlantNum  int32
	PlantType int32
	Rarity    string
	CreatedAt time.Time
}

func (q *Queries) InsertGardenItem(ctx context.Context, arg InsertGardenItemParams) error {
	_, err := q.db.ExecContext(ctx, insertGardenItem,
		arg.ID,
		arg.OwnerID,
		arg.SessionID,
		arg.PlantNum,
		arg.PlantType,
		arg.Rarity,
		arg.CreatedAt,
	)
	return err
}

const gardenItemColumns = `id, owner_id, session_id, plant_num, plant_type, rarity, growth_stage, created_at`

func scanGardenItem(row rowScanner) (GardenItem, error) {
	var i GardenItem
	err := row.Scan(
		&i.ID,
		&i.OwnerID,
		&i.SessionID,
		&i.PlantNum,
		&i.PlantType,
		&i.Rarity,
		&i.GrowthStage,
		&i.CreatedAt,
	)
	return i, err
}

const listGardenItems = `-- name: ListGardenItems :many
SELECT ` + gardenItemColumns + `
FROM garden_items
WHERE owner_id = $1
ORDER BY plant_num DESC
LIMIT $2 OFFSET $3`

type ListGardenItemsParams struct {
	OwnerID string
	Limit   int32
	Offset  int32
}

func (q *Queries) ListGardenItems(ctx context.Context, arg ListGardenItemsParams) ([]GardenItem, error) {
	rows, err := q.db.QueryContext(ctx, listGardenItems, arg.OwnerID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GardenItem
	for rows.Next() {
		i, err := scanGardenItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateGardenItemGrowth = `-- name: UpdateGardenItemGrowth :one
UPDATE garden_items
SET growth_stage = $3
WHERE id = $1 AND owner_id = $2
RETURNING ` + gardenItemColumns

type UpdateGardenItemGrowthParams struct {
	ID          uuid.UUID
	OwnerID     string
	GrowthStage int32
}

func (q *Queries) UpdateGardenItemGrowth(ctx context.Context, arg UpdateGardenItemGrowthParams) (GardenItem, error) {
	row := q.db.QueryRowContext(ctx, updateGardenItemGrowth, arg.ID, arg.OwnerID, arg.GrowthStage)
	return scanGardenItem(row)
}

const gardenRarityCounts = `-- name: GardenRarityCounts :one
SELECT COUNT(*)                                     AS total,
       COUNT(*) FILTER (WHERE rarity = 'rare')      AS rare,
       COUNT(*) FILTER (WHERE rarity = 'epic')      AS epic,
       COUNT(*) FILTER (WHERE rarity = 'legendary') AS legendary,
       MAX(created_at)                              AS last_granted_at
FROM garden_items
WHERE owner_id = $1`

type GardenRarityCountsRow struct {
	Total         int64
	Rare          int64
	Epic          int64
	Legendary     int64
	LastGrantedAt sql.NullTime
}

func (q *Queries) GardenRarityCounts(ctx context.Context, ownerID string) (GardenRarityCountsRow, error) {
	row := q.db.QueryRowContext(ctx, gardenRarityCounts, ownerID)
	var i GardenRarityCountsRow
	err := row.Scan(
		&i.Total,
		&i.Rare,
		&i.Epic,
		&i.Legendary,
		&i.LastGrantedAt,
	)
	return i, err
}
