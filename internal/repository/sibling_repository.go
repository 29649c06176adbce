package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/parroquia-tools/turnos-api/internal/models"
)

// SiblingRepository provides database access for sibling groups and their
// membership rows.
type SiblingRepository struct {
	db *sqlx.DB
}

// NewSiblingRepository creates a new instance of SiblingRepository.
func NewSiblingRepository(db *sqlx.DB) *SiblingRepository {
	return &SiblingRepository{db: db}
}

const siblingColumns = `id, name, pairing_rule, created_at, updated_at`

// List returns all groups with members attached, ordered by name.
func (r *SiblingRepository) List(ctx context.Context) ([]models.SiblingGroup, error) {
	query := fmt.Sprintf(`SELECT %s FROM sibling_groups ORDER BY name ASC, id ASC`, siblingColumns)
	var groups []models.SiblingGroup
	if err := r.db.SelectContext(ctx, &groups, query); err != nil {
		return nil, fmt.Errorf("list sibling groups: %w", err)
	}
	if err := r.attachMembers(ctx, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// FindByID returns a group with members loaded.
func (r *SiblingRepository) FindByID(ctx context.Context, id string) (*models.SiblingGroup, error) {
	query := fmt.Sprintf(`SELECT %s FROM sibling_groups WHERE id = $1 LIMIT 1`, siblingColumns)
	var group models.SiblingGroup
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		return nil, err
	}
	groups := []models.SiblingGroup{group}
	if err := r.attachMembers(ctx, groups); err != nil {
		return nil, err
	}
	return &groups[0], nil
}

// Create inserts a group row.
func (r *SiblingRepository) Create(ctx context.Context, exec sqlx.ExtContext, group *models.SiblingGroup) error {
	if exec == nil {
		exec = r.db
	}
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	const query = `INSERT INTO sibling_groups (id, name, pairing_rule, created_at, updated_at)
		VALUES (:id, :name, :pairing_rule, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, group); err != nil {
		return fmt.Errorf("create sibling group: %w", err)
	}
	return nil
}

// Update updates a group's name and rule.
func (r *SiblingRepository) Update(ctx context.Context, exec sqlx.ExtContext, group *models.SiblingGroup) error {
	if exec == nil {
		exec = r.db
	}
	group.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sibling_groups SET name = :name, pairing_rule = :pairing_rule, updated_at = :updated_at WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, exec, query, group)
	if err != nil {
		return fmt.Errorf("update sibling group: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sibling group rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReplaceMembers rewrites the membership rows for a group.
func (r *SiblingRepository) ReplaceMembers(ctx context.Context, exec sqlx.ExtContext, groupID string, personIDs []string) error {
	if exec == nil {
		exec = r.db
	}
	if _, err := exec.ExecContext(ctx, `DELETE FROM sibling_group_members WHERE group_id = $1`, groupID); err != nil {
		return fmt.Errorf("clear sibling group members: %w", err)
	}
	for _, personID := range personIDs {
		if _, err := exec.ExecContext(ctx, `INSERT INTO sibling_group_members (group_id, person_id) VALUES ($1, $2)`, groupID, personID); err != nil {
			return fmt.Errorf("insert sibling group member: %w", err)
		}
	}
	return nil
}

// Delete removes a group and its membership rows.
func (r *SiblingRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if exec == nil {
		exec = r.db
	}
	if _, err := exec.ExecContext(ctx, `DELETE FROM sibling_group_members WHERE group_id = $1`, id); err != nil {
		return fmt.Errorf("clear sibling group members: %w", err)
	}
	result, err := exec.ExecContext(ctx, `DELETE FROM sibling_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete sibling group: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete sibling group rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *SiblingRepository) attachMembers(ctx context.Context, groups []models.SiblingGroup) error {
	if len(groups) == 0 {
		return nil
	}
	ids := make([]string, len(groups))
	index := make(map[string]int, len(groups))
	for i := range groups {
		ids[i] = groups[i].ID
		index[groups[i].ID] = i
	}

	var members []models.SiblingGroupMember
	const query = `SELECT group_id, person_id FROM sibling_group_members WHERE group_id = ANY($1) ORDER BY group_id, person_id`
	if err := r.db.SelectContext(ctx, &members, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("load sibling group members: %w", err)
	}
	for _, member := range members {
		i, ok := index[member.GroupID]
		if !ok {
			continue
		}
		groups[i].MemberIDs = append(groups[i].MemberIDs, member.PersonID)
	}
	return nil
}
