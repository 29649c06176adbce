package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/parroquia-tools/turnos-api/internal/dto"
	"github.com/parroquia-tools/turnos-api/internal/models"
	appErrors "github.com/parroquia-tools/turnos-api/pkg/errors"
)

type siblingRepository interface {
	List(ctx context.Context) ([]models.SiblingGroup, error)
	FindByID(ctx context.Context, id string) (*models.SiblingGroup, error)
	Create(ctx context.Context, exec sqlx.ExtContext, group *models.SiblingGroup) error
	Update(ctx context.Context, exec sqlx.ExtContext, group *models.SiblingGroup) error
	ReplaceMembers(ctx context.Context, exec sqlx.ExtContext, groupID string, personIDs []string) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type siblingPersonReader interface {
	FindByID(ctx context.Context, id string) (*models.Person, error)
}

// SiblingService manages the family relations the generator pairs or
// separates on a service date.
type SiblingService struct {
	repo      siblingRepository
	people    siblingPersonReader
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSiblingService constructs the sibling group service.
func NewSiblingService(repo siblingRepository, people siblingPersonReader, tx txProvider, validate *validator.Validate, logger *zap.Logger) *SiblingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiblingService{repo: repo, people: people, tx: tx, validator: validate, logger: logger}
}

// List returns every group with its members.
func (s *SiblingService) List(ctx context.Context) ([]models.SiblingGroup, error) {
	groups, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sibling groups")
	}
	return groups, nil
}

// Get returns one group with its members.
func (s *SiblingService) Get(ctx context.Context, id string) (*models.SiblingGroup, error) {
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "sibling group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sibling group")
	}
	return group, nil
}

// Create registers a group of at least two roster members.
func (s *SiblingService) Create(ctx context.Context, req dto.CreateSiblingGroupRequest) (*models.SiblingGroup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sibling group payload")
	}
	rule := models.PairingRule(req.PairingRule)
	if !rule.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "pairingRule must be TOGETHER or SEPARATE")
	}
	members := dedupe(req.MemberIDs)
	if len(members) < 2 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a sibling group needs at least two distinct members")
	}
	if err := s.ensurePeopleExist(ctx, members); err != nil {
		return nil, err
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	group := &models.SiblingGroup{Name: req.Name, PairingRule: rule}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.repo.Create(ctx, tx, group); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create sibling group")
		return nil, err
	}
	if err = s.repo.ReplaceMembers(ctx, tx, group.ID, members); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store group members")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit sibling group transaction")
		return nil, err
	}

	group.MemberIDs = members
	s.logger.Info("sibling group created", zap.String("group_id", group.ID), zap.Int("members", len(members)))
	return group, nil
}

// Update rewrites the fields present in the request. Replacing members
// follows the same at-least-two rule creation enforces.
func (s *SiblingService) Update(ctx context.Context, id string, req dto.UpdateSiblingGroupRequest) (*models.SiblingGroup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sibling group payload")
	}
	group, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		group.Name = *req.Name
	}
	if req.PairingRule != nil {
		rule := models.PairingRule(*req.PairingRule)
		if !rule.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "pairingRule must be TOGETHER or SEPARATE")
		}
		group.PairingRule = rule
	}

	var members []string
	if req.MemberIDs != nil {
		members = dedupe(req.MemberIDs)
		if len(members) < 2 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a sibling group needs at least two distinct members")
		}
		if err := s.ensurePeopleExist(ctx, members); err != nil {
			return nil, err
		}
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.repo.Update(ctx, tx, group); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "sibling group not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update sibling group")
		return nil, err
	}
	if req.MemberIDs != nil {
		if err = s.repo.ReplaceMembers(ctx, tx, group.ID, members); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store group members")
			return nil, err
		}
		group.MemberIDs = members
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit sibling group transaction")
		return nil, err
	}

	s.logger.Info("sibling group updated", zap.String("group_id", group.ID))
	return group, nil
}

// Delete removes a group and its memberships. Schedules already generated
// keep their assignments.
func (s *SiblingService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.repo.Delete(ctx, tx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "sibling group not found")
			return err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete sibling group")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit sibling group transaction")
		return err
	}

	s.logger.Info("sibling group deleted", zap.String("group_id", id))
	return nil
}

func (s *SiblingService) ensurePeopleExist(ctx context.Context, personIDs []string) error {
	for _, personID := range personIDs {
		if _, err := s.people.FindByID(ctx, personID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("person %s not found", personID))
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load person")
		}
	}
	return nil
}
