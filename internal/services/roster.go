package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dekyc/apiserver/internal/logger"
	"github.com/dekyc/apiserver/internal/mq"
	"github.com/dekyc/apiserver/internal/roster"
	"github.com/dekyc/apiserver/types"
)

// RosterRepository is the persistence the admin roster needs.
type RosterRepository interface {
	List(ctx context.Context) ([]types.User, error)
	GetByID(ctx context.Context, id string) (types.User, error)
	UpdateStatus(ctx context.Context, id string, status types.Status) error
}

// EventPublisher publishes JSON events. *mq.MQ implements it.
type EventPublisher interface {
	PublishJSON(ctx context.Context, channel string, v any) (string, error)
}

// checklistTypes are the documents an administrator reviews for every user.
var checklistTypes = []types.DocType{
	types.DocCitizenship,
	types.DocDrivingLicense,
	types.DocPANCard,
	types.DocCertificate,
}

// RosterPage is a filtered view of the roster plus the tally over all of it.
type RosterPage struct {
	Items []types.User       `json:"items"`
	Tally roster.StatusTally `json:"tally"`
}

// UserDetails is the admin view of a single user.
type UserDetails struct {
	User      types.User            `json:"user"`
	Checklist []types.ChecklistItem `json:"checklist"`
}

// RosterService serves the administrator roster.
type RosterService struct {
	repo      RosterRepository
	publisher EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

// NewRosterService wires the roster use-cases. publisher may be nil when no
// message queue is configured.
func NewRosterService(repo RosterRepository, publisher EventPublisher, log *logger.Logger) *RosterService {
	if log == nil {
		log = logger.Noop()
	}
	return &RosterService{repo: repo, publisher: publisher, log: log, now: time.Now}
}

// List returns the records matching f in roster order. The tally always
// covers the full roster regardless of f. Administrator accounts are not
// KYC subjects and never appear in the roster.
func (s *RosterService) List(ctx context.Context, f roster.Filter) (RosterPage, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return RosterPage{}, fmt.Errorf("failed to load roster: %w", err)
	}
	records = slices.DeleteFunc(records, func(u types.User) bool {
		return strings.EqualFold(u.Role, types.RoleAdmin)
	})
	return RosterPage{
		Items: roster.Collect(records, f),
		Tally: roster.Tally(records),
	}, nil
}

// SetStatus records an administrator decision and announces it on
// kyc.status_changed. A failed publish is logged, the decision stands.
func (s *RosterService) SetStatus(ctx context.Context, id string, status types.Status, actorID string) (types.User, error) {
	if !status.Valid() {
		return types.User{}, ErrInvalidStatus
	}

	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return types.User{}, err
	}

	after := before
	after.Status = status
	s.log.Info("kyc status changed", "user_id", id, "from", before.Status, "to", status, "actor", actorID)

	if s.publisher != nil {
		event := mq.StatusChanged{
			UserID:    after.ID,
			Name:      after.Name,
			Email:     after.Email,
			Previous:  before.Status,
			Status:    status,
			ChangedBy: actorID,
			ChangedAt: s.now().UTC(),
		}
		if _, err := s.publisher.PublishJSON(ctx, mq.ChannelStatusChanged, event); err != nil {
			s.log.Warn("failed to publish status change", "user_id", id, "error", err)
		}
	}
	return after, nil
}

// Details returns the user and the document checklist shown on the admin
// details page.
func (s *RosterService) Details(ctx context.Context, id string) (UserDetails, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return UserDetails{}, err
	}
	return UserDetails{User: user, Checklist: Checklist(user)}, nil
}

// Checklist builds the review checklist for user.
func Checklist(user types.User) []types.ChecklistItem {
	items := make([]types.ChecklistItem, 0, len(checklistTypes))
	for _, key := range checklistTypes {
		name := key.DisplayName()
		items = append(items, types.ChecklistItem{
			Key:      key,
			Title:    user.Name + " - " + name,
			Subtitle: name + " for " + user.Name,
		})
	}
	return items
}
