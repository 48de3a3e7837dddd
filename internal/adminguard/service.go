package adminguard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/core/common/validation"
	allowlistDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/allowlist"
	"github.com/frahmantamala/access-management/internal/core/db"
	"github.com/frahmantamala/access-management/internal/core/events"
)

type RepositoryAPI interface {
	Create(ctx context.Context, entry *allowlistDatamodel.AdminIPAllowEntry) error
	GetByIP(ctx context.Context, ip string) (*allowlistDatamodel.AdminIPAllowEntry, error)
	Delete(ctx context.Context, id int64) error
	SetActive(ctx context.Context, id int64, active bool) error
	List(ctx context.Context, activeOnly bool) ([]*allowlistDatamodel.AdminIPAllowEntry, error)
	CountActive(ctx context.Context) (int64, error)
	ActiveExists(ctx context.Context, ip string) (bool, error)
}

type Service struct {
	repo      RepositoryAPI
	tx        db.Transactor
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, tx db.Transactor, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		tx:        tx,
		publisher: publisher,
		logger:    logger,
	}
}

// IsIPAllowed is true for every address while no active entry exists;
// otherwise only an active entry equal to ip admits it.
func (s *Service) IsIPAllowed(ctx context.Context, ip string) (bool, error) {
	active, err := s.repo.CountActive(ctx)
	if err != nil {
		return false, fmt.Errorf("count active entries: %w", err)
	}
	if active == 0 {
		return true, nil
	}
	if ip == "" {
		return false, nil
	}
	return s.repo.ActiveExists(ctx, CanonicalIP(ip))
}

// AddEntry adds an active entry. addedBy may be nil.
func (s *Service) AddEntry(ctx context.Context, ip, description string, addedBy *int64) (*Entry, error) {
	ip = CanonicalIP(ip)
	if err := validation.ValidateIPAddress(ip); err != nil {
		return nil, err
	}
	v := validation.NewValidator()
	v.Field("description", description).MaxLength(255)
	if err := v.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	row := &allowlistDatamodel.AdminIPAllowEntry{
		IPAddress:   ip,
		Description: description,
		IsActive:    true,
		AddedBy:     addedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByIP(ctx, ip)
		if err != nil {
			return fmt.Errorf("lookup entry: %w", err)
		}
		if existing != nil {
			return internal.ErrAllowEntryExists.WithDetails(map[string]string{"ip_address": ip})
		}
		return s.repo.Create(ctx, row)
	})
	if err != nil {
		s.logger.Warn("failed to add allow-list entry", "ip_address", ip, "error", err)
		return nil, err
	}

	s.logger.Info("added IP to admin allowlist", "ip_address", ip)
	s.publish(ctx, events.NewAllowListChangedEvent("add", ip, true))
	return FromDataModel(row), nil
}

func (s *Service) RemoveEntry(ctx context.Context, ip string) error {
	ip = CanonicalIP(ip)
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByIP(ctx, ip)
		if err != nil {
			return fmt.Errorf("lookup entry: %w", err)
		}
		if existing == nil {
			return internal.ErrAllowEntryNotFound
		}
		return s.repo.Delete(ctx, existing.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("removed IP from admin allowlist", "ip_address", ip)
	s.publish(ctx, events.NewAllowListChangedEvent("remove", ip, false))
	return nil
}

func (s *Service) ToggleEntry(ctx context.Context, ip string, active bool) (*Entry, error) {
	ip = CanonicalIP(ip)
	var entry *allowlistDatamodel.AdminIPAllowEntry
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		entry, err = s.repo.GetByIP(ctx, ip)
		if err != nil {
			return fmt.Errorf("lookup entry: %w", err)
		}
		if entry == nil {
			return internal.ErrAllowEntryNotFound
		}
		if err := s.repo.SetActive(ctx, entry.ID, active); err != nil {
			return err
		}
		entry.IsActive = active
		entry.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("toggled admin allowlist entry", "ip_address", ip, "is_active", active)
	s.publish(ctx, events.NewAllowListChangedEvent("toggle", ip, active))
	return FromDataModel(entry), nil
}

func (s *Service) ListEntries(ctx context.Context, activeOnly bool) ([]*Entry, error) {
	rows, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	entries := make([]*Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, FromDataModel(row))
	}
	return entries, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
