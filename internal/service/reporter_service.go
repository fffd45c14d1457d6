package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fincaops/incident-service/internal/domain"
	"github.com/fincaops/incident-service/internal/repository"
	"github.com/fincaops/incident-service/pkg/util"
)

// ReporterService is the reporter directory: it resolves inbound identities
// to stable reporter records.
type ReporterService struct {
	reporters repository.ReporterRepository
	logger    *zap.Logger
}

// NewReporterService constructs the service.
func NewReporterService(reporters repository.ReporterRepository, logger *zap.Logger) *ReporterService {
	return &ReporterService{reporters: reporters, logger: logger}
}

// Resolve returns the reporter for (channel, handle), creating one on first
// contact. Idempotent: concurrent calls for the same pair converge on a
// single record via the unique index, with the loser re-fetching.
func (s *ReporterService) Resolve(ctx context.Context, channel domain.Channel, handle string) (*domain.Reporter, error) {
	if handle == "" {
		return nil, util.NewValidationError("reporter handle required", nil)
	}

	reporter, err := s.reporters.GetByHandle(ctx, channel, handle)
	if err == nil {
		return reporter, nil
	}
	if !isNotFound(err) {
		return nil, util.NewStorageError(err)
	}

	reporter = &domain.Reporter{
		Channel:          channel,
		Handle:           handle,
		PreferredContact: channel,
	}
	err = s.reporters.Create(ctx, reporter)
	if err == nil {
		s.logger.Info("reporter created",
			zap.String("reporter_id", reporter.ID),
			zap.String("channel", string(channel)))
		return reporter, nil
	}
	if util.IsCode(err, "CONFLICT") {
		// lost the race: another request created the record first
		reporter, err = s.reporters.GetByHandle(ctx, channel, handle)
		if err != nil {
			return nil, util.NewStorageError(err)
		}
		return reporter, nil
	}
	return nil, util.NewStorageError(err)
}

// UpdateProfile merges non-empty incoming fields into the reporter. An
// existing value is never overwritten by an empty incoming one.
func (s *ReporterService) UpdateProfile(ctx context.Context, reporterID string, profile domain.ReporterProfile) (*domain.Reporter, error) {
	reporter, err := s.reporters.GetByID(ctx, reporterID)
	if err != nil {
		if isNotFound(err) {
			return nil, util.NewNotFound("reporter", map[string]any{"id": reporterID})
		}
		return nil, util.NewStorageError(err)
	}

	changed := false
	if profile.Name != "" && reporter.Name == "" {
		reporter.Name = profile.Name
		changed = true
	}
	// A different non-empty name on an already-named reporter suggests the
	// handle is shared or reassigned. The stored name wins; the record is
	// flagged so an operator resolves the identity manually.
	if profile.Name != "" && reporter.Name != "" && !sameName(profile.Name, reporter.Name) {
		if !reporter.NeedsReview {
			reporter.NeedsReview = true
			changed = true
		}
		s.logger.Warn("conflicting profile name for handle",
			zap.String("reporter_id", reporter.ID),
			zap.String("handle", reporter.Handle),
			zap.Error(util.NewIdentityConflict(reporter.Handle, map[string]any{
				"stored":   reporter.Name,
				"incoming": profile.Name,
			})))
	}
	if profile.Address != "" && reporter.Address == "" {
		reporter.Address = profile.Address
		changed = true
	}
	if profile.Unit != "" && reporter.Unit == "" {
		reporter.Unit = profile.Unit
		changed = true
	}
	if !changed {
		return reporter, nil
	}

	if err := s.reporters.Update(ctx, reporter); err != nil {
		return nil, util.NewStorageError(err)
	}
	return reporter, nil
}

// FlagIdentityConflict marks a reporter whose handle appears to belong to an
// already-known identity. Merging is manual; this only surfaces the case.
func (s *ReporterService) FlagIdentityConflict(ctx context.Context, reporterID string) error {
	reporter, err := s.reporters.GetByID(ctx, reporterID)
	if err != nil {
		return util.NewStorageError(err)
	}
	if reporter.NeedsReview {
		return nil
	}
	reporter.NeedsReview = true
	if err := s.reporters.Update(ctx, reporter); err != nil {
		return util.NewStorageError(err)
	}
	s.logger.Warn("reporter flagged for identity review",
		zap.String("reporter_id", reporterID),
		zap.String("handle", reporter.Handle))
	return nil
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func isNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || util.IsCode(err, "NOT_FOUND")
}
