package issuance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	"github.com/learnreward/rewardplane/internal/app/gate"
	"github.com/learnreward/rewardplane/internal/domain"
)

var metadataHashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// CourseInput describes a new course.
type CourseInput struct {
	CourseID     string `json:"course_id"`
	Name         string `json:"name"`
	RewardAmount uint64 `json:"reward_amount"`
	// MetadataHash is the hex SHA-256 of the course metadata. Empty means
	// "hash Metadata instead".
	MetadataHash string `json:"metadata_hash,omitempty"`
	Metadata     string `json:"metadata,omitempty"`
}

// HashMetadata returns the hex SHA-256 of a metadata document.
func HashMetadata(doc string) string {
	sum := sha256.Sum256([]byte(doc))
	return hex.EncodeToString(sum[:])
}

func resolveHash(hash, doc string) (string, error) {
	if hash == "" {
		if doc == "" {
			return "", nil
		}
		return HashMetadata(doc), nil
	}
	if !metadataHashPattern.MatchString(hash) {
		return "", domain.ErrInvalidMetadataHash
	}
	return hash, nil
}

// loadIssuerFor checks the gate and that caller controls an active issuer.
func loadIssuerFor(ctx context.Context, tx domain.Tx, caller, issuerID string, flag domain.PauseFlag) (*domain.ProgramState, *domain.IssuerEntry, error) {
	p, err := tx.GetProgram(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := gate.Check(p, flag); err != nil {
		return nil, nil, err
	}
	e, err := tx.GetIssuer(ctx, issuerID)
	if err != nil {
		return nil, nil, err
	}
	if caller != e.Principal {
		return nil, nil, domain.ErrUnauthorized
	}
	if !e.Active {
		return nil, nil, domain.ErrInactiveEducator
	}
	return p, e, nil
}

// CreateCourse publishes a course for an issuer. Only the issuer's
// controlling principal may call it.
func (s *Service) CreateCourse(ctx context.Context, caller, issuerID string, in CourseInput) (*domain.Course, error) {
	var out *domain.Course
	err := s.tracer.Track(ctx, "issuance.create_course", map[string]string{"issuer": issuerID, "course": in.CourseID}, func() error {
		return s.store.RunInTx(ctx, func(tx domain.Tx) error {
			_, e, err := loadIssuerFor(ctx, tx, caller, issuerID, domain.PauseCourse)
			if err != nil {
				return err
			}
			cfg, err := tx.GetConfig(ctx)
			if err != nil {
				return err
			}
			if e.CourseCount >= cfg.MaxCoursesPerIssuer {
				return domain.ErrMaxCoursesReached
			}
			if err := domain.ValidateCourseID(in.CourseID); err != nil {
				return err
			}
			if err := domain.ValidateCourseName(in.Name); err != nil {
				return err
			}
			if in.RewardAmount == 0 || in.RewardAmount > e.MintCap {
				return domain.ErrInvalidCourseReward
			}
			hash, err := resolveHash(in.MetadataHash, in.Metadata)
			if err != nil {
				return err
			}

			now := s.now().Unix()
			c := &domain.Course{
				IssuerID:      issuerID,
				CourseID:      in.CourseID,
				Name:          in.Name,
				RewardAmount:  in.RewardAmount,
				Active:        true,
				MetadataHash:  hash,
				Version:       1,
				CreatedAt:     now,
				LastUpdatedAt: now,
			}
			if err := tx.InsertCourse(ctx, c); err != nil {
				return err
			}
			count, err := domain.CheckedAdd32(e.CourseCount, 1)
			if err != nil {
				return err
			}
			e.CourseCount = count
			e.LastUpdatedAt = now
			if err := tx.UpdateIssuer(ctx, e); err != nil {
				return err
			}
			out = c
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("issuer", issuerID).Str("course", in.CourseID).Uint64("reward", in.RewardAmount).Msg("course created")
	return out, nil
}

// UpdateCourse changes a course and records its previous values in the
// course history.
func (s *Service) UpdateCourse(ctx context.Context, caller, issuerID, courseID string, upd domain.CourseUpdate) (*domain.Course, error) {
	var out *domain.Course
	err := s.tracer.Track(ctx, "issuance.update_course", map[string]string{"issuer": issuerID, "course": courseID}, func() error {
		return s.store.RunInTx(ctx, func(tx domain.Tx) error {
			_, e, err := loadIssuerFor(ctx, tx, caller, issuerID, domain.PauseCourse)
			if err != nil {
				return err
			}
			c, err := tx.GetCourse(ctx, issuerID, courseID)
			if err != nil {
				return err
			}
			now := s.now().Unix()
			prev := &domain.CourseHistory{
				IssuerID:     c.IssuerID,
				CourseID:     c.CourseID,
				Version:      c.Version,
				Name:         c.Name,
				RewardAmount: c.RewardAmount,
				Active:       c.Active,
				MetadataHash: c.MetadataHash,
				ChangedBy:    caller,
				ChangedAt:    now,
			}

			if upd.Name != nil {
				if err := domain.ValidateCourseName(*upd.Name); err != nil {
					return err
				}
				c.Name = *upd.Name
			}
			if upd.RewardAmount != nil {
				if *upd.RewardAmount == 0 || *upd.RewardAmount > e.MintCap {
					return domain.ErrInvalidCourseReward
				}
				c.RewardAmount = *upd.RewardAmount
			}
			if upd.Active != nil {
				c.Active = *upd.Active
			}
			if upd.MetadataHash != nil {
				hash, err := resolveHash(*upd.MetadataHash, "")
				if err != nil {
					return err
				}
				c.MetadataHash = hash
			}

			version, err := domain.CheckedAdd32(c.Version, 1)
			if err != nil {
				return err
			}
			c.Version = version
			c.LastUpdatedAt = now
			if err := tx.InsertCourseHistory(ctx, prev); err != nil {
				return err
			}
			if err := tx.UpdateCourse(ctx, c); err != nil {
				return err
			}
			out = c
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("issuer", issuerID).Str("course", courseID).Uint32("version", out.Version).Msg("course updated")
	return out, nil
}

// GetCourse returns a course.
func (s *Service) GetCourse(ctx context.Context, issuerID, courseID string) (*domain.Course, error) {
	var out *domain.Course
	err := s.store.RunInTx(ctx, func(tx domain.Tx) error {
		c, err := tx.GetCourse(ctx, issuerID, courseID)
		out = c
		return err
	})
	return out, err
}

// ListCourses returns an issuer's courses.
func (s *Service) ListCourses(ctx context.Context, issuerID string) ([]domain.Course, error) {
	var out []domain.Course
	err := s.store.RunInTx(ctx, func(tx domain.Tx) error {
		if _, err := tx.GetIssuer(ctx, issuerID); err != nil {
			return err
		}
		list, err := tx.ListCourses(ctx, issuerID)
		out = list
		return err
	})
	return out, err
}

// CourseHistory returns a course's previous versions, oldest first.
func (s *Service) CourseHistory(ctx context.Context, issuerID, courseID string) ([]domain.CourseHistory, error) {
	var out []domain.CourseHistory
	err := s.store.RunInTx(ctx, func(tx domain.Tx) error {
		if _, err := tx.GetCourse(ctx, issuerID, courseID); err != nil {
			return err
		}
		list, err := tx.ListCourseHistory(ctx, issuerID, courseID)
		out = list
		return err
	})
	return out, err
}
