package service

import (
	"context"
	"time"

	"devconnector/logger"
	"devconnector/models"
	"devconnector/store"
	"devconnector/validation"

	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func errNoProfile() error { return NotFound("noprofile", "There is no profile for this user") }
func errHandleTaken() error { return Duplicate("handle", "That handle already exists") }

type ProfileService struct {
	profiles   store.ProfileStore
	users      store.UserStore
	experience *Collection[models.Profile, models.Experience]
	education  *Collection[models.Profile, models.Education]
	attempts   int
}

func NewProfileService(profiles store.ProfileStore, users store.UserStore) *ProfileService {
	experience := NewCollection(store.Repository[models.Profile](profiles), CollectionSpec[models.Profile, models.Experience]{
		Name:         "experience",
		Entries:      func(p *models.Profile) *[]models.Experience { return &p.Experience },
		Key:          func(e *models.Experience) string { return e.ID.Hex() },
		AssignID:     func(e *models.Experience) { e.ID = primitive.NewObjectID() },
		Front:        true,
		OwnerMissing: errNoProfile,
		EntryMissing: func() error {
			return NotFound("experiencenotfound", "Experience not found")
		},
	})

	education := NewCollection(store.Repository[models.Profile](profiles), CollectionSpec[models.Profile, models.Education]{
		Name:         "education",
		Entries:      func(p *models.Profile) *[]models.Education { return &p.Education },
		Key:          func(e *models.Education) string { return e.ID.Hex() },
		AssignID:     func(e *models.Education) { e.ID = primitive.NewObjectID() },
		Front:        true,
		OwnerMissing: errNoProfile,
		EntryMissing: func() error {
			return NotFound("educationnotfound", "Education not found")
		},
	})

	return &ProfileService{
		profiles:   profiles,
		users:      users,
		experience: experience,
		education:  education,
		attempts:   defaultCommitAttempts,
	}
}

// Current returns the caller's profile.
func (s *ProfileService) Current(ctx context.Context, who Identity) (*models.ProfileView, error) {
	p, err := s.find(ctx, func() (*models.Profile, error) { return s.profiles.FindByUser(ctx, who.UserID) })
	if err != nil {
		return nil, err
	}
	return s.populateOne(ctx, p)
}

func (s *ProfileService) ByUser(ctx context.Context, userID string) (*models.ProfileView, error) {
	id, err := parseID(userID, errNoProfile)
	if err != nil {
		return nil, err
	}
	p, err := s.find(ctx, func() (*models.Profile, error) { return s.profiles.FindByUser(ctx, id) })
	if err != nil {
		return nil, err
	}
	return s.populateOne(ctx, p)
}

func (s *ProfileService) ByHandle(ctx context.Context, handle string) (*models.ProfileView, error) {
	p, err := s.find(ctx, func() (*models.Profile, error) { return s.profiles.FindByHandle(ctx, handle) }, func() error {
		return NotFound("noprofile", "There is no profile for this handle")
	})
	if err != nil {
		return nil, err
	}
	return s.populateOne(ctx, p)
}

// All lists every profile. An empty store is reported as not found.
func (s *ProfileService) All(ctx context.Context) ([]*models.ProfileView, error) {
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return nil, storageError(err, "list profiles")
	}
	if len(profiles) == 0 {
		return nil, NotFound("noprofile", "There are no profiles")
	}
	return s.populate(ctx, profiles)
}

// Upsert creates the caller's profile or merges the submitted fields into
// the existing one. Empty fields never clear stored values.
func (s *ProfileService) Upsert(ctx context.Context, who Identity, in validation.ProfileInput) (*models.Profile, error) {
	if errs, ok := validation.ValidateProfileInput(&in); !ok {
		return nil, ValidationError(errs)
	}

	for attempt := 1; ; attempt++ {
		existing, err := s.profiles.FindByUser(ctx, who.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, storageError(err, "load profile")
		}

		var p *models.Profile
		if existing == nil {
			p, err = s.create(ctx, who, in)
		} else {
			p, err = s.update(ctx, existing, in)
		}

		retry := errors.Is(err, store.ErrVersionConflict) || store.DuplicateField(err) == "user"
		if !retry {
			return p, err
		}
		if attempt >= s.attempts {
			return nil, conflictError("profile")
		}
		logger.Log.WithField("user", who.UserID.Hex()).Debugf("profile upsert raced on attempt %d, retrying", attempt)
	}
}

func (s *ProfileService) create(ctx context.Context, who Identity, in validation.ProfileInput) (*models.Profile, error) {
	if errs, ok := validation.ValidateProfileCreate(&in); !ok {
		return nil, ValidationError(errs)
	}
	if err := s.checkHandle(ctx, in.Handle, primitive.NilObjectID); err != nil {
		return nil, err
	}

	p := models.NewProfile(who.UserID)
	if err := mergeProfile(p, in); err != nil {
		return nil, err
	}

	err := s.profiles.Insert(ctx, p)
	switch {
	case err == nil:
		return p, nil
	case store.DuplicateField(err) == "handle":
		return nil, errHandleTaken()
	case store.DuplicateField(err) == "user":
		// another request created it first; the caller retries as an update
		return nil, err
	default:
		return nil, storageError(err, "create profile")
	}
}

func (s *ProfileService) update(ctx context.Context, p *models.Profile, in validation.ProfileInput) (*models.Profile, error) {
	if in.Handle != "" && in.Handle != p.Handle {
		if err := s.checkHandle(ctx, in.Handle, p.ID); err != nil {
			return nil, err
		}
	}
	if err := mergeProfile(p, in); err != nil {
		return nil, err
	}

	err := s.profiles.Commit(ctx, p)
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, store.ErrVersionConflict):
		return nil, err
	case errors.Is(err, store.ErrNotFound):
		// removed between load and commit
		return nil, errNoProfile()
	case store.DuplicateField(err) == "handle":
		return nil, errHandleTaken()
	default:
		return nil, storageError(err, "update profile")
	}
}

// checkHandle fails if handle belongs to a profile other than self.
func (s *ProfileService) checkHandle(ctx context.Context, handle string, self primitive.ObjectID) error {
	other, err := s.profiles.FindByHandle(ctx, handle)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return storageError(err, "check handle")
	}
	if other.ID != self {
		return errHandleTaken()
	}
	return nil
}

// profileScalars lists the plain string fields copied onto a Profile by
// name.
type profileScalars struct {
	Handle         string
	Company        string
	Website        string
	Location       string
	Bio            string
	Status         string
	GithubUsername string
}

// mergeProfile overwrites the fields of p that in supplies.
func mergeProfile(p *models.Profile, in validation.ProfileInput) error {
	opt := copier.Option{IgnoreEmpty: true}

	scalars := profileScalars{
		Handle:         in.Handle,
		Company:        in.Company,
		Website:        in.Website,
		Location:       in.Location,
		Bio:            in.Bio,
		Status:         in.Status,
		GithubUsername: in.GithubUsername,
	}
	if err := copier.CopyWithOption(p, &scalars, opt); err != nil {
		return errors.Wrap(err, "merge profile")
	}

	social := models.Social{
		Youtube:   in.Youtube,
		Twitter:   in.Twitter,
		Facebook:  in.Facebook,
		Linkedin:  in.Linkedin,
		Instagram: in.Instagram,
	}
	if err := copier.CopyWithOption(&p.Social, &social, opt); err != nil {
		return errors.Wrap(err, "merge social links")
	}

	if skills := validation.SplitSkills(in.Skills); len(skills) > 0 {
		p.Skills = skills
	}
	return nil
}

// AddExperience prepends an experience entry to the caller's profile.
func (s *ProfileService) AddExperience(ctx context.Context, who Identity, in validation.ExperienceInput) (*models.Profile, error) {
	if errs, ok := validation.ValidateExperienceInput(&in); !ok {
		return nil, ValidationError(errs)
	}
	p, err := s.find(ctx, func() (*models.Profile, error) { return s.profiles.FindByUser(ctx, who.UserID) })
	if err != nil {
		return nil, err
	}

	from, _ := validation.ParseDate(in.From)
	return s.experience.Append(ctx, p.ID, models.Experience{
		Title:       in.Title,
		Company:     in.Company,
		Location:    in.Location,
		From:        from,
		To:          optionalDate(in.To),
		Current:     in.Current,
		Description: in.Description,
	})
}

func (s *ProfileService) RemoveExperience(ctx context.Context, who Identity, expID string) (*models.Profile, error) {
	p, err := s.find(ctx, func() (*models.Profile, error) { return s.profiles.FindByUser(ctx, who.UserID) })
	if err != nil {
		return nil, err
	}
	return s.experience.Remove(ctx, p.ID, expID)
}

// AddEducation prepends an education entry to the caller's profile.
func (s *ProfileService) AddEducation(ctx context.Context, who Identity, in validation.EducationInput) (*models.Profile, error) {
	if errs, ok := validation.ValidateEducationInput(&in); !ok {
		return nil, ValidationError(errs)
	}
	p, err := s.find(ctx, func() (*models.Profile, error) { return s.profiles.FindByUser(ctx, who.UserID) })
	if err != nil {
		return nil, err
	}

	from, _ := validation.ParseDate(in.From)
	return s.education.Append(ctx, p.ID, models.Education{
		School:       in.School,
		Degree:       in.Degree,
		FieldOfStudy: in.FieldOfStudy,
		From:         from,
		To:           optionalDate(in.To),
		Current:      in.Current,
		Description:  in.Description,
	})
}

func (s *ProfileService) RemoveEducation(ctx context.Context, who Identity, eduID string) (*models.Profile, error) {
	p, err := s.find(ctx, func() (*models.Profile, error) { return s.profiles.FindByUser(ctx, who.UserID) })
	if err != nil {
		return nil, err
	}
	return s.education.Remove(ctx, p.ID, eduID)
}

func (s *ProfileService) find(ctx context.Context, lookup func() (*models.Profile, error), missing ...func() error) (*models.Profile, error) {
	p, err := lookup()
	if errors.Is(err, store.ErrNotFound) {
		if len(missing) > 0 {
			return nil, missing[0]()
		}
		return nil, errNoProfile()
	}
	if err != nil {
		return nil, storageError(err, "find profile")
	}
	return p, nil
}

func (s *ProfileService) populateOne(ctx context.Context, p *models.Profile) (*models.ProfileView, error) {
	views, err := s.populate(ctx, []*models.Profile{p})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// populate attaches name and avatar of each profile's user.
func (s *ProfileService) populate(ctx context.Context, profiles []*models.Profile) ([]*models.ProfileView, error) {
	ids := make([]primitive.ObjectID, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.User)
	}

	refs, err := s.users.FindRefs(ctx, ids)
	if err != nil {
		return nil, storageError(err, "populate profile users")
	}

	views := make([]*models.ProfileView, 0, len(profiles))
	for _, p := range profiles {
		ref, ok := refs[p.User]
		if !ok {
			ref = models.UserRef{ID: p.User}
		}
		views = append(views, &models.ProfileView{Profile: p, User: ref})
	}
	return views, nil
}

func optionalDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := validation.ParseDate(s)
	if err != nil {
		return nil
	}
	return &t
}
