package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/store/entity"
	"github.com/ovaphlow/pitchfork/service-shop-go/pkg/utilities"
)

var (
	ErrStoreNotFound = errors.New("store not found")
	ErrForbidden     = errors.New("store belongs to another user")
	ErrSlugTaken     = errors.New("slug already taken")
	ErrInvalidInput  = errors.New("invalid input")
)

// slugAttempts bounds retries when a concurrent writer takes a slug between
// the availability check and the insert.
const slugAttempts = 5

type Repository interface {
	Create(ctx context.Context, s *entity.Store) (int64, error)
	GetByID(ctx context.Context, id int64) (*entity.Store, error)
	GetBySlug(ctx context.Context, slug string) (*entity.Store, error)
	ListByUser(ctx context.Context, userID int64) ([]*entity.Store, error)
	Update(ctx context.Context, s *entity.Store) error
	Delete(ctx context.Context, id int64) error
	SlugTaken(ctx context.Context, slug string, excludeID int64) (bool, error)
	SetLogo(ctx context.Context, id int64, logoURL string) error
}

type Service struct {
	repo Repository
}

func NewService(r Repository) *Service {
	return &Service{repo: r}
}

type CreateInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	Slug        *string `json:"slug"`
	LogoURL     *string `json:"logo_url"`
	Domain      *string `json:"domain"`
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases s and collapses every run of characters outside
// [a-z0-9] into a single dash.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Trim(nonSlug.ReplaceAllString(s, "-"), "-")
}

// PrepareSlug derives a free slug from provided (or name). Taken slugs get
// -1, -2, ... suffixes; an empty base becomes store-<random>.
func (s *Service) PrepareSlug(ctx context.Context, name, provided string, excludeID int64) (string, error) {
	base := provided
	if strings.TrimSpace(base) == "" {
		base = name
	}
	base = Slugify(base)
	if base == "" {
		base = "store-" + utilities.NewShortToken(6)
	}
	candidate := base
	for n := 1; ; n++ {
		taken, err := s.repo.SlugTaken(ctx, candidate, excludeID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(n)
	}
}

func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (*entity.Store, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	st := &entity.Store{
		UserID:      userID,
		Name:        name,
		Description: in.Description,
		Color:       entity.DefaultColor,
		LogoURL:     in.LogoURL,
		Domain:      in.Domain,
		IsActive:    true,
	}
	if in.Color != nil && *in.Color != "" {
		st.Color = *in.Color
	}
	provided := ""
	if in.Slug != nil {
		provided = *in.Slug
	}

	for attempt := 0; attempt < slugAttempts; attempt++ {
		slug, err := s.PrepareSlug(ctx, name, provided, 0)
		if err != nil {
			return nil, err
		}
		st.Slug = slug
		id, err := s.repo.Create(ctx, st)
		if errors.Is(err, ErrSlugTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return s.repo.GetByID(ctx, id)
	}
	return nil, ErrSlugTaken
}

// Get returns a store without an owner check.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Store, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (*entity.Store, error) {
	return s.repo.GetBySlug(ctx, slug)
}

// GetOwned returns the store if userID owns it.
func (s *Service) GetOwned(ctx context.Context, id, userID int64) (*entity.Store, error) {
	st, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.UserID != userID {
		return nil, ErrForbidden
	}
	return st, nil
}

func (s *Service) List(ctx context.Context, userID int64) ([]*entity.Store, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) Update(ctx context.Context, id, userID int64, p entity.Patch) (*entity.Store, error) {
	st, err := s.GetOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
	}
	p.Apply(st)
	st.Name = strings.TrimSpace(st.Name)

	wantSlug := p.Slug != nil && strings.TrimSpace(*p.Slug) != ""
	for attempt := 0; attempt < slugAttempts; attempt++ {
		if wantSlug {
			slug, err := s.PrepareSlug(ctx, st.Name, *p.Slug, st.ID)
			if err != nil {
				return nil, err
			}
			st.Slug = slug
		}
		err := s.repo.Update(ctx, st)
		if errors.Is(err, ErrSlugTaken) && wantSlug {
			continue
		}
		if err != nil {
			return nil, err
		}
		return s.repo.GetByID(ctx, st.ID)
	}
	return nil, ErrSlugTaken
}

func (s *Service) Delete(ctx context.Context, id, userID int64) error {
	if _, err := s.GetOwned(ctx, id, userID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// SetLogo overwrites the store logo url. Used by the design editor.
func (s *Service) SetLogo(ctx context.Context, id int64, logoURL string) error {
	return s.repo.SetLogo(ctx, id, logoURL)
}
