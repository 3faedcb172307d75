package design

import (
	"context"
	"errors"
	"strings"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/design/entity"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/store"
)

var (
	ErrNotFound        = errors.New("design not found")
	ErrNotPublished    = errors.New("store is not published")
	ErrVersionConflict = errors.New("version conflict")
)

type Repository interface {
	GetByStore(ctx context.Context, storeID int64) (*entity.Design, error)
	// Create inserts d unless the store already has a design.
	Create(ctx context.Context, d *entity.Design) error
	// Update writes d if the stored version still equals expected and
	// reports how many rows changed.
	Update(ctx context.Context, d *entity.Design, expected int) (int64, error)
	// Publish marks the design published and bumps its version, creating
	// a published version 1 design when none exists.
	Publish(ctx context.Context, storeID int64) (*entity.Design, error)
}

// Service manages store designs and the public storefront view.
type Service struct {
	repo          Repository
	stores        *store.Service
	publicBaseURL string
}

func NewService(r Repository, stores *store.Service, publicBaseURL string) *Service {
	return &Service{repo: r, stores: stores, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

// Get returns the design of an owned store, creating an empty one on first
// read so the editor never sees a 404.
func (s *Service) Get(ctx context.Context, storeID, userID int64) (*entity.Design, error) {
	if _, err := s.stores.GetOwned(ctx, storeID, userID); err != nil {
		return nil, err
	}
	return s.getOrCreate(ctx, storeID)
}

func (s *Service) getOrCreate(ctx context.Context, storeID int64) (*entity.Design, error) {
	d, err := s.repo.GetByStore(ctx, storeID)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err := s.repo.Create(ctx, entity.NewDesign(storeID)); err != nil {
		return nil, err
	}
	return s.repo.GetByStore(ctx, storeID)
}

// Update applies p. With expectedVersion > 0 the write fails with
// ErrVersionConflict if the design moved on in the meantime.
func (s *Service) Update(ctx context.Context, storeID, userID int64, p entity.Patch, expectedVersion int) (*entity.Design, error) {
	if _, err := s.stores.GetOwned(ctx, storeID, userID); err != nil {
		return nil, err
	}
	d, err := s.getOrCreate(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if expectedVersion > 0 && expectedVersion != d.Version {
		return nil, ErrVersionConflict
	}
	p.Apply(d)
	rows, err := s.repo.Update(ctx, d, d.Version)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrVersionConflict
	}

	if logo := p.StoreLogo(); logo != "" {
		if err := s.stores.SetLogo(ctx, storeID, logo); err != nil {
			return nil, err
		}
	}
	return s.repo.GetByStore(ctx, storeID)
}

func (s *Service) Publish(ctx context.Context, storeID, userID int64) (*entity.Design, error) {
	if _, err := s.stores.GetOwned(ctx, storeID, userID); err != nil {
		return nil, err
	}
	return s.repo.Publish(ctx, storeID)
}

// Public returns the published storefront for slug.
func (s *Service) Public(ctx context.Context, slug string) (*entity.Published, error) {
	st, err := s.stores.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	d, err := s.repo.GetByStore(ctx, st.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotPublished
		}
		return nil, err
	}
	if !d.IsPublished || !st.IsActive {
		return nil, ErrNotPublished
	}
	return &entity.Published{
		ID:           st.ID,
		Name:         st.Name,
		Slug:         st.Slug,
		Description:  st.Description,
		Color:        st.Color,
		LogoURL:      st.LogoURL,
		Domain:       st.Domain,
		DesignData:   d.DesignData,
		Theme:        d.Theme,
		CustomCSS:    d.CustomCSS,
		Version:      d.Version,
		Published:    true,
		PublishedURL: s.publicBaseURL + "/s/" + st.Slug,
	}, nil
}
