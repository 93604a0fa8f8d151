package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"finan/internal/amqp"
	"finan/internal/core"
	"finan/internal/log"
	"finan/internal/notify"
)

// ListCategories returns the global categories plus the user's own, ordered
// by id, and publishes them on the user's category feed.
func (s *Service) ListCategories(ctx context.Context, userID int64) (cats []core.Category, err error) {
	defer func(start time.Time) { s.observe(opListCategories, start, err) }(time.Now())

	if err := s.waitReady(ctx); err != nil {
		return nil, err
	}
	version := s.categories.NextVersion(userID)
	cats, err = s.store.ListCategories(ctx, userID)
	if err != nil {
		return []core.Category{}, s.classify(ctx, userID, opListCategories, err)
	}
	s.categories.Publish(userID, version, cats)
	return cats, nil
}

// CategoriesByKind lists the categories of one kind.
func (s *Service) CategoriesByKind(ctx context.Context, userID int64, kind core.Kind) ([]core.Category, error) {
	if !kind.Valid() {
		return []core.Category{}, core.ErrInvalidKind
	}
	cats, err := s.ListCategories(ctx, userID)
	if err != nil {
		return []core.Category{}, err
	}
	return core.FilterByKind(cats, kind), nil
}

// AddCategory creates a category owned by userID. Blank icon and color fall
// back to the defaults.
func (s *Service) AddCategory(ctx context.Context, userID int64, name string, kind core.Kind, icon, color string) (c core.Category, err error) {
	defer func(start time.Time) { s.observe(opAddCategory, start, err) }(time.Now())

	owner := userID
	c = core.Category{
		Name:    strings.TrimSpace(name),
		Kind:    kind,
		Icon:    strings.TrimSpace(icon),
		Color:   strings.TrimSpace(color),
		OwnerID: &owner,
	}
	if c.Icon == "" {
		c.Icon = core.DefaultCategoryIcon
	}
	if c.Color == "" {
		c.Color = core.DefaultCategoryColor
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.waitReady(ctx); err != nil {
		return core.Category{}, err
	}

	if err := s.store.CreateCategory(ctx, &c); err != nil {
		return core.Category{}, s.classify(ctx, userID, opAddCategory, err)
	}

	s.logger.InfoContext(ctx, "Category created",
		log.FieldUserID, userID, log.FieldCategoryID, c.ID, log.FieldKind, c.Kind)
	s.refreshCategories(ctx, userID)
	s.publish(ctx, amqp.CategoryCreated, userID, c.ID)
	s.notifier.Notify(ctx, userID, notify.LevelInfo, "Category created.")
	return c, nil
}

// CategoryFor resolves a category only if it is global or owned by userID;
// anything else is core.ErrUnknownCategory.
func (s *Service) CategoryFor(ctx context.Context, userID, categoryID int64) (core.Category, error) {
	if err := s.waitReady(ctx); err != nil {
		return core.Category{}, err
	}
	c, err := s.lookupCategory(ctx, userID, categoryID)
	if err != nil {
		return core.Category{}, s.classify(ctx, userID, opListCategories, err)
	}
	return c, nil
}

func (s *Service) lookupCategory(ctx context.Context, userID, categoryID int64) (core.Category, error) {
	c, err := s.store.GetCategory(ctx, categoryID)
	if errors.Is(err, core.ErrNotFound) {
		return core.Category{}, core.ErrUnknownCategory
	}
	if err != nil {
		return core.Category{}, err
	}
	if !c.VisibleTo(userID) {
		return core.Category{}, core.ErrUnknownCategory
	}
	return c, nil
}

// WatchCategories subscribes to the user's category listing. A snapshot is
// loaded when none is cached yet.
func (s *Service) WatchCategories(ctx context.Context, userID int64) (<-chan []core.Category, func()) {
	ch, cancel := s.categories.Subscribe(userID)
	if _, ok := s.categories.Latest(userID); !ok {
		s.refreshCategories(ctx, userID)
	}
	return ch, cancel
}

func (s *Service) refreshCategories(ctx context.Context, userID int64) {
	version := s.categories.NextVersion(userID)
	ctx, release := s.detach(ctx)

	s.refreshes.Add(1)
	go func() {
		defer s.refreshes.Done()
		defer release()
		if err := s.waitReady(ctx); err != nil {
			return
		}
		cats, err := s.store.ListCategories(ctx, userID)
		if err != nil {
			s.logger.WarnContext(ctx, "Category snapshot refresh failed",
				log.FieldUserID, userID, log.FieldOperation, log.OpRefresh, log.FieldError, err)
			return
		}
		if !s.categories.Publish(userID, version, cats) {
			s.metrics.SnapshotDropped("categories")
		}
	}()
}
