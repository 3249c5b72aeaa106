package class

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("class not found")

type (
	// Repository lookups are always scoped by the owner's ID; a Class owned by someone else is ErrNotFound.
	Repository interface {
		CreateClass(ctx context.Context, cls Class) (Class, error)
		QueryClasses(ctx context.Context, userID int64) ([]Class, error)
		GetClass(ctx context.Context, userID, id int64) (Class, error)
		UpdateClass(ctx context.Context, cls Class) (Class, error)
		// DeleteClass also detaches the class's tasks (their class_id becomes null).
		DeleteClass(ctx context.Context, userID, id int64) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, userID int64, nc NewClass) (Class, error) {
	now := time.Now().UTC()
	return svc.repo.CreateClass(ctx, Class{
		UserID:     userID,
		Name:       nc.Name,
		Code:       nc.Code,
		Instructor: nc.Instructor,
		Color:      nc.Color,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func (svc *Service) Query(ctx context.Context, userID int64) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, userID)
}

func (svc *Service) Get(ctx context.Context, userID, id int64) (Class, error) {
	return svc.repo.GetClass(ctx, userID, id)
}

func (svc *Service) Update(ctx context.Context, cls Class, nc NewClass) (Class, error) {
	cls.Name = nc.Name
	cls.Code = nc.Code
	cls.Instructor = nc.Instructor
	cls.Color = nc.Color
	cls.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateClass(ctx, cls)
}

func (svc *Service) Delete(ctx context.Context, userID, id int64) error {
	return svc.repo.DeleteClass(ctx, userID, id)
}
