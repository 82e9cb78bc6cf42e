package catalog

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
)

// Repository reads the school catalog. Every list is ordered by name
// (teachers by last then first name).
type Repository interface {
	QueryGroups(ctx context.Context) ([]Group, error)
	QueryRooms(ctx context.Context) ([]Room, error)
	QuerySubjects(ctx context.Context) ([]Subject, error)
	QueryTeachers(ctx context.Context) ([]Teacher, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
	).CheckAndPanic()

	return &Service{repo: repo}
}

func (svc *Service) ListGroups(ctx context.Context) ([]Group, error) {
	groups, err := svc.repo.QueryGroups(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	if groups == nil {
		groups = []Group{}
	}
	return groups, nil
}

func (svc *Service) FormOptions(ctx context.Context) (FormOptions, error) {
	var (
		opts FormOptions
		err  error
	)
	if opts.Rooms, err = svc.repo.QueryRooms(ctx); err != nil {
		return FormOptions{}, errors.Wrap(err, "querying rooms")
	}
	if opts.Subjects, err = svc.repo.QuerySubjects(ctx); err != nil {
		return FormOptions{}, errors.Wrap(err, "querying subjects")
	}
	if opts.Teachers, err = svc.repo.QueryTeachers(ctx); err != nil {
		return FormOptions{}, errors.Wrap(err, "querying teachers")
	}

	if opts.Rooms == nil {
		opts.Rooms = []Room{}
	}
	if opts.Subjects == nil {
		opts.Subjects = []Subject{}
	}
	for i, t := range opts.Teachers {
		if t.SubjectIDs == nil {
			opts.Teachers[i].SubjectIDs = []int{}
		}
	}
	if opts.Teachers == nil {
		opts.Teachers = []Teacher{}
	}
	return opts, nil
}
