package reporting

import (
	"context"
	"errors"
	"sort"
	"time"

	"holdline/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// Implementations must only return the given user's calls.
type Repository interface {
	ListCalls(ctx context.Context, userID string) ([]calls.Call, error)
}

// RegistryRepo reads calls from the live registry.
type RegistryRepo struct {
	Registry *calls.Registry
}

func (r RegistryRepo) ListCalls(ctx context.Context, userID string) ([]calls.Call, error) {
	if r.Registry == nil {
		return nil, errors.New("reporting: registry not configured")
	}
	return r.Registry.ListByUser(userID), nil
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) HoldSummary(ctx context.Context, req HoldSummaryRequest) (HoldSummary, error) {
	if req.UserID == "" {
		return HoldSummary{}, ErrInvalidRequest
	}
	if !req.Range.From.IsZero() && !req.Range.To.IsZero() && !req.Range.To.After(req.Range.From) {
		return HoldSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return HoldSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.UserID)
	if err != nil {
		return HoldSummary{}, err
	}

	type acc struct {
		calls, humans, hold int
	}
	byCompany := map[string]*acc{}

	out := HoldSummary{UserID: req.UserID, Companies: []CompanyStats{}}
	for _, c := range rows {
		if c.UserID != req.UserID || !req.Range.Contains(c.StartedAt) {
			continue
		}
		out.TotalCalls++
		a := byCompany[c.CompanyName]
		if a == nil {
			a = &acc{}
			byCompany[c.CompanyName] = a
		}
		a.calls++

		switch c.Status {
		case calls.StatusEnded:
			out.EndedCalls++
		case calls.StatusFailed:
			out.FailedCalls++
		default:
			out.ActiveCalls++
		}

		if c.HumanDetectedAt != nil {
			hold := int(c.HumanDetectedAt.Sub(c.StartedAt) / time.Second)
			out.HumansReached++
			out.TotalHoldSeconds += hold
			if hold > out.LongestHoldSeconds {
				out.LongestHoldSeconds = hold
			}
			a.humans++
			a.hold += hold
		}
	}
	if out.HumansReached > 0 {
		out.AverageHoldSeconds = out.TotalHoldSeconds / out.HumansReached
	}

	for name, a := range byCompany {
		cs := CompanyStats{CompanyName: name, Calls: a.calls, HumansReached: a.humans}
		if a.humans > 0 {
			cs.AverageHoldSeconds = a.hold / a.humans
		}
		out.Companies = append(out.Companies, cs)
	}
	sort.Slice(out.Companies, func(i, j int) bool {
		if out.Companies[i].Calls != out.Companies[j].Calls {
			return out.Companies[i].Calls > out.Companies[j].Calls
		}
		return out.Companies[i].CompanyName < out.Companies[j].CompanyName
	})
	return out, nil
}
