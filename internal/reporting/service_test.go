package reporting

import (
	"context"
	"testing"
	"time"

	"holdline/internal/calls"
)

type staticRepo []calls.Call

func (r staticRepo) ListCalls(ctx context.Context, userID string) ([]calls.Call, error) {
	return r, nil
}

func at(base time.Time, d time.Duration) *time.Time {
	t := base.Add(d)
	return &t
}

func TestHoldSummary_Aggregates(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()
	repo := staticRepo{
		{ID: "c1", UserID: "u1", CompanyName: "Comcast", Status: calls.StatusEnded, StartedAt: base, HumanDetectedAt: at(base, 20*time.Minute)},
		{ID: "c2", UserID: "u1", CompanyName: "Comcast", Status: calls.StatusLive, StartedAt: base, HumanDetectedAt: at(base, 10*time.Minute)},
		{ID: "c3", UserID: "u1", CompanyName: "IRS", Status: calls.StatusFailed, StartedAt: base},
		{ID: "c4", UserID: "u1", CompanyName: "IRS", Status: calls.StatusHolding, StartedAt: base},
		{ID: "c5", UserID: "u1", CompanyName: "Delta", Status: calls.StatusEnded, StartedAt: base},
		{ID: "c6", UserID: "u2", CompanyName: "Comcast", Status: calls.StatusEnded, StartedAt: base, HumanDetectedAt: at(base, time.Hour)},
	}
	out, err := NewService(repo).HoldSummary(context.Background(), HoldSummaryRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 5 || out.HumansReached != 2 || out.FailedCalls != 1 || out.EndedCalls != 2 || out.ActiveCalls != 2 {
		t.Fatalf("unexpected counts %+v", out)
	}
	if out.AverageHoldSeconds != 900 || out.LongestHoldSeconds != 1200 || out.TotalHoldSeconds != 1800 {
		t.Fatalf("unexpected hold figures %+v", out)
	}
	if len(out.Companies) != 3 || out.Companies[0].CompanyName != "Comcast" || out.Companies[0].AverageHoldSeconds != 900 {
		t.Fatalf("unexpected company breakdown %+v", out.Companies)
	}
	if out.Companies[1].CompanyName != "IRS" || out.Companies[2].CompanyName != "Delta" {
		t.Fatalf("unexpected company order %+v", out.Companies)
	}
}

func TestHoldSummary_RangeAndValidation(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()
	repo := staticRepo{
		{ID: "old", UserID: "u1", Status: calls.StatusEnded, StartedAt: base.Add(-48 * time.Hour)},
		{ID: "new", UserID: "u1", Status: calls.StatusEnded, StartedAt: base},
	}
	svc := NewService(repo)

	out, err := svc.HoldSummary(context.Background(), HoldSummaryRequest{UserID: "u1", Range: TimeRange{From: base.Add(-time.Hour)}})
	if err != nil || out.TotalCalls != 1 {
		t.Fatalf("expected only recent call, got %+v %v", out, err)
	}

	if _, err := svc.HoldSummary(context.Background(), HoldSummaryRequest{}); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := svc.HoldSummary(context.Background(), HoldSummaryRequest{UserID: "u1", Range: TimeRange{From: base, To: base}}); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest for empty range, got %v", err)
	}
}

func TestRegistryRepo(t *testing.T) {
	reg := calls.NewRegistry()
	if _, err := reg.Create(context.Background(), calls.CreateRequest{UserID: "u1", PhoneNumber: "8009346489"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	out, err := NewService(RegistryRepo{Registry: reg}).HoldSummary(context.Background(), HoldSummaryRequest{UserID: "u1"})
	if err != nil || out.TotalCalls != 1 || out.ActiveCalls != 1 {
		t.Fatalf("unexpected summary %+v %v", out, err)
	}
}
