package services

import (
	"context"
	"testing"

	"github.com/rmgwatch/apiserver/types"
)

func TestRiskScore_Weighting(t *testing.T) {
	profile := types.CountryProfile{FraudCount: 10, HighRiskCount: 3, CriticalCount: 2}
	if got := profile.RiskScore(); got != 10+2*3+3*2 {
		t.Fatalf("want 22, got %d", got)
	}
}

func TestOverview_SumsTotals(t *testing.T) {
	countries := newFakeCountryRepo()
	countries.profiles["BD"] = types.CountryProfile{CountryCode: "BD", FraudCount: 5, HighRiskCount: 2, CriticalCount: 1}
	countries.profiles["VN"] = types.CountryProfile{CountryCode: "VN", FraudCount: 3, HighRiskCount: 1}

	service := NewCountryService(countries, newFakeEntityRepo(), newFakeReportRepo())
	overview, err := service.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if overview.TotalFraud != 8 || overview.TotalHighRisk != 3 || overview.TotalCritical != 1 {
		t.Fatalf("unexpected totals: %+v", overview)
	}
}

func TestDetail_CreatesProfileOnFirstSight(t *testing.T) {
	countries := newFakeCountryRepo()
	service := NewCountryService(countries, newFakeEntityRepo(), newFakeReportRepo())

	detail, err := service.Detail(context.Background(), "BD")
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.Profile.CountryCode != "BD" || detail.Profile.CountryName != "Bangladesh" {
		t.Fatalf("unexpected profile: %+v", detail.Profile)
	}
	if detail.Profile.FraudTrend != types.TrendStable {
		t.Fatalf("new profiles start stable, got %q", detail.Profile.FraudTrend)
	}
	if _, err := countries.GetByCode(context.Background(), "BD"); err != nil {
		t.Fatalf("profile should be persisted: %v", err)
	}
}

func TestRecompute_AggregatesAndTrend(t *testing.T) {
	countries := newFakeCountryRepo()
	entities := newFakeEntityRepo()
	reports := newFakeReportRepo()
	service := NewCountryService(countries, entities, reports)
	ctx := context.Background()

	_, _ = entities.Create(ctx, types.Entity{Name: "Acme", CountryCode: "BD", IsVerified: true})
	_, _ = entities.Create(ctx, types.Entity{Name: "Globex", CountryCode: "BD"})
	reports.riskCounts["BD"] = [3]int{4, 2, 1}

	profile, err := service.Recompute(ctx, "BD")
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if profile.FraudCount != 4 || profile.HighRiskCount != 2 || profile.CriticalCount != 1 {
		t.Fatalf("unexpected report counts: %+v", profile)
	}
	if profile.TotalEntities != 2 || profile.VerifiedEntities != 1 {
		t.Fatalf("unexpected entity counts: %+v", profile)
	}
	// First computation from zero counts as increasing.
	if profile.FraudTrend != types.TrendIncreasing {
		t.Fatalf("want increasing, got %q", profile.FraudTrend)
	}

	// Unchanged counts settle to stable.
	profile, err = service.Recompute(ctx, "BD")
	if err != nil {
		t.Fatalf("second recompute: %v", err)
	}
	if profile.FraudTrend != types.TrendStable {
		t.Fatalf("want stable, got %q", profile.FraudTrend)
	}

	// Fewer reports than last time reads as decreasing.
	reports.riskCounts["BD"] = [3]int{2, 1, 0}
	profile, err = service.Recompute(ctx, "BD")
	if err != nil {
		t.Fatalf("third recompute: %v", err)
	}
	if profile.FraudTrend != types.TrendDecreasing {
		t.Fatalf("want decreasing, got %q", profile.FraudTrend)
	}
}

func TestHeatmap_UsesStoredProfiles(t *testing.T) {
	countries := newFakeCountryRepo()
	countries.profiles["BD"] = types.CountryProfile{
		CountryCode: "BD", CountryName: "Bangladesh",
		FraudCount: 5, HighRiskCount: 1, CriticalCount: 1,
	}
	service := NewCountryService(countries, newFakeEntityRepo(), newFakeReportRepo())

	points, err := service.Heatmap(context.Background())
	if err != nil {
		t.Fatalf("heatmap: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("want 1 point, got %d", len(points))
	}
	point := points[0]
	if point.RiskScore != 10 {
		t.Fatalf("want risk score 10, got %d", point.RiskScore)
	}
	if point.Coordinates.Lat == 0 && point.Coordinates.Lon == 0 {
		t.Fatal("known country should have coordinates")
	}
}

func TestCountryName_FallsBackToCode(t *testing.T) {
	if CountryName("BD") != "Bangladesh" {
		t.Fatalf("unexpected name: %q", CountryName("BD"))
	}
	if CountryName("ZZ") != "ZZ" {
		t.Fatalf("unknown codes should fall back to the code, got %q", CountryName("ZZ"))
	}
}
