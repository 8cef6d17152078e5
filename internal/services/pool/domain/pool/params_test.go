package pool

import (
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
)

func validParams() Params {
	return Params{
		Issuer:          "issuer",
		Target:          1000,
		MinContribution: 100,
		MaxContribution: 800,
		Deadline:        testStart.Add(time.Hour),
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Params)
		wantErr error
	}{
		{"valid", func(*Params) {}, nil},
		{"min equals max", func(p *Params) { p.MinContribution, p.MaxContribution = 500, 500 }, nil},
		{"missing issuer", func(p *Params) { p.Issuer = " " }, ledger.ErrInvalidArgument},
		{"zero target", func(p *Params) { p.Target = 0 }, ledger.ErrInvalidState},
		{"min above max", func(p *Params) { p.MinContribution = 900 }, ledger.ErrInvalidState},
		{"zero max", func(p *Params) { p.MinContribution, p.MaxContribution = 0, 0 }, ledger.ErrInvalidState},
		{"hard cap below target", func(p *Params) { p.HardCap = 999 }, ledger.ErrInvalidState},
		{"deadline now", func(p *Params) { p.Deadline = testStart }, ledger.ErrInvalidState},
		{"deadline past", func(p *Params) { p.Deadline = testStart.Add(-time.Hour) }, ledger.ErrInvalidState},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			params := validParams()
			tc.mutate(&params)
			err := params.Normalize().Validate(testStart)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestNewDefaultsTreasury(t *testing.T) {
	p := New(3, validParams(), testStart)
	if p.Treasury != "issuer" {
		t.Fatalf("expected treasury to default to issuer, got %q", p.Treasury)
	}
	if p.Status != ledger.StatusOpen || p.ID != 3 {
		t.Fatalf("unexpected pool %+v", p)
	}

	params := validParams()
	params.Treasury = " cellar-dao "
	if got := New(3, params, testStart).Treasury; got != "cellar-dao" {
		t.Fatalf("expected explicit treasury, got %q", got)
	}
}

func TestCheckConservationDetectsDrift(t *testing.T) {
	p := New(1, validParams(), testStart)
	p.TotalRaised = 500
	p.TotalShares = 500
	if err := CheckConservation(p, 500, 500); err != nil {
		t.Fatalf("expected balanced pool, got %v", err)
	}
	if err := CheckConservation(p, 499, 500); !errors.Is(err, ledger.ErrInvariant) {
		t.Fatalf("expected vault drift to be detected, got %v", err)
	}
	if err := CheckConservation(p, 500, 501); !errors.Is(err, ledger.ErrInvariant) {
		t.Fatalf("expected share drift to be detected, got %v", err)
	}
}
