package model

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
)

func TestLeadStatusCoarse(t *testing.T) {
    assert.Equal(t, CoarseOpen, LeadStatusNew.Coarse())
    for _, s := range []LeadStatus{LeadStatusInProcess, LeadStatusSiteVisit, LeadStatusSiteVisitCompleted, LeadStatusEstimateSent} {
        assert.Equal(t, CoarseInProcess, s.Coarse(), s)
    }
    assert.Equal(t, CoarseWon, LeadStatusWon.Coarse())
    assert.Equal(t, CoarseLost, LeadStatusLost.Coarse())
    assert.Equal(t, []LeadStatus{LeadStatusWon}, CoarseWon.Members())
    assert.Len(t, CoarseInProcess.Members(), 4)
}

func TestParseStatuses(t *testing.T) {
    s, ok := ParseLeadStatus(" SiteVisit ")
    assert.True(t, ok)
    assert.Equal(t, LeadStatusSiteVisit, s)

    _, ok = ParseLeadStatus("OPEN")
    assert.False(t, ok)

    c, ok := ParseCoarseStatus("won")
    assert.True(t, ok)
    assert.Equal(t, CoarseWon, c)

    _, ok = ParseCoarseStatus("leadwon")
    assert.False(t, ok)
}

func TestLeadPatchApplyTo(t *testing.T) {
    visit := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
    next := time.Date(2024, 3, 22, 0, 0, 0, 0, time.UTC)
    l := Lead{Name: "Asha", City: "Pune", SiteVisitDate: &visit, NextFollowUpDate: &next, Priority: PriorityLow}

    assert.True(t, LeadPatch{}.Empty())

    city := "Nashik"
    won := LeadStatusWon
    high := PriorityHigh
    p := LeadPatch{City: &city, LeadStatus: &won, Priority: &high, ClearNextFollowUp: true}
    assert.False(t, p.Empty())
    p.ApplyTo(&l)

    assert.Equal(t, "Asha", l.Name)
    assert.Equal(t, "Nashik", l.City)
    assert.Equal(t, LeadStatusWon, l.LeadStatus)
    assert.Equal(t, PriorityHigh, l.Priority)
    assert.Nil(t, l.NextFollowUpDate)
    assert.Equal(t, &visit, l.SiteVisitDate)
}

func TestLeadPatchLastContactOnlyMovesForward(t *testing.T) {
    last := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
    l := Lead{LastContactDate: &last}

    earlier := last.Add(-72 * time.Hour)
    LeadPatch{LastContactDate: &earlier}.ApplyTo(&l)
    assert.True(t, l.LastContactDate.Equal(last))

    later := last.Add(24 * time.Hour)
    LeadPatch{LastContactDate: &later}.ApplyTo(&l)
    assert.True(t, l.LastContactDate.Equal(later))

    var fresh Lead
    LeadPatch{LastContactDate: &earlier}.ApplyTo(&fresh)
    assert.True(t, fresh.LastContactDate.Equal(earlier))
}
