package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khoahotran/linkgraph/internal/domain/profile"
	"github.com/khoahotran/linkgraph/internal/ingest/export"
)

func connRec(slug string) export.ConnectionRecord {
	return export.ConnectionRecord{
		FirstName: "Alan",
		LastName:  "Turing",
		URL:       "https://www.linkedin.com/in/" + slug,
		Slug:      slug,
		Company:   strp("Bletchley Park"),
		Position:  strp("Cryptanalyst"),
	}
}

func TestResolve_CreatesShadowWithDerivedHeadline(t *testing.T) {
	h := newHarness()

	p, outcome, err := h.resolver.Resolve(context.Background(), connRec("alan"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
	assert.True(t, p.IsShadow)
	assert.Nil(t, p.AccountID)
	require.NotNil(t, p.Headline)
	assert.Equal(t, "Cryptanalyst at Bletchley Park", *p.Headline)
	assert.Equal(t, "alan", *p.LinkedInSlug)
}

func TestResolve_NoHeadlineWithoutBothParts(t *testing.T) {
	h := newHarness()
	rec := connRec("alan")
	rec.Company = nil

	p, _, err := h.resolver.Resolve(context.Background(), rec)
	require.NoError(t, err)
	assert.Nil(t, p.Headline)
}

func TestResolve_EnrichmentNeverOverwrites(t *testing.T) {
	h := newHarness()
	existing := h.store.AddProfile(profile.Profile{
		LinkedInSlug: strp("alan"),
		IsShadow:     true,
		Headline:     strp("Mathematician"),
	})

	p, outcome, err := h.resolver.Resolve(context.Background(), connRec("alan"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeEnriched, outcome)
	assert.Equal(t, existing.ID, p.ID)
	assert.Equal(t, "Mathematician", *p.Headline)
	assert.Equal(t, "Alan", *p.FirstName)
	assert.Equal(t, "Turing", *p.LastName)

	stored, err := h.store.Profiles().FindByID(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mathematician", *stored.Headline)
}

func TestResolve_FullShadowIsLeftAlone(t *testing.T) {
	h := newHarness()
	h.store.AddProfile(profile.Profile{
		LinkedInSlug: strp("alan"),
		IsShadow:     true,
		FirstName:    strp("A."),
		LastName:     strp("T."),
		Headline:     strp("Mathematician"),
	})
	before := h.store.Writes

	p, outcome, err := h.resolver.Resolve(context.Background(), connRec("alan"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)
	assert.Equal(t, "A.", *p.FirstName)
	assert.Equal(t, before, h.store.Writes)
}

func TestResolve_RealProfileIsNeverMutated(t *testing.T) {
	h := newHarness()
	real := h.store.AddProfile(profile.Profile{
		AccountID:    strp("acct-1"),
		LinkedInSlug: strp("alan"),
	})

	p, outcome, err := h.resolver.Resolve(context.Background(), connRec("alan"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)
	assert.Equal(t, real.ID, p.ID)
	assert.Nil(t, p.FirstName)
	assert.Nil(t, p.Headline)
	assert.Equal(t, 0, h.store.Writes)
}

func TestResolve_ShadowInsertRace(t *testing.T) {
	h := newHarness()
	var competitor profile.Profile
	h.store.BeforeShadowInsert = func(slug string) {
		h.store.BeforeShadowInsert = nil
		competitor = h.store.AddProfile(profile.Profile{LinkedInSlug: strp(slug), IsShadow: true})
	}

	p, outcome, err := h.resolver.Resolve(context.Background(), connRec("alan"))
	require.NoError(t, err)
	assert.Equal(t, competitor.ID, p.ID)
	assert.Equal(t, OutcomeEnriched, outcome)

	count := 0
	for _, q := range h.store.AllProfiles() {
		if q.LinkedInSlug != nil && *q.LinkedInSlug == "alan" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
