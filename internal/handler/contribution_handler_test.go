package handler

import (
	"net/http"
	"testing"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContributionLifecycle(t *testing.T) {
	f := newHandlerFixture(t)
	p := f.currentPeriod(t, domain.PeriodKindStandard, domain.PeriodStateActive)

	body := `{"categoryId":"` + f.fixed.Savings.String() + `","name":"Refund","amount":"75.25","isFixed":true,"recordedAt":"2030-01-05"}`
	c, rec := newRequest(http.MethodPost, "/api/v1/periods/"+p.ID.String()+"/contributions", body, f.owner, p.ID.String())
	require.NoError(t, f.contribution.CreateContribution(c))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created ContributionResponse
	decode(t, rec, &created)
	assert.Equal(t, "75.25", created.Amount)
	assert.True(t, created.IsFixed)
	assert.Equal(t, "2030-01-05T00:00:00Z", created.RecordedAt)

	c, rec = newRequest(http.MethodGet, "/api/v1/periods/"+p.ID.String()+"/contributions?isFixed=true", "", f.owner, p.ID.String())
	require.NoError(t, f.contribution.ListContributions(c))
	var listed []ContributionResponse
	decode(t, rec, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	c, rec = newRequest(http.MethodPut, "/api/v1/contributions/"+created.ID, `{"name":"Tax refund"}`, f.owner, created.ID)
	require.NoError(t, f.contribution.UpdateContribution(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated ContributionResponse
	decode(t, rec, &updated)
	assert.Equal(t, "Tax refund", updated.Name)

	c, rec = newRequest(http.MethodDelete, "/api/v1/contributions/"+created.ID, "", f.owner, created.ID)
	require.NoError(t, f.contribution.DeleteContribution(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	c, rec = newRequest(http.MethodGet, "/api/v1/contributions/"+created.ID, "", f.owner, created.ID)
	require.NoError(t, f.contribution.GetContribution(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, []string{"contribution.created", "contribution.updated", "contribution.deleted"}, f.publisher.Types())
}

func TestListContributions_InvalidFilter(t *testing.T) {
	f := newHandlerFixture(t)
	p := f.currentPeriod(t, domain.PeriodKindStandard, domain.PeriodStateActive)

	c, rec := newRequest(http.MethodGet, "/api/v1/periods/"+p.ID.String()+"/contributions?isFixed=maybe", "", f.owner, p.ID.String())
	require.NoError(t, f.contribution.ListContributions(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newRequest(http.MethodGet, "/api/v1/periods/"+p.ID.String()+"/contributions?categoryId=nope", "", f.owner, p.ID.String())
	require.NoError(t, f.contribution.ListContributions(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateContribution_UnknownPeriod(t *testing.T) {
	f := newHandlerFixture(t)
	id := uuid.New().String()

	body := `{"categoryId":"` + f.fixed.Savings.String() + `","name":"Refund","amount":"10"}`
	c, rec := newRequest(http.MethodPost, "/api/v1/periods/"+id+"/contributions", body, f.owner, id)
	require.NoError(t, f.contribution.CreateContribution(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCategories_ProvisionsDefaults(t *testing.T) {
	f := newHandlerFixture(t)
	owner := uuid.New()

	c, rec := newRequest(http.MethodGet, "/api/v1/categories", "", owner, "")
	require.NoError(t, f.category.GetCategories(c))

	require.Equal(t, http.StatusOK, rec.Code)
	var response []CategoryResponse
	decode(t, rec, &response)
	require.Len(t, response, len(domain.DefaultCategories))
	for i, d := range domain.DefaultCategories {
		assert.Equal(t, string(d.Slug), response[i].Slug)
		assert.Equal(t, d.HasGoal, response[i].HasGoal)
	}
}
