package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/yashrajoria/catalog-import/services/common/errors"
	"github.com/yashrajoria/catalog-import/services/product-service/models"
)

func TestParseCandidate_StringsAndNumbers(t *testing.T) {
	r := ParseCandidate([]byte(`{"title":"Keyboard","price":159.99,"count":"20","extra":true}`))
	require.True(t, r.Ok())
	assert.Equal(t, models.Field{Raw: "Keyboard", Present: true}, r.Candidate.Title)
	assert.Equal(t, "159.99", r.Candidate.Price.Raw)
	assert.Equal(t, "20", r.Candidate.Count.Raw)
	assert.False(t, r.Candidate.Description.Present)
}

func TestParseCandidate_Failures(t *testing.T) {
	for _, body := range []string{
		``,
		`not json`,
		`["title"]`,
		`{"title":"x","price":{"amount":1}}`,
		`{"title":"x","count":true}`,
	} {
		r := ParseCandidate([]byte(body))
		assert.False(t, r.Ok(), body)
		assert.NotEmpty(t, r.Reason, body)
	}
}

func TestParseCandidate_NullIsAbsent(t *testing.T) {
	r := ParseCandidate([]byte(`{"title":"Lamp","description":null}`))
	require.True(t, r.Ok())
	assert.False(t, r.Candidate.Description.Present)
}

func candidate(body string) models.ImportCandidate {
	return ParseCandidate([]byte(body)).Candidate
}

func TestValidateCandidate(t *testing.T) {
	p, err := ValidateCandidate(candidate(`{"title":" Keyboard ","price":"159.99","count":"20"}`))
	require.NoError(t, err)
	assert.Equal(t, models.NewProduct{Title: "Keyboard", Description: models.DefaultDescription, Price: 159.99, Count: 20}, p)

	p, err = ValidateCandidate(candidate(`{"title":"Desk","description":"Oak","price":300,"count":0}`))
	require.NoError(t, err)
	assert.Equal(t, "Oak", p.Description)
	assert.Equal(t, 0, p.Count)

	p, err = ValidateCandidate(candidate(`{"title":"Desk","price":"1e2","count":"5.0"}`))
	require.NoError(t, err)
	assert.Equal(t, 100.0, p.Price)
	assert.Equal(t, 5, p.Count)
}

func TestValidateCandidate_Rejects(t *testing.T) {
	cases := map[string]string{
		`{"title":"Mouse"}`:                        "price is required",
		`{"price":"1","count":"1"}`:                "title is required",
		`{"title":"  ","price":"1","count":"1"}`:   "title is required",
		`{"title":"x","price":"","count":"1"}`:     "price is required",
		`{"title":"x","price":"abc","count":"1"}`:  "price is not a number",
		`{"title":"x","price":"NaN","count":"1"}`:  "price is not a number",
		`{"title":"x","price":"0","count":"1"}`:    "price must be greater than zero",
		`{"title":"x","price":"-5","count":"1"}`:   "price must be greater than zero",
		`{"title":"x","price":"1"}`:                "count is required",
		`{"title":"x","price":"1","count":"many"}`: "count is not a number",
		`{"title":"x","price":"1","count":"2.5"}`:  "count must be a whole number of at least zero",
		`{"title":"x","price":"1","count":-1}`:     "count must be a whole number of at least zero",
	}
	for body, reason := range cases {
		_, err := ValidateCandidate(candidate(body))
		var verr *apperrors.ValidationError
		if assert.ErrorAs(t, err, &verr, body) {
			assert.Equal(t, reason, verr.Reason, body)
		}
	}
}
