package datagov

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/sources/sourcetest"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/action/package_search", r.URL.Path)
		assert.Equal(t, "broadband", r.URL.Query().Get("q"))
		assert.Equal(t, "10", r.URL.Query().Get("rows"))
		_, _ = w.Write([]byte(`{"success":true,"result":{"count":1,"results":[{
			"id":"abc","name":"broadband-map","title":"National Broadband Map","notes":"Coverage  data.",
			"metadata_modified":"2024-03-01T10:11:12.654321","organization":{"title":"FCC"},
			"resources":[{"format":"csv"},{"format":"CSV"},{"format":"JSON"}],"tags":[{"name":"internet"}]}]}}`))
	}))
	defer srv.Close()

	docs, err := New(sourcetest.Options(srv.URL)...).Search(context.Background(), legal.Query{Keyword: "broadband"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	sourcetest.CheckDocuments(t, docs, TextCap)
	assert.Equal(t, "https://catalog.data.gov/dataset/broadband-map", docs[0].SourceURL)
	assert.Equal(t, "CSV,JSON", docs[0].Metadata["formats"])
	assert.Equal(t, "Coverage data.", docs[0].ExtractedText)
	require.NotNil(t, docs[0].PublicationDate)
	assert.Equal(t, 2024, docs[0].PublicationDate.Year())
}

func TestUnsuccessfulResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false}`))
	}))
	defer srv.Close()
	_, err := New(sourcetest.Options(srv.URL)...).Search(context.Background(), legal.Query{Keyword: "x"})
	assert.Equal(t, legal.KindUpstream, legal.KindOf(err))
}
