package ukleg

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

const feed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Search results</title>
  <entry>
    <id>http://www.legislation.gov.uk/id/ukpga/2018/12</id>
    <title>Data Protection Act 2018</title>
    <link rel="alternate" href="http://www.legislation.gov.uk/ukpga/2018/12/contents"/>
    <link rel="self" href="http://www.legislation.gov.uk/ukpga/2018/12"/>
    <updated>2018-05-23T00:00:00Z</updated>
    <summary>An Act to make provision for the regulation of the processing of information relating to individuals.</summary>
  </entry>
  <entry>
    <id>urn:uuid:odd</id>
    <title></title>
    <link rel="alternate" href="/uksi/2019/419"/>
  </entry>
</feed>`

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/all/data.feed", r.URL.Path)
		assert.Equal(t, "data protection", r.URL.Query().Get("title"))
		assert.Equal(t, "application/atom+xml", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	docs, err := New(sourcetest.Options(srv.URL)...).Search(context.Background(), legal.Query{Keyword: "data protection"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	sourcetest.CheckDocuments(t, docs, TextCap)

	assert.Equal(t, "http://www.legislation.gov.uk/ukpga/2018/12", docs[0].SourceURL)
	assert.Equal(t, map[string]string{"type": "ukpga", "year": "2018", "number": "12"}, docs[0].Metadata)
	require.NotNil(t, docs[0].PublicationDate)
	assert.Equal(t, 2018, docs[0].PublicationDate.Year())

	assert.Equal(t, "Untitled legislation", docs[1].Title)
	assert.Equal(t, srv.URL+"/uksi/2019/419", docs[1].SourceURL)
	assert.Equal(t, "legislation", docs[1].Metadata["type"])
}

func TestMalformedFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not a feed"))
	}))
	defer srv.Close()
	_, err := New(sourcetest.Options(srv.URL)...).Search(context.Background(), legal.Query{Keyword: "x"})
	assert.Equal(t, legal.KindExtraction, legal.KindOf(err))
}
