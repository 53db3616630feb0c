package rdf

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T) *Graph {
	t.Helper()
	data, err := os.ReadFile("testdata/thesis.json")
	require.NoError(t, err)
	g, err := ParseExpanded(data)
	require.NoError(t, err)
	return g
}

func TestParseExpanded_Nodes(t *testing.T) {
	g := loadFixture(t)
	assert.Equal(t, 3, g.Len())

	obj, ok := g.FirstOfType(PCDMObject)
	require.True(t, ok)
	assert.Equal(t, "http://repo.example.com/rest/theses/1", obj.ID)
	assert.Equal(t, []string{"Title 1", "Title 2"}, obj.Values(DCTermsTitle))
	assert.Equal(t, "Baz, Foo", obj.Value(RDAAdvisor))
	assert.Equal(t, "2002", obj.Value(DCTermsIssued))
	assert.Equal(t, []string{"http://handle.org/1"}, obj.Values(BIBOHandle))

	files := obj.Objects(PCDMHasFile)
	require.Len(t, files, 2)
	txt, ok := g.Node(files[1])
	require.True(t, ok)
	assert.True(t, txt.HasType(PCDMFile))
	assert.Equal(t, "text/plain", txt.Value(EBUHasMimeType))
}

func TestParseExpanded_LiteralDetails(t *testing.T) {
	g := loadFixture(t)
	obj, _ := g.Node("http://repo.example.com/rest/theses/1")

	titles := obj.Terms(DCTermsTitle)
	require.Len(t, titles, 2)
	assert.Equal(t, "en", titles[1].Language)
	assert.False(t, titles[1].IsIRI())

	copyright := obj.Terms(DCTermsDateCopyrighted)
	require.Len(t, copyright, 1)
	assert.Equal(t, "http://www.w3.org/2001/XMLSchema#gYear", copyright[0].Datatype)
}

func TestParseExpanded_Forms(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantIDs []string
	}{
		{
			name:    "compact single node",
			input:   `{"@id": "mock://example.com/1", "@type": "http://pcdm.org/models#Object"}`,
			wantIDs: []string{"mock://example.com/1"},
		},
		{
			name:    "graph container",
			input:   `{"@context": {}, "@graph": [{"@id": "a"}, {"@id": "b"}]}`,
			wantIDs: []string{"a", "b"},
		},
		{
			name:    "embedded node lifted",
			input:   `[{"@id": "a", "http://www.w3.org/ns/ldp#contains": [{"@id": "a/1", "@type": ["http://pcdm.org/models#Object"]}]}]`,
			wantIDs: []string{"a", "a/1"},
		},
		{
			name:    "repeated node merged",
			input:   `[{"@id": "a", "@type": ["x"]}, {"@id": "a", "@type": ["y"]}]`,
			wantIDs: []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := ParseExpanded([]byte(tt.input))
			require.NoError(t, err)
			var ids []string
			for _, n := range g.Nodes() {
				ids = append(ids, n.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestParseExpanded_MergesTypes(t *testing.T) {
	g, err := ParseExpanded([]byte(`[{"@id": "a", "@type": ["x"]}, {"@id": "a", "@type": ["y", "x"]}]`))
	require.NoError(t, err)
	n, _ := g.Node("a")
	assert.Equal(t, []string{"x", "y"}, n.Types)
}

func TestParseExpanded_Invalid(t *testing.T) {
	for _, input := range []string{
		`not json`,
		`"just a string"`,
		`[1, 2]`,
		`[{"@id": "a", "p": [null]}]`,
	} {
		_, err := ParseExpanded([]byte(input))
		assert.ErrorIs(t, err, ErrInvalidDocument, input)
	}
}
