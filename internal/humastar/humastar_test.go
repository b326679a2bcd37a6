package humastar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginationLinks(t *testing.T) {
	base := "/api/v1/sources/assets/features"

	links := PageBody[int]{Total: 25, Offset: 10, Limit: 10}.PaginationLinks(base)
	assert.Equal(t, []string{
		`</api/v1/sources/assets/features?offset=0&limit=10>; rel="first"`,
		`</api/v1/sources/assets/features?offset=0&limit=10>; rel="prev"`,
		`</api/v1/sources/assets/features?offset=20&limit=10>; rel="next"`,
		`</api/v1/sources/assets/features?offset=20&limit=10>; rel="last"`,
	}, links)

	links = PageBody[int]{Total: 0, Offset: 0, Limit: 10}.PaginationLinks(base)
	assert.Equal(t, []string{
		`</api/v1/sources/assets/features?offset=0&limit=10>; rel="first"`,
		`</api/v1/sources/assets/features?offset=0&limit=10>; rel="last"`,
	}, links)

	assert.Nil(t, PageBody[int]{Total: 5}.PaginationLinks(base))
}

func TestSignals(t *testing.T) {
	in := SignalsInput{RawBody: []byte(`{"mode":"risk","index":3,"visible":true,"layerId":""}`)}
	s, err := in.Parse()
	require.NoError(t, err)

	assert.Equal(t, "risk", s.String("mode"))
	assert.Equal(t, 3, s.Int("index"))
	assert.True(t, s.Bool("visible"))
	assert.True(t, s.Has("layerId"))
	assert.False(t, s.Has("missing"))
	assert.Empty(t, s.String("index"))
	assert.Zero(t, s.Int("mode"))

	s, err = ParseSignals([]byte(`null`))
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = (&SignalsInput{RawBody: []byte(`{`)}).Parse()
	assert.ErrorContains(t, err, "Invalid request data")
}
