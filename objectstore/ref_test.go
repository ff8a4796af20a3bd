package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConductionNL/taalhuizen-service-sub000/errors"
)

func TestEntityRef_Canonical(t *testing.T) {
	tests := []struct {
		name     string
		ref      EntityRef
		expected string
	}{
		{
			"derived from collection and id",
			NewRef("edu", "participations", "P1"),
			"/participations/P1",
		},
		{
			"component does not change identity",
			NewRef("eav", "participations", "P1"),
			"/participations/P1",
		},
		{
			"explicit canonical wins",
			EntityRef{Collection: "participations", ID: "P1", CanonicalURL: "/participations/legacy-p1"},
			"/participations/legacy-p1",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, test.ref.Canonical())
		})
	}
}

func TestEntityRef_Equal(t *testing.T) {
	// Same logical entity addressed via different components
	a := NewRef("edu", "learning_needs", "LN1")
	b := NewRef("eav", "learning_needs", "LN1")
	assert.True(t, a.Equal(b))

	c := NewRef("edu", "learning_needs", "LN2")
	assert.False(t, a.Equal(c))
}

func TestEntityRef_Validate(t *testing.T) {
	require.NoError(t, NewRef("edu", "participations", "P1").Validate())

	err := EntityRef{Collection: "participations"}.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMalformedRef)

	err = EntityRef{StoreKind: "bogus", Collection: "x", ID: "1"}.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMalformedRef)
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		expected  EntityRef
		expectErr bool
	}{
		{
			"canonical path",
			"/participations/P1",
			EntityRef{StoreKind: StoreEAV, Collection: "participations", ID: "P1"},
			false,
		},
		{
			"component scoped path",
			"/edu/participations/P1",
			EntityRef{StoreKind: StoreEAV, Component: "edu", Collection: "participations", ID: "P1"},
			false,
		},
		{
			"full url",
			"https://eav.example.org/edu/participations/P1",
			EntityRef{StoreKind: StoreEAV, Component: "edu", Collection: "participations", ID: "P1"},
			false,
		},
		{"too few segments", "/P1", EntityRef{}, true},
		{"too many segments", "/a/b/c/d", EntityRef{}, true},
		{"empty", "", EntityRef{}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ref, err := ParseRef(test.raw)
			if test.expectErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrMalformedRef)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expected, ref)
		})
	}
}

func TestParseRef_CanonicalRoundTrip(t *testing.T) {
	ref, err := ParseRef("https://eav.example.org/edu/participations/P1")
	require.NoError(t, err)
	assert.Equal(t, "/participations/P1", ref.Canonical())
}
