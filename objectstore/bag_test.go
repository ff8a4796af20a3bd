package objectstore

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertyBag_GetString(t *testing.T) {
	bag := PropertyBag{"name": "Aanbieder Taalles", "count": 3.0, "nil": nil}

	s, ok := bag.GetString("name")
	assert.True(t, ok)
	assert.Equal(t, "Aanbieder Taalles", s)

	_, ok = bag.GetString("count")
	assert.False(t, ok)

	_, ok = bag.GetString("nil")
	assert.False(t, ok)

	_, ok = bag.GetString("absent")
	assert.False(t, ok)
}

func TestPropertyBag_StringList(t *testing.T) {
	tests := []struct {
		name     string
		bag      PropertyBag
		expected []string
	}{
		{"absent treated as empty", PropertyBag{}, nil},
		{"nil treated as empty", PropertyBag{"refs": nil}, nil},
		{
			"json decoded list",
			PropertyBag{"refs": []any{"/learning_needs/LN1", "/learning_needs/LN2"}},
			[]string{"/learning_needs/LN1", "/learning_needs/LN2"},
		},
		{
			"native string list",
			PropertyBag{"refs": []string{"/participants/P1"}},
			[]string{"/participants/P1"},
		},
		{
			"non-string members skipped",
			PropertyBag{"refs": []any{"/participants/P1", 42, nil}},
			[]string{"/participants/P1"},
		},
		{"scalar is not a list", PropertyBag{"refs": "oops"}, nil},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := test.bag.StringList("refs")
			if diff := cmp.Diff(test.expected, got); diff != "" {
				t.Errorf("StringList mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPropertyBag_StringList_CopyIsolation(t *testing.T) {
	bag := PropertyBag{"refs": []string{"/a/1"}}
	list := bag.StringList("refs")
	list[0] = "/mutated/1"

	assert.Equal(t, []string{"/a/1"}, bag.StringList("refs"))
}

func TestPropertyBag_GetTime(t *testing.T) {
	bag := PropertyBag{
		"presenceEndDate": "2026-03-01",
		"createdAt":       "2026-03-01T10:30:00Z",
		"garbage":         "not a date",
	}

	d, ok := bag.GetTime("presenceEndDate")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), d)

	ts, ok := bag.GetTime("createdAt")
	require.True(t, ok)
	assert.Equal(t, 10, ts.Hour())

	_, ok = bag.GetTime("garbage")
	assert.False(t, ok)

	_, ok = bag.GetTime("absent")
	assert.False(t, ok)
}

func TestPropertyBag_Clone(t *testing.T) {
	original := PropertyBag{
		"name": "P1",
		"refs": []any{"/learning_needs/LN1"},
	}

	clone := original.Clone()
	clone["name"] = "changed"
	clone["refs"] = append(clone["refs"].([]any), "/learning_needs/LN2")

	name, _ := original.GetString("name")
	assert.Equal(t, "P1", name)
	assert.Len(t, original.StringList("refs"), 1)

	assert.Nil(t, PropertyBag(nil).Clone())
}

func TestPropertyBag_ContainsRef(t *testing.T) {
	bag := PropertyBag{"learningNeeds": []any{"/learning_needs/LN1"}}

	assert.True(t, bag.ContainsRef("learningNeeds", "/learning_needs/LN1"))
	assert.False(t, bag.ContainsRef("learningNeeds", "/learning_needs/LN2"))
	assert.False(t, bag.ContainsRef("absent", "/learning_needs/LN1"))
}

func TestPropertyBag_StoreFields(t *testing.T) {
	bag := PropertyBag{
		FieldID:   "P1",
		FieldSelf: "/eav/participants/8f3a",
	}

	id, ok := bag.ID()
	require.True(t, ok)
	assert.Equal(t, "P1", id)

	self, ok := bag.SelfURL()
	require.True(t, ok)
	assert.Equal(t, "/eav/participants/8f3a", self)
}
