package keys

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a", "a"},
		{"A", "a"},
		{" ", "space"},
		{"Spacebar", "space"},
		{"Esc", "escape"},
		{"Return", "enter"},
		{"ArrowLeft", "arrowleft"},
		{"left", "arrowleft"},
		{"F5", "f5"},
		{"", ""},
		{"  j ", "j"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestSetContains(t *testing.T) {
	assert.False(t, None().Contains("a"))
	assert.True(t, All().Contains("a"))
	assert.True(t, All().Contains("escape"))

	s := Of("F", "j", " ")
	assert.True(t, s.Contains("f"))
	assert.True(t, s.Contains("J"))
	assert.True(t, s.Contains("space"))
	assert.False(t, s.Contains("k"))

	assert.True(t, Of().IsNone())
	assert.False(t, s.IsNone())
	assert.True(t, All().IsAll())
}

func TestSetWithout(t *testing.T) {
	tests := []struct {
		name     string
		s, other Set
		in, out  []string
		none     bool
	}{
		{name: "list minus list", s: Of("a", "b"), other: Of("b"), in: []string{"a"}, out: []string{"b"}},
		{name: "list minus none", s: Of("a"), other: None(), in: []string{"a"}},
		{name: "list minus all", s: Of("a", "b"), other: All(), none: true},
		{name: "none minus list", s: None(), other: Of("a"), none: true},
		{name: "all minus list", s: All(), other: Of("a"), in: []string{"b", "space"}, out: []string{"a"}},
		{name: "all minus all", s: All(), other: All(), none: true},
		{name: "list minus all except", s: Of("a", "b"), other: All().Without(Of("a")), in: []string{"a"}, out: []string{"b"}},
		{name: "all except minus all except", s: All().Without(Of("a")), other: All().Without(Of("a", "b")), in: []string{"b"}, out: []string{"a", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.s.Without(tt.other)
			assert.Equal(t, tt.none, got.IsNone())
			for _, k := range tt.in {
				assert.True(t, got.Contains(k), "expected %q in %s", k, got)
			}
			for _, k := range tt.out {
				assert.False(t, got.Contains(k), "expected %q not in %s", k, got)
			}
		})
	}
}

func TestParse(t *testing.T) {
	s, err := Parse("all")
	require.NoError(t, err)
	assert.True(t, s.IsAll())

	s, err = Parse("NONE")
	require.NoError(t, err)
	assert.True(t, s.IsNone())

	s, err = Parse("f, j,space")
	require.NoError(t, err)
	assert.Equal(t, []string{"f", "j", "space"}, s.Names())

	_, err = Parse("f,,j")
	assert.ErrorIs(t, err, ErrInvalidSet)
}

func TestSetYAML(t *testing.T) {
	var doc struct {
		A Set `yaml:"a"`
		B Set `yaml:"b"`
		C Set `yaml:"c"`
	}
	err := yaml.Unmarshal([]byte("a: all\nb: none\nc: [f, J]\n"), &doc)
	require.NoError(t, err)
	assert.True(t, doc.A.IsAll())
	assert.True(t, doc.B.IsNone())
	assert.Equal(t, []string{"f", "j"}, doc.C.Names())

	err = yaml.Unmarshal([]byte("a: sometimes\n"), &doc)
	assert.ErrorIs(t, err, ErrInvalidSet)

	out, err := yaml.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), "a: all")
}

func TestSetJSON(t *testing.T) {
	var s Set
	require.NoError(t, json.Unmarshal([]byte(`["x","Y"]`), &s))
	assert.Equal(t, []string{"x", "y"}, s.Names())

	require.NoError(t, json.Unmarshal([]byte(`"all"`), &s))
	assert.True(t, s.IsAll())

	assert.ErrorIs(t, json.Unmarshal([]byte(`"x"`), &s), ErrInvalidSet)

	b, err := json.Marshal(Of("b", "a"))
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(b))

	_, err = json.Marshal(All().Without(Of("a")))
	assert.Error(t, err)
}
