package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogResolvesEveryTag(t *testing.T) {
	c := Default()

	tests := []struct {
		name        string
		tag         string
		wantImage   string
		wantTreatFn bool
	}{
		{"c", "c", "gcc:13", true},
		{"cpp", "cpp", "gcc:13", true},
		{"python", "python", "python", false},
		{"java", "java", "openjdk:17", true},
		{"node", "node", "node", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := c.Resolve(tt.tag)
			require.NoError(t, err)
			assert.Equal(t, tt.wantImage, d.Image)
			assert.Equal(t, tt.wantTreatFn, d.TreatStderrAsFailure)
		})
	}
}

func TestResolveUnknownTagReturnsNotFound(t *testing.T) {
	c := Default()

	_, err := c.Resolve("brainfuck")
	require.Error(t, err)

	var notFound *ErrNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "brainfuck", notFound.Tag)
}

func TestResolveIsCaseAndWhitespaceInsensitive(t *testing.T) {
	c := Default()

	d, err := c.Resolve("  Python ")
	require.NoError(t, err)
	assert.Equal(t, "python", d.Tag)
}

func TestExpandReplacesAllOccurrences(t *testing.T) {
	d := Descriptor{CommandTemplate: "{file} {file} {output}"}

	got := d.Expand(Binding{File: "a.c", Output: "a.out"})

	assert.Equal(t, "a.c a.c a.out", got)
}

func TestExpandJavaTemplate(t *testing.T) {
	c := Default()
	d, err := c.Resolve("java")
	require.NoError(t, err)

	got := d.Expand(Binding{File: "Greeter.java", ClassName: "Greeter"})

	assert.Equal(t, "javac Greeter.java && java Greeter", got)
}

func TestNewPanicsOnUnknownPlaceholder(t *testing.T) {
	assert.Panics(t, func() {
		New([]Descriptor{{Tag: "bogus", CommandTemplate: "run {weird}"}})
	})
}

func TestTagsListsEveryLanguage(t *testing.T) {
	c := Default()

	tags := c.Tags()

	assert.ElementsMatch(t, []string{"c", "cpp", "python", "java", "node"}, tags)
}
