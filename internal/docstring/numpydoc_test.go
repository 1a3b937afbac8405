package docstring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwhswenson/codemodel"
)

const exampleDoc = `Something.

    Parameters
    ----------
    a : int
        this is a
    b : float
        this is b
        over two lines
    *args, **kwargs : str
        extras

    Returns
    -------
    bool
        whether it worked
    `

func TestParse(t *testing.T) {
	d := Parse(exampleDoc)
	assert.Equal(t, "Something.", d.Summary)
	require.Len(t, d.Sections["Parameters"], 3)
	assert.Equal(t, Field{Name: "b", Type: "float", Desc: "this is b over two lines"}, d.Sections["Parameters"][1])
	require.Len(t, d.Sections["Returns"], 1)
	assert.Equal(t, "bool", d.Sections["Returns"][0].Name)
	assert.Equal(t, "whether it worked", d.Sections["Returns"][0].Desc)
}

func TestNumpydoc_Extract(t *testing.T) {
	types, descs := Numpydoc{}.Extract(exampleDoc, []string{"a", "b"})
	assert.Equal(t, []string{"int", "float"}, types)
	assert.Equal(t, []string{"this is a", "this is b over two lines"}, descs)
}

func TestNumpydoc_ExtractMissing(t *testing.T) {
	types, descs := Numpydoc{}.Extract(exampleDoc, []string{"a", "c", "args", "kwargs"})
	assert.Equal(t, []string{"int", codemodel.UnknownType, "str", "str"}, types)
	assert.Equal(t, []string{"this is a", "", "extras", "extras"}, descs)

	types, descs = Numpydoc{}.Extract("No sections here.", []string{"x"})
	assert.Equal(t, []string{codemodel.UnknownType}, types)
	assert.Equal(t, []string{""}, descs)
}

func TestNumpydoc_OtherSection(t *testing.T) {
	doc := "Summary.\n\nOther Parameters\n----------------\nverbose : bool\n    chatty\n"
	types, _ := Numpydoc{Section: "Other Parameters"}.Extract(doc, []string{"verbose"})
	assert.Equal(t, []string{"bool"}, types)
}

func TestNumpydoc_IsDocExtractor(t *testing.T) {
	var _ codemodel.DocExtractor = Numpydoc{}
}
