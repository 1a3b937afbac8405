package format

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwhswenson/codemodel"
)

func TestSortImports(t *testing.T) {
	src := "from os import path\nimport sys\nfrom os import sep, path\nimport json, sys\n\n\n\nx = 1\n"
	out, err := SortImports{}.Format(src)
	require.NoError(t, err)
	assert.Equal(t, "import json\nimport sys\nfrom os import path, sep\n\nx = 1\n", out)
}

func TestSortImports_NoImports(t *testing.T) {
	src := "x = 1\nimport os\n"
	out, err := SortImports{}.Format(src)
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestSortImports_OnlyImports(t *testing.T) {
	out, err := SortImports{}.Format("import os.path\nimport math\n")
	require.NoError(t, err)
	assert.Equal(t, "import math\nimport os.path\n", out)
}

func TestStyle(t *testing.T) {
	src := "import   os.path\n" +
		"x=[1,2 ,3]\n" +
		"\n\n\n\n" +
		"# the total\n" +
		"total = x[0]+x[1]  # sum\n" +
		"if total>2:\n" +
		"    y = {'a':total}\n" +
		"# done\n"
	want := "import os.path\n" +
		"x = [1, 2, 3]\n" +
		"\n\n" +
		"# the total\n" +
		"total = x[0] + x[1]  # sum\n" +
		"if total > 2:\n" +
		"    y = {'a': total}\n" +
		"# done\n"
	out, err := Style{}.Format(src)
	require.NoError(t, err)
	assert.Equal(t, want, out)
}

func TestStyle_Idempotent(t *testing.T) {
	src := "import math\n\nr = math.sqrt(4)\n\n\nprint(r)\n"
	once, err := Style{}.Format(src)
	require.NoError(t, err)
	twice, err := Style{}.Format(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
	assert.Equal(t, src, once)
}

func TestStyle_SyntaxError(t *testing.T) {
	_, err := Style{}.Format("x = (1,\n")
	assert.True(t, errors.Is(err, codemodel.ErrParse))
}

func TestApply(t *testing.T) {
	out, err := Apply("import sys\nimport   os\nx=1\n", Defaults())
	require.NoError(t, err)
	assert.Equal(t, "import os\nimport sys\n\nx = 1\n", out)

	out, err = Apply("x=1\n", nil)
	require.NoError(t, err)
	assert.Equal(t, "x=1\n", out)

	failing := Named("broken", func(string) (string, error) { return "", errors.New("boom") })
	_, err = Apply("x = 1\n", []codemodel.FormatPass{failing})
	require.Error(t, err)
	assert.ErrorIs(t, err, codemodel.ErrFormat)
	assert.Contains(t, err.Error(), "broken")
}

func TestByName(t *testing.T) {
	p, err := ByName("isort")
	require.NoError(t, err)
	assert.Equal(t, "isort", p.Name())

	_, err = ByName("black")
	assert.ErrorIs(t, err, codemodel.ErrConfiguration)
	assert.Equal(t, []string{"isort", "style"}, Names())
}
