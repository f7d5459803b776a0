package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFragment(t *testing.T) {
	out, err := FromFragment(`<p>Well kept <b>cruiser</b>.</p><p><img src="https://x.test/a.jpg" alt="hull"></p><p>New sails 2019.</p>`)
	require.NoError(t, err)
	assert.Equal(t, "Well kept **cruiser**.\nNew sails 2019.", out)
}

func TestClean_DropsImageLinesAndInvisibleRunes(t *testing.T) {
	in := "  first\u200B line \n\n![photo](https://x.test/p.jpg)\n\nsecond\x07 line"
	assert.Equal(t, "first line\nsecond line", Clean(in))
}
