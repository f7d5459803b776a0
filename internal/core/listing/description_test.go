package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDescription(t *testing.T) {
	page := `<html><body>
<details><summary>Specifications</summary><div class="data-html"><p>LOA 42 ft, beam 13 ft, draft 5 ft</p></div></details>
<details><summary> Description </summary>
<div class="data-html"><p>Well kept <b>cruiser</b>.</p><p>New sails 2019, rebuilt engine.</p></div>
</details></body></html>`

	got, err := ExtractDescription(page)
	require.NoError(t, err)
	assert.Equal(t, "Well kept **cruiser**.\nNew sails 2019, rebuilt engine.", got)
}

func TestExtractDescription_SkipsPlaceholders(t *testing.T) {
	page := `<details><summary>Description</summary><div class="data-html">TBD</div></details>`
	got, err := ExtractDescription(page)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtractDescription_NoAccordion(t *testing.T) {
	got, err := ExtractDescription(`<html><body><p>nothing here</p></body></html>`)
	require.NoError(t, err)
	assert.Empty(t, got)
}
