package slug

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Buy milk", "buy-milk"},
		{"punctuation runs collapse", "Write   report!!  (draft)", "write-report-draft"},
		{"leading and trailing separators", "--Hello--", "hello"},
		{"diacritics stripped", "Café Crème", "cafe-creme"},
		{"digits kept", "Q3 2024 review", "q3-2024-review"},
		{"only symbols", "!!!", ""},
		{"empty", "", ""},
		{"underscores are separators", "snake_case_title", "snake-case-title"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Make(tc.in))
		})
	}
}

func TestMake_TruncatesLongTitles(t *testing.T) {
	got := Make(strings.Repeat("ab ", 150))

	assert.LessOrEqual(t, len(got), MaxBaseLength)
	assert.False(t, strings.HasSuffix(got, "-"), "truncated slug must not end with a separator: %q", got)
}

func TestUnique_Pattern(t *testing.T) {
	pattern := regexp.MustCompile(`^buy-milk-[0-9a-z]{8}$`)

	got, err := Unique("Buy milk")
	require.NoError(t, err)
	assert.Regexp(t, pattern, got)
}

func TestUnique_SameTitleDiffers(t *testing.T) {
	first, err := Unique("Buy milk")
	require.NoError(t, err)
	second, err := Unique("Buy milk")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestUnique_EmptyBaseIsSuffixOnly(t *testing.T) {
	got, err := Unique("???")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-z]{8}$`), got)
}
