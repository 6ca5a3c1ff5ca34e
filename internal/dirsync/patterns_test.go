package dirsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldInclude(t *testing.T) {
	tests := []struct {
		name    string
		relPath string
		include []string
		exclude []string
		want    bool
	}{
		{name: "no patterns includes everything", relPath: "a/b.txt", want: true},
		{name: "include match", relPath: "a.log", include: []string{"*.log"}, want: true},
		{name: "include miss", relPath: "a.txt", include: []string{"*.log"}, want: false},
		{name: "exclude match", relPath: "a.tmp", exclude: []string{"*.tmp"}, want: false},
		{
			name:    "exclude beats include",
			relPath: "a.log",
			include: []string{"*.log"},
			exclude: []string{"a.*"},
			want:    false,
		},
		{name: "directory pattern", relPath: ".git/config", exclude: []string{".git/"}, want: false},
		{name: "directory pattern exact", relPath: ".git", exclude: []string{".git/"}, want: false},
		{name: "directory pattern sibling", relPath: ".github/ci.yml", exclude: []string{".git/"}, want: true},
		{name: "recursive wildcard", relPath: "a/b/c.log", include: []string{"**.log"}, want: true},
		{name: "recursive with prefix", relPath: "logs/2024/app.log", include: []string{"logs/**"}, want: true},
		{name: "recursive prefix miss", relPath: "data/app.log", include: []string{"logs/**"}, want: false},
		{
			name:    "recursive prefix and suffix",
			relPath: "src/pkg/main.go",
			include: []string{"src/**.go"},
			want:    true,
		},
		{name: "plain glob does not cross separators", relPath: "a/b.log", include: []string{"*.log"}, want: false},
		{name: "recursive glob suffix", relPath: "a/b.txt", include: []string{"**/*.txt"}, want: true},
		{name: "recursive glob suffix at root", relPath: "b.txt", include: []string{"**/*.txt"}, want: true},
		{name: "recursive glob suffix miss", relPath: "a/b.log", include: []string{"**/*.txt"}, want: false},
		{name: "recursive glob deep", relPath: "a/b/c/d.txt", include: []string{"**/*.txt"}, want: true},
		{
			name:    "recursive glob multi-segment suffix",
			relPath: "src/a/b/testdata/x.golden",
			include: []string{"src/**/testdata/*.golden"},
			want:    true,
		},
		{
			name:    "recursive glob multi-segment suffix miss",
			relPath: "src/a/b/fixtures/x.golden",
			include: []string{"src/**/testdata/*.golden"},
			want:    false,
		},
		{name: "recursive exclude glob", relPath: "a/b/cache.tmp", exclude: []string{"**/*.tmp"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldInclude(tt.relPath, tt.include, tt.exclude))
		})
	}
}

func TestValidatePatterns(t *testing.T) {
	require.NoError(t, validatePatterns(nil))
	require.NoError(t, validatePatterns([]string{"*.log", "logs/**", ".git/"}))

	err := validatePatterns([]string{"[unclosed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[unclosed")
}

func TestJoinKey(t *testing.T) {
	assert.Equal(t, "a/b.txt", joinKey("", "a/b.txt"))
	assert.Equal(t, "site/a.txt", joinKey("site", "a.txt"))
	assert.Equal(t, "site/a.txt", joinKey("site/", "a.txt"))
}
