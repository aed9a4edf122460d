package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "bukit merah", CollapseWhitespace("  bukit   merah "))
	assert.Equal(t, "", CollapseWhitespace("   "))
	assert.Equal(t, "tampines", CollapseWhitespace("tampines"))
}

func TestDedupeAndTrimLower(t *testing.T) {
	got := DedupeAndTrimLower([]string{"  Nurse ", "teacher", "NURSE", "", "  "})
	assert.Equal(t, []string{"nurse", "teacher"}, got)

	var empty []string
	assert.Empty(t, DedupeAndTrimLower(empty))
}

func TestUniqueSorted(t *testing.T) {
	got := UniqueSorted([]string{"YISHUN", "BEDOK", "YISHUN", "", "ANG MO KIO"})
	assert.Equal(t, []string{"ANG MO KIO", "BEDOK", "YISHUN"}, got)
}
