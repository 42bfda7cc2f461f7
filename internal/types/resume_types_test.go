package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalizeEmpty 零值经Normalize后姓名为哨兵值，列表字段非nil
func TestNormalizeEmpty(t *testing.T) {
	var ext ResumeExtraction
	ext.Normalize()

	assert.Equal(t, UnknownName, ext.FullName)
	assert.NotNil(t, ext.Skills)
	assert.NotNil(t, ext.Experience)
	assert.NotNil(t, ext.Education)
	assert.NotNil(t, ext.Certifications)
	assert.NotNil(t, ext.Languages)
	assert.Empty(t, ext.Skills)
}

// TestNormalizeKeepsValues 已有值不被覆盖
func TestNormalizeKeepsValues(t *testing.T) {
	ext := ResumeExtraction{
		FullName: "Jane Doe",
		Skills:   []ExtractedSkill{{Name: "Go"}},
	}
	ext.Normalize()

	assert.Equal(t, "Jane Doe", ext.FullName)
	assert.Len(t, ext.Skills, 1)
}
