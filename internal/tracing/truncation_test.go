package tracing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeAttributeValue(t *testing.T) {
	tests := []struct {
		name     string
		attrName string
		value    string
		expected string
	}{
		{
			name:     "候选人姓名按PII掩码",
			attrName: "candidate.full_name",
			value:    "Jane Doe",
			expected: "Ja****oe",
		},
		{
			name:     "文件名不含敏感关键字，原样保留",
			attrName: "upload.file",
			value:    "resume_jane.pdf",
			expected: "resume_jane.pdf",
		},
		{
			name:     "邮箱属性无论值是什么都掩码",
			attrName: "candidate.email",
			value:    "jane@example.com",
			expected: "ja************om",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SafeAttributeValue(tt.attrName, tt.value, DefaultMaxLength)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSafeAttributeValueTruncatesLongValue(t *testing.T) {
	long := strings.Repeat("a", DefaultMaxLength+50)

	got := SafeAttributeValue("upload.file", long, DefaultMaxLength)

	assert.LessOrEqual(t, len([]rune(got)), DefaultMaxLength, "超长属性值应被截断到上限以内")
	assert.Contains(t, got, "...")
}

func TestMaskPII(t *testing.T) {
	assert.Equal(t, "", MaskPII(""))
	assert.Equal(t, "*", MaskPII("a"))
	assert.Equal(t, "a*", MaskPII("ab"))
	assert.Equal(t, "a**d", MaskPII("abcd"))
	assert.Equal(t, "13*******89", MaskPII("13800001289"))
}

func TestSafeSQL(t *testing.T) {
	short := "SELECT * FROM candidates WHERE id = ?"
	assert.Equal(t, short, SafeSQL(short))

	long := "SELECT " + strings.Repeat("col,", 300) + " FROM candidates"
	got := SafeSQL(long)
	assert.LessOrEqual(t, len([]rune(got)), MaxSQLLength, "超长SQL应被截断")
	assert.Contains(t, got, "...")
}
