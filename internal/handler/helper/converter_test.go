package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/rit-api/internal/domain/entity"
)

func TestConvertOptionsToObjects(t *testing.T) {
	got := ConvertOptionsToObjects(entity.StringArray{"3", "", "5"})

	assert.Equal(t, []ItemOption{
		{ID: 0, Text: "3"},
		{ID: 1, Text: "(пустой вариант)"},
		{ID: 2, Text: "5"},
	}, got)
	assert.Empty(t, ConvertOptionsToObjects(nil))
}
