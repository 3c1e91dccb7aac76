package convert

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToFloat64(t *testing.T) {
	assert.Equal(t, 1.25, ToFloat64(" 1.25 "))
	assert.Equal(t, 0.0, ToFloat64(""))
	assert.Equal(t, 0.0, ToFloat64("abc"))
	assert.Equal(t, 0.0, ToFloat64(nil))
	assert.Equal(t, 3.0, ToFloat64(3))
	assert.Equal(t, 2.5, ToFloat64(json.Number("2.5")))
	assert.Equal(t, 0.0, ToFloat64([]int{1}))
}
