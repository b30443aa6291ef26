package messenger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttachPropertiesToAMQPTranslatesMap(t *testing.T) {
	out, err := attachPropertiesToAMQP(map[string]string{
		"com.microsoft:api-version": "1.0",
	})
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"com.microsoft:api-version": "1.0"}, out)
}

func TestAttachPropertiesToAMQPNilOnEmptyInput(t *testing.T) {
	out, err := attachPropertiesToAMQP(nil)
	assert.NoError(t, err)
	assert.Nil(t, out)

	out, err = attachPropertiesToAMQP(map[string]string{})
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestAttachPropertiesToAMQPFailsWholeSetOnEmptyKey(t *testing.T) {
	out, err := attachPropertiesToAMQP(map[string]string{
		"good": "value",
		"":     "bad",
	})
	assert.Error(t, err)
	assert.Nil(t, out)
}
