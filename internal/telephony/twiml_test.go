package telephony

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

func TestDialTwiML(t *testing.T) {
	xml, err := DialTwiML("+61298765432", "+61412345678")
	require.NoError(t, err)
	assert.Contains(t, xml, `<Dial callerId="+61298765432" answerOnBridge="true">`)
	assert.Contains(t, xml, `<Number>+61412345678</Number>`)
}

func TestDialTwiMLRequiresBothNumbers(t *testing.T) {
	_, err := DialTwiML("", "+61412345678")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRejectTwiML(t *testing.T) {
	xml, err := RejectTwiML("No caller ID available")
	require.NoError(t, err)
	assert.Contains(t, xml, "<Say>No caller ID available</Say>")
	assert.Contains(t, xml, `<Reject reason="busy"></Reject>`)

	xml, err = RejectTwiML("")
	require.NoError(t, err)
	assert.NotContains(t, xml, "<Say>")
}
