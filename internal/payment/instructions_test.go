package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInstructions(t *testing.T) {
	steps := GetInstructions(ChannelMobileMoney)
	assert.Contains(t, steps[0], "{{ussd_code}}")

	steps = GetInstructions(ChannelOrderLink)
	assert.Contains(t, steps[0], "payment link")
}

func TestGetInstructions_UnknownChannel(t *testing.T) {
	steps := GetInstructions(Channel("card"))
	assert.Len(t, steps, 1)
}

func TestInjectVariables(t *testing.T) {
	steps := InjectVariables(GetInstructions(ChannelMobileMoney), InstructionVars{
		"ussd_code": "*126#",
		"vendor":    "MTN",
		"amount":    "1500 XAF",
	})

	assert.Equal(t, "Dial *126# on your MTN phone", steps[0])
	assert.Equal(t, "Confirm the payment of 1500 XAF when prompted", steps[1])
}

func TestInjectVariables_MissingVarsLeftVerbatim(t *testing.T) {
	steps := InjectVariables([]string{"Dial {{ussd_code}} now"}, InstructionVars{})
	assert.Equal(t, "Dial {{ussd_code}} now", steps[0])
}
