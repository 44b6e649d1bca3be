package payment

import "strings"

var instructionMap = map[Channel][]string{
	ChannelMobileMoney: {
		"Dial {{ussd_code}} on your {{vendor}} phone",
		"Confirm the payment of {{amount}} when prompted",
		"Wait for the confirmation SMS before returning to the store",
	},

	ChannelOrderLink: {
		"Open the payment link in WhatsApp, Telegram or your browser",
		"Follow the steps to complete the payment of {{amount}}",
		"You will be redirected back to the store once the payment is confirmed",
	},
}

func GetInstructions(channel Channel) []string {
	if steps, ok := instructionMap[channel]; ok {
		return steps
	}

	return []string{
		"Follow the payment instructions shown on this page",
	}
}

type InstructionVars map[string]string

func InjectVariables(
	steps []string,
	vars InstructionVars,
) []string {
	result := make([]string, 0, len(steps))

	for _, step := range steps {
		updated := step
		for key, value := range vars {
			updated = strings.ReplaceAll(
				updated,
				"{{"+key+"}}",
				value,
			)
		}
		result = append(result, updated)
	}

	return result
}
