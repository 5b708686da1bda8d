package deepgram

type deepgramVoice string

const (
	VoiceThalia    deepgramVoice = "aura-2-thalia-en"
	VoiceAndromeda deepgramVoice = "aura-2-andromeda-en"
	VoiceApollo    deepgramVoice = "aura-2-apollo-en"
	VoiceArcas     deepgramVoice = "aura-2-arcas-en"
	VoiceOrion     deepgramVoice = "aura-orion-en"
	VoiceAsteria   deepgramVoice = "aura-asteria-en"

	defaultVoice = VoiceArcas
)

func GetAvailableVoices() []deepgramVoice {
	return []deepgramVoice{VoiceThalia, VoiceAndromeda, VoiceApollo, VoiceArcas, VoiceOrion, VoiceAsteria}
}

// ToVoice converts a configured voice name, an empty name selects the
// default voice.
func ToVoice(name string) deepgramVoice {
	if name == "" {
		return defaultVoice
	}
	return deepgramVoice(name)
}
