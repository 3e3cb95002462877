package appinfo

// Metadata captures static identifiers for the application. Centralising the
// values keeps log fields and feed payloads consistent.
type Metadata struct {
	Name        string
	BinaryName  string
	Slug        string
	Description string
	GeneratorID string
}

// Info describes the current application.
var Info = Metadata{
	Name:        "Talkboard",
	BinaryName:  "talkboard",
	Slug:        "talkboard",
	Description: "Real-time microphone transcription with chat-style utterances.",
	GeneratorID: "talkboard-stream",
}

// UtteranceMetadata produces the standard metadata payload attached to
// emitted utterance events.
func UtteranceMetadata(engineName, language string) map[string]string {
	return map[string]string{
		"generator": Info.GeneratorID,
		"engine":    engineName,
		"language":  language,
	}
}
