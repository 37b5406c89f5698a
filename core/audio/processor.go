package audio

// Processor defines an interface for audio probing operations.
type Processor interface {
	GetAudioDuration(inputFile string) (float32, error)
}
