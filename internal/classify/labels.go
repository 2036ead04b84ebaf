package classify

// TextLabels is the GoEmotions label set scored by the text model.
var TextLabels = []string{
	"admiration", "amusement", "anger", "annoyance", "approval", "caring",
	"confusion", "curiosity", "desire", "disappointment", "disapproval",
	"disgust", "embarrassment", "excitement", "fear", "gratitude", "grief",
	"joy", "love", "nervousness", "optimism", "pride", "realization",
	"relief", "remorse", "sadness", "surprise", "neutral",
}

// ImageLabels is the FER-2013 facial expression label set scored by the image model.
var ImageLabels = []string{
	"angry", "disgust", "fear", "happy", "neutral", "sad", "surprise",
}
