package constants

const (
	VERSION = "0.3.1"

	// Client facing topics.
	ParticipationTopicFormat = "/topic/exercise/%d/participation"
	QuizStartTopicFormat     = "/topic/quizExercise/%d/start"
)
