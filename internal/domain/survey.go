package domain

type QuestionID string

const (
	QuestionServiceQuality QuestionID = "service_quality"
	QuestionPunctuality    QuestionID = "punctuality"
	QuestionCommunication  QuestionID = "communication"
	QuestionValueForMoney  QuestionID = "value_for_money"
	QuestionRecommendation QuestionID = "recommendation"
)

// SurveyQuestions is the fixed questionnaire, in display order.
var SurveyQuestions = []QuestionID{ //nolint:gochecknoglobals // closed enumeration
	QuestionServiceQuality,
	QuestionPunctuality,
	QuestionCommunication,
	QuestionValueForMoney,
	QuestionRecommendation,
}

type Rating string

const (
	RatingExcellent Rating = "excellent"
	RatingGood      Rating = "good"
	RatingRegular   Rating = "regular"
	RatingPoor      Rating = "poor"
)

// Valid reports whether r is one of the enumerated ratings.
func (r Rating) Valid() bool {
	switch r {
	case RatingExcellent, RatingGood, RatingRegular, RatingPoor:
		return true
	default:
		return false
	}
}

// ValidQuestion reports whether q belongs to the questionnaire.
func ValidQuestion(q QuestionID) bool {
	for _, known := range SurveyQuestions {
		if known == q {
			return true
		}
	}
	return false
}
