package i18n

// Message IDs shared by the HTTP API and the CLI.
const (
	MsgAppTitle          = "AppTitle"
	MsgSubmissionFailed  = "SubmissionFailed"
	MsgInputRequired     = "InputRequired"
	MsgInvalidRequest    = "InvalidRequest"
	MsgSpeechUnavailable = "SpeechUnavailable"
	MsgPlaybackInvalid   = "PlaybackInvalid"
	MsgImageCaption      = "ImageCaption"
	MsgFocusMinutes      = "FocusMinutes"
	MsgHintLabel         = "HintLabel"
	MsgAnswerLabel       = "AnswerLabel"
	MsgAccuracyLabel     = "AccuracyLabel"
	MsgHeardLabel        = "HeardLabel"
)
