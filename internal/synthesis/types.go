package synthesis

import "net/http"

type Config struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// Request carries one de-duplicated transcript fragment to the
// speech-synthesis endpoint.
type Request struct {
	Text        string `json:"text"`
	Language    string `json:"language"`
	VoiceID     string `json:"voiceId"`
	ChurchID    string `json:"churchId"`
	BroadcastID string `json:"broadcastId"`
}
