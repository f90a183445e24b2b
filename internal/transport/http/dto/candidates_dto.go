package dto

type CandidateResponse struct {
	UserID      int64    `json:"user_id"`
	DisplayName string   `json:"display_name"`
	Age         int      `json:"age"`
	Course      string   `json:"course"`
	Year        int      `json:"year"`
	Interests   []string `json:"interests"`
	Gender      string   `json:"gender"`
	PhotoURLs   []string `json:"photo_urls"`
}

type CandidatesResponse struct {
	Items []CandidateResponse `json:"items"`
}
