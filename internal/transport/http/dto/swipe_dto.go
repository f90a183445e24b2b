package dto

type SwipeRequest struct {
	TargetID int64  `json:"target_id" validate:"required,gt=0"`
	Decision string `json:"decision" validate:"required,decision"`
}

type SwipeResponse struct {
	OK             bool                  `json:"ok"`
	IsMatch        bool                  `json:"is_match"`
	AlreadyDecided bool                  `json:"already_decided"`
	Decision       string                `json:"decision"`
	Match          *MatchCreatedResponse `json:"match,omitempty"`
}

type MatchCreatedResponse struct {
	ID           int64 `json:"id"`
	TargetUserID int64 `json:"target_user_id"`
}
