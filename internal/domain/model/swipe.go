package model

import (
	"time"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/enums"
)

type Swipe struct {
	ID           int64          `json:"id"`
	ActorUserID  int64          `json:"actor_user_id"`
	TargetUserID int64          `json:"target_user_id"`
	Decision     enums.Decision `json:"decision"`
	CreatedAt    time.Time      `json:"created_at"`
}
