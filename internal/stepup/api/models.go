package stepupapi

import v1 "stronghold/contracts/stepup/v1"

type startSessionRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
}

type startSessionResponse struct {
	SessionID string `json:"session_id"`
	PIN       string `json:"pin"`
}

type joinSessionResponse struct {
	SessionID string `json:"session_id"`
}

type pinOptionsResponse struct {
	Pins      []string `json:"pins"`
	SessionID string   `json:"session_id"`
}

type verifyPinRequest struct {
	PIN       string `json:"pin" validate:"required,numeric"`
	SessionID string `json:"session_id" validate:"omitempty,max=64"`
	Username  string `json:"username" validate:"omitempty,max=64"`
}

type verifyPinResponse struct {
	SessionID string `json:"session_id"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type stepUpResponse struct {
	Status   string `json:"status"`
	StepUpID string `json:"step_up_id"`
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

type pollResponse struct {
	Events []v1.Event `json:"events"`
}
