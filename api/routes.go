package api

import (
	"net/http"

	"github.com/xraph/smsrelay"
)

func (h *Handler) sendToTelegram(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	err := h.relay.SendToTelegram(r.Context(), smsrelay.SendInput{
		BotToken: req.BotToken,
		ChatID:   string(req.ChatID),
		Message:  req.Message,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeSuccess(w, "Message sent to Telegram successfully")
}

func (h *Handler) registerDevice(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	created, err := h.relay.RegisterDevice(r.Context(), smsrelay.RegisterInput{
		DeviceID: req.DeviceID,
		BotToken: req.BotToken,
		ChatID:   string(req.ChatID),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	msg := "Device updated successfully"
	if created {
		msg = "Device registered successfully"
	}
	writeJSON(w, http.StatusOK, registerResponse{
		envelope: envelope{Status: statusSuccess, Message: msg},
		DeviceID: req.DeviceID,
		Created:  created,
	})
}

func (h *Handler) processSms(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	err := h.relay.ProcessSMS(r.Context(), smsrelay.SMSInput{
		DeviceID:  req.DeviceID,
		Sender:    req.Sender,
		Message:   req.Message,
		Timestamp: req.Timestamp.int64Ptr(),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeSuccess(w, "SMS forwarded to Telegram successfully")
}

func (h *Handler) ping(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, "pong")
}

func (h *Handler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		envelope: envelope{Status: statusSuccess, Message: "SMS relay service is running"},
		Version:  h.relay.Config().Version,
	})
}

func (h *Handler) notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, msgNotFound)
}
