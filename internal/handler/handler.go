// Package handler holds the HTTP handlers of the agent.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dukerupert/presenze/internal/apiclient"
	"github.com/dukerupert/presenze/internal/calendar"
	"github.com/dukerupert/presenze/internal/push"
)

// Messages shown to the user.
const (
	msgSaveFailed   = "Impossibile salvare la presenza, riprova"
	msgDeleteFailed = "Impossibile rimuovere la presenza, riprova"
	msgLoadFailed   = "Impossibile caricare il calendario, riprova"
	msgBusy         = "Operazione già in corso, attendi"
	msgInvalid      = "Dati non validi"
	msgUnauthorized = "Sessione scaduta, effettua di nuovo l'accesso"
	msgForbidden    = "Non hai i permessi per questa operazione"
	msgPushDenied   = "Permesso per le notifiche negato: abilitale nelle impostazioni del dispositivo per riceverle"
	msgPushFailed   = "Impossibile aggiornare le notifiche, riprova"
	msgPushNoDevice = "Le notifiche non sono disponibili su questo dispositivo"
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// errorStatus maps a domain error to a status code and the message to show.
// fallback is the generic failure notice for the operation.
func errorStatus(err error, fallback string) (int, string) {
	var verrs calendar.ValidationErrors
	var apiErr *apiclient.APIError
	switch {
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity, msgInvalid
	case errors.Is(err, calendar.ErrBusy), errors.Is(err, push.ErrBusy):
		return http.StatusConflict, msgBusy
	case errors.Is(err, push.ErrUnsupported):
		return http.StatusConflict, msgPushNoDevice
	case errors.As(err, &apiErr):
		switch apiErr.StatusCode {
		case http.StatusUnauthorized:
			return http.StatusUnauthorized, msgUnauthorized
		case http.StatusForbidden:
			return http.StatusForbidden, msgForbidden
		}
		return http.StatusBadGateway, fallback
	}
	return http.StatusInternalServerError, fallback
}

func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	status, msg := errorStatus(err, fallback)
	body := errorBody{Error: msg}
	var verrs calendar.ValidationErrors
	if errors.As(err, &verrs) {
		body.Fields = verrs.ToMap()
	}
	writeJSON(w, status, body)
}

func wantsJSON(r *http.Request) bool {
	return r.Header.Get("Accept") == "application/json"
}
