package nic

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"dyndnsd/internal/util"
)

type Handler struct {
	updater *Updater
	log     *zap.Logger
}

func NewHandler(updater *Updater, log *zap.Logger) *Handler {
	return &Handler{updater: updater, log: log}
}

// IP returns the caller's IP address as a bare text body. No auth, no side
// effects.
func (h *Handler) IP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, util.GetClientIP(r))
}

// Update handles an update request from a ddclient implementation. The
// body is always a newline-joined list of protocol tokens, one per
// requested hostname; no other text ever appears in the response.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	query := r.URL.Query()
	hostnameParam := query.Get("hostname")
	if hostnameParam == "" {
		// Malformed requests are answered as abuse instead of an error to
		// avoid leaking validation details to scanners.
		fmt.Fprint(w, respAbuse.String())
		return
	}

	hostnames := strings.Split(hostnameParam, ",")
	offline := query.Get("offline") == "YES"

	var address *string
	if myip := query.Get("myip"); myip != "" && !offline {
		address = &myip
	}

	username, password, _ := r.BasicAuth()

	h.log.Debug("update request",
		zap.Strings("hostnames", hostnames), zap.Stringp("address", address))

	responses := h.run(r, username, password, hostnames, address)

	lines := make([]string, len(responses))
	for i, resp := range responses {
		lines[i] = resp.String()
	}
	fmt.Fprint(w, strings.Join(lines, "\n"))
}

// run guards the batch: any store failure or panic degrades every response
// to 911 so the client sees a well-formed, retryable answer.
func (h *Handler) run(r *http.Request, username, password string, hostnames []string, address *string) (responses []Response) {
	defer func() {
		if rec := recover(); rec != nil {
			h.log.Error("update request panicked", zap.Any("panic", rec))
			responses = repeat(respServerErr, len(hostnames))
		}
	}()

	responses, err := h.updater.Update(r.Context(), username, password, hostnames, address, util.GetClientIP(r))
	if err != nil {
		h.log.Error("update request failed", zap.Error(err))
		responses = repeat(respServerErr, len(hostnames))
	}
	return responses
}
