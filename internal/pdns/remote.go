package pdns

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"dyndnsd/internal/model"
)

// RemoteHandler answers the remote-backend lookup endpoint. One request is
// one lookup; no session state is kept between calls. The connection pool
// below the store pings and reconnects on its own, so a worker that lost
// its connection recovers transparently.
type RemoteHandler struct {
	resolver *Resolver
	log      *zap.Logger
}

func NewRemoteHandler(resolver *Resolver, log *zap.Logger) *RemoteHandler {
	return &RemoteHandler{resolver: resolver, log: log}
}

type lookupReply struct {
	Result []model.ResourceRecord `json:"result"`
}

// Lookup handles GET /dnsapi/lookup/{qname}/{qtype}. Server-supplied
// metadata beyond qname and qtype is ignored. The reply is always a
// well-formed record list; faults degrade to an empty one.
func (h *RemoteHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	qname := r.PathValue("qname")
	qtype := r.PathValue("qtype")

	records := h.resolver.Lookup(qname, qtype)
	if records == nil {
		records = []model.ResourceRecord{}
	}

	h.log.Debug("remote lookup",
		zap.String("qname", qname), zap.String("qtype", qtype), zap.Int("answers", len(records)))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(lookupReply{Result: records}); err != nil {
		h.log.Error("failed to encode reply", zap.Error(err))
	}
}
