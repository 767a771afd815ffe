package handler

import (
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"dyndnsd/internal/auth"
	"dyndnsd/internal/config"
	"dyndnsd/internal/database"
	"dyndnsd/internal/model"
	"dyndnsd/internal/nic"
	"dyndnsd/internal/util"
)

type HostHandler struct {
	db         *database.DB
	sessionMgr *auth.SessionManager
	mirror     nic.Mirror
	dnsCfg     config.DNSConfig
	listTmpl   *template.Template
	detailTmpl *template.Template
	log        *zap.Logger
}

func NewHostHandler(db *database.DB, sm *auth.SessionManager, mirror nic.Mirror, dnsCfg config.DNSConfig, listTmpl, detailTmpl *template.Template, log *zap.Logger) *HostHandler {
	return &HostHandler{db: db, sessionMgr: sm, mirror: mirror, dnsCfg: dnsCfg, listTmpl: listTmpl, detailTmpl: detailTmpl, log: log}
}

func (h *HostHandler) List(w http.ResponseWriter, r *http.Request) {
	username, csrfToken, _ := h.sessionMgr.GetSessionInfo(r)
	user, _ := h.db.GetUserByUsername(username)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	data := map[string]interface{}{
		"Title":     "Hosts",
		"Username":  username,
		"CSRFToken": csrfToken,
		"Admin":     user.Admin,
		"Flash":     r.URL.Query().Get("msg"),
		"Error":     r.URL.Query().Get("err"),
	}

	hosts, err := h.db.ListHostsForUser(user.ID)
	if err != nil {
		data["Error"] = "Failed to load hosts: " + err.Error()
	}
	suffixes, _ := h.db.ListSuffixes()
	quota := h.quotaFor(user)

	data["Hosts"] = hosts
	data["Suffixes"] = suffixes
	data["Quota"] = quota
	data["QuotaFull"] = int64(len(hosts)) >= quota

	h.listTmpl.ExecuteTemplate(w, "layout", data)
}

func (h *HostHandler) Create(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	username, _ := h.sessionMgr.GetUsername(r)
	user, _ := h.db.GetUserByUsername(username)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	hostname := strings.ToLower(strings.TrimSpace(r.FormValue("hostname")))
	suffixID, _ := strconv.ParseInt(r.FormValue("suffix_id"), 10, 64)
	password := r.FormValue("password")
	description := strings.TrimSpace(r.FormValue("description"))

	if !hostnameRe.MatchString(hostname) {
		redirectMsg(w, r, "/hosts", "err", "Hostname may only contain lowercase letters, digits and hyphens")
		return
	}
	if len(password) < 8 {
		redirectMsg(w, r, "/hosts", "err", "Host password must be at least 8 characters")
		return
	}

	count, err := h.db.CountHostsForUser(user.ID)
	if err != nil {
		redirectMsg(w, r, "/hosts", "err", "Failed to check quota: "+err.Error())
		return
	}
	if count >= h.quotaFor(user) {
		redirectMsg(w, r, "/hosts", "err", "Host limit reached")
		return
	}

	address := parseV4(r.FormValue("address"))
	if r.FormValue("address") != "" && address == nil {
		redirectMsg(w, r, "/hosts", "err", "Address must be a valid IPv4 address")
		return
	}

	if err := h.db.CreateHost(user.ID, suffixID, hostname, address, password, description); err != nil {
		redirectMsg(w, r, "/hosts", "err", "Failed to create host: "+err.Error())
		return
	}

	host, _ := h.db.HostByFQDN(user.ID, hostname+"."+h.suffixName(suffixID))
	h.audit(r, username, "create_host", host, "")
	if host != nil && address != nil {
		h.sync(r, host, "A", address, nil)
	}

	redirectMsg(w, r, "/hosts", "msg", fmt.Sprintf("Host '%s' created", hostname))
}

func (h *HostHandler) Detail(w http.ResponseWriter, r *http.Request) {
	username, csrfToken, _ := h.sessionMgr.GetSessionInfo(r)
	user, _ := h.db.GetUserByUsername(username)
	host := h.ownHost(r, user)
	if host == nil {
		http.NotFound(w, r)
		return
	}

	h.detailTmpl.ExecuteTemplate(w, "layout", map[string]interface{}{
		"Title":     host.FQDN(),
		"Username":  username,
		"CSRFToken": csrfToken,
		"Admin":     isAdmin(user),
		"Host":      host,
		"Flash":     r.URL.Query().Get("msg"),
		"Error":     r.URL.Query().Get("err"),
	})
}

func (h *HostHandler) Update(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	username, _ := h.sessionMgr.GetUsername(r)
	user, _ := h.db.GetUserByUsername(username)
	host := h.ownHost(r, user)
	if host == nil {
		http.NotFound(w, r)
		return
	}
	self := fmt.Sprintf("/hosts/%d", host.ID)

	address := parseV4(r.FormValue("address"))
	if r.FormValue("address") != "" && address == nil {
		redirectMsg(w, r, self, "err", "Address must be a valid IPv4 address")
		return
	}
	description := strings.TrimSpace(r.FormValue("description"))

	if err := h.db.UpdateHostDetails(host.ID, user.ID, address, description); err != nil {
		redirectMsg(w, r, self, "err", "Failed to update host: "+err.Error())
		return
	}

	h.audit(r, username, "update_host", host, fmt.Sprintf("address=%s", derefOr(address, "none")))
	h.sync(r, host, "A", address, host.Address)

	redirectMsg(w, r, self, "msg", "Host updated")
}

func (h *HostHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	username, _ := h.sessionMgr.GetUsername(r)
	user, _ := h.db.GetUserByUsername(username)
	host := h.ownHost(r, user)
	if host == nil {
		http.NotFound(w, r)
		return
	}
	self := fmt.Sprintf("/hosts/%d", host.ID)

	password := r.FormValue("password")
	if len(password) < 8 {
		redirectMsg(w, r, self, "err", "Host password must be at least 8 characters")
		return
	}
	if password != r.FormValue("confirm_password") {
		redirectMsg(w, r, self, "err", "Passwords do not match")
		return
	}

	if err := h.db.UpdateHostPassword(host.ID, user.ID, password); err != nil {
		redirectMsg(w, r, self, "err", "Failed to update password: "+err.Error())
		return
	}

	h.audit(r, username, "change_host_password", host, "")
	redirectMsg(w, r, self, "msg", "Host password updated")
}

func (h *HostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	username, _ := h.sessionMgr.GetUsername(r)
	user, _ := h.db.GetUserByUsername(username)
	host := h.ownHost(r, user)
	if host == nil {
		http.NotFound(w, r)
		return
	}

	if err := h.db.DeleteHost(host.ID, user.ID); err != nil {
		redirectMsg(w, r, fmt.Sprintf("/hosts/%d", host.ID), "err", "Failed to delete host: "+err.Error())
		return
	}

	h.audit(r, username, "delete_host", host, "")
	h.sync(r, host, "A", nil, host.Address)
	h.sync(r, host, "AAAA", nil, host.AddressV6)

	redirectMsg(w, r, "/hosts", "msg", fmt.Sprintf("Host '%s' deleted", host.FQDN()))
}

// ownHost resolves the {hostID} path value to a host owned by user.
func (h *HostHandler) ownHost(r *http.Request, user *model.User) *model.Host {
	if user == nil {
		return nil
	}
	hostID, err := strconv.ParseInt(r.PathValue("hostID"), 10, 64)
	if err != nil {
		return nil
	}
	host, err := h.db.GetHostForUser(hostID, user.ID)
	if err != nil {
		return nil
	}
	return host
}

func (h *HostHandler) quotaFor(user *model.User) int64 {
	if user.MaxHosts != nil {
		return int64(*user.MaxHosts)
	}
	return int64(h.dnsCfg.MaxHosts)
}

func (h *HostHandler) suffixName(suffixID int64) string {
	suffixes, _ := h.db.ListSuffixes()
	for _, s := range suffixes {
		if s.ID == suffixID {
			return s.Name
		}
	}
	return ""
}

func (h *HostHandler) audit(r *http.Request, username, action string, host *model.Host, detail string) {
	entry := model.AuditEntry{
		Username:  username,
		Action:    action,
		Detail:    detail,
		IPAddress: util.GetClientIP(r),
	}
	if host != nil {
		entry.HostName = host.Hostname
		entry.SuffixName = host.SuffixName
	}
	_ = h.db.LogAudit(entry)
}

func (h *HostHandler) sync(r *http.Request, host *model.Host, recordType string, newAddr, oldAddr *string) {
	if h.mirror == nil || (newAddr == nil && oldAddr == nil) {
		return
	}
	if err := h.mirror.SyncAddress(r.Context(), host.FQDN(), host.SuffixName, recordType, newAddr, oldAddr); err != nil {
		h.log.Error("failed to mirror address change",
			zap.String("fqdn", host.FQDN()), zap.Error(err))
	}
}

func parseV4(s string) *string {
	s = strings.TrimSpace(s)
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		return nil
	}
	v := ip.String()
	return &v
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
