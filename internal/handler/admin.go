package handler

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"dyndnsd/internal/auth"
	"dyndnsd/internal/database"
	"dyndnsd/internal/mail"
	"dyndnsd/internal/model"
	"dyndnsd/internal/util"
)

type AdminHandler struct {
	db         *database.DB
	sessionMgr *auth.SessionManager
	mailer     *mail.Mailer
	tmpl       *template.Template
	log        *zap.Logger
}

func NewAdminHandler(db *database.DB, sm *auth.SessionManager, mailer *mail.Mailer, tmpl *template.Template, log *zap.Logger) *AdminHandler {
	return &AdminHandler{db: db, sessionMgr: sm, mailer: mailer, tmpl: tmpl, log: log}
}

func (h *AdminHandler) page(r *http.Request, title string) map[string]interface{} {
	username, csrfToken, _ := h.sessionMgr.GetSessionInfo(r)
	return map[string]interface{}{
		"Title":     title,
		"Username":  username,
		"CSRFToken": csrfToken,
		"Admin":     true,
		"Flash":     r.URL.Query().Get("msg"),
		"Error":     r.URL.Query().Get("err"),
	}
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	data := h.page(r, "Dashboard")

	users, _ := h.db.CountUsers()
	hosts, _ := h.db.CountHosts()
	suffixes, _ := h.db.CountSuffixes()
	data["UserCount"] = users
	data["HostCount"] = hosts
	data["SuffixCount"] = suffixes

	h.tmpl.ExecuteTemplate(w, "layout", data)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	data := h.page(r, "Users")

	users, err := h.db.ListUsers()
	if err != nil {
		data["Error"] = "Failed to load users: " + err.Error()
	}
	data["Users"] = users

	h.tmpl.ExecuteTemplate(w, "layout", data)
}

// CreateUser makes an account on someone's behalf. It goes through the
// same activation flow as self-signup, so the owner still has to confirm
// the mail address before logging in.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	username, _ := h.sessionMgr.GetUsername(r)
	target := strings.ToLower(strings.TrimSpace(r.FormValue("username")))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if !usernameRe.MatchString(target) {
		redirectMsg(w, r, "/admin/users", "err", "Username may only contain lowercase letters, digits, dots and hyphens (max 30)")
		return
	}
	if email == "" || !strings.Contains(email, "@") {
		redirectMsg(w, r, "/admin/users", "err", "A valid email address is required")
		return
	}
	if len(password) < 8 {
		redirectMsg(w, r, "/admin/users", "err", "Password must be at least 8 characters")
		return
	}
	if existing, _ := h.db.GetUserByUsername(target); existing != nil {
		redirectMsg(w, r, "/admin/users", "err", "Username is already taken")
		return
	}

	authcode := auth.NewToken()
	if err := h.db.CreateUser(target, email, password, false, false, &authcode); err != nil {
		redirectMsg(w, r, "/admin/users", "err", "Failed to create account: "+err.Error())
		return
	}
	if err := h.mailer.SendActivation(email, target, authcode); err != nil {
		h.log.Error("failed to send activation mail",
			zap.String("username", target), zap.Error(err))
	}

	_ = h.db.LogAudit(model.AuditEntry{
		Username:  username,
		Action:    "create_user",
		Detail:    fmt.Sprintf("user=%s", target),
		IPAddress: util.GetClientIP(r),
	})
	redirectMsg(w, r, "/admin/users", "msg", fmt.Sprintf("User '%s' created, activation mail sent", target))
}

func (h *AdminHandler) SetUserActive(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	username, _ := h.sessionMgr.GetUsername(r)
	target := r.FormValue("username")
	active := r.FormValue("active") == "1"

	if target == username && !active {
		redirectMsg(w, r, "/admin/users", "err", "Cannot deactivate yourself")
		return
	}

	if err := h.db.SetUserActive(target, active); err != nil {
		redirectMsg(w, r, "/admin/users", "err", "Error: "+err.Error())
		return
	}
	if !active {
		_ = h.db.DeleteSessionsForUser(target)
	}

	action := "deactivate_user"
	if active {
		action = "activate_user"
	}
	_ = h.db.LogAudit(model.AuditEntry{
		Username:  username,
		Action:    action,
		Detail:    fmt.Sprintf("user=%s", target),
		IPAddress: util.GetClientIP(r),
	})
	redirectMsg(w, r, "/admin/users", "msg", fmt.Sprintf("User '%s' updated", target))
}

func (h *AdminHandler) SetUserMaxHosts(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	username, _ := h.sessionMgr.GetUsername(r)
	target := r.FormValue("username")

	var maxHosts *int
	if raw := strings.TrimSpace(r.FormValue("max_hosts")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			redirectMsg(w, r, "/admin/users", "err", "Host limit must be a non-negative number")
			return
		}
		maxHosts = &n
	}

	if err := h.db.SetUserMaxHosts(target, maxHosts); err != nil {
		redirectMsg(w, r, "/admin/users", "err", "Error: "+err.Error())
		return
	}

	_ = h.db.LogAudit(model.AuditEntry{
		Username:  username,
		Action:    "set_max_hosts",
		Detail:    fmt.Sprintf("user=%s max_hosts=%s", target, r.FormValue("max_hosts")),
		IPAddress: util.GetClientIP(r),
	})
	redirectMsg(w, r, "/admin/users", "msg", fmt.Sprintf("User '%s' updated", target))
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	username, _ := h.sessionMgr.GetUsername(r)
	target := r.FormValue("username")

	if target == username {
		redirectMsg(w, r, "/admin/users", "err", "Cannot delete yourself")
		return
	}

	if err := h.db.DeleteUser(target); err != nil {
		redirectMsg(w, r, "/admin/users", "err", "Error: "+err.Error())
		return
	}
	_ = h.db.DeleteSessionsForUser(target)

	_ = h.db.LogAudit(model.AuditEntry{
		Username:  username,
		Action:    "delete_user",
		Detail:    fmt.Sprintf("deleted user=%s", target),
		IPAddress: util.GetClientIP(r),
	})
	redirectMsg(w, r, "/admin/users", "msg", fmt.Sprintf("User '%s' deleted", target))
}

func (h *AdminHandler) ListSuffixes(w http.ResponseWriter, r *http.Request) {
	data := h.page(r, "Suffixes")

	suffixes, err := h.db.ListSuffixes()
	if err != nil {
		data["Error"] = "Failed to load suffixes: " + err.Error()
	}
	data["Suffixes"] = suffixes

	h.tmpl.ExecuteTemplate(w, "layout", data)
}

func (h *AdminHandler) CreateSuffix(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	username, _ := h.sessionMgr.GetUsername(r)
	name := strings.ToLower(strings.Trim(strings.TrimSpace(r.FormValue("name")), "."))

	if name == "" || !strings.Contains(name, ".") {
		redirectMsg(w, r, "/admin/suffixes", "err", "Suffix must be a domain name")
		return
	}

	if err := h.db.CreateSuffix(name); err != nil {
		redirectMsg(w, r, "/admin/suffixes", "err", "Error: "+err.Error())
		return
	}

	_ = h.db.LogAudit(model.AuditEntry{
		Username:   username,
		Action:     "create_suffix",
		SuffixName: name,
		IPAddress:  util.GetClientIP(r),
	})
	redirectMsg(w, r, "/admin/suffixes", "msg", fmt.Sprintf("Suffix '%s' created", name))
}

// DeleteSuffix fails while hosts still use the suffix; the database keeps
// the reference intact and the error is surfaced as-is.
func (h *AdminHandler) DeleteSuffix(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	username, _ := h.sessionMgr.GetUsername(r)
	suffixID, _ := strconv.ParseInt(r.FormValue("suffix_id"), 10, 64)

	if err := h.db.DeleteSuffix(suffixID); err != nil {
		redirectMsg(w, r, "/admin/suffixes", "err", "Cannot delete suffix: it still has hosts")
		return
	}

	_ = h.db.LogAudit(model.AuditEntry{
		Username:  username,
		Action:    "delete_suffix",
		Detail:    fmt.Sprintf("suffix_id=%d", suffixID),
		IPAddress: util.GetClientIP(r),
	})
	redirectMsg(w, r, "/admin/suffixes", "msg", "Suffix deleted")
}

func (h *AdminHandler) ListHosts(w http.ResponseWriter, r *http.Request) {
	data := h.page(r, "All Hosts")

	hosts, err := h.db.ListHosts()
	if err != nil {
		data["Error"] = "Failed to load hosts: " + err.Error()
	}
	data["Hosts"] = hosts

	h.tmpl.ExecuteTemplate(w, "layout", data)
}

// SetHostAbuse flags or unflags a host. A flagged host stops answering
// DNS queries and its updates return the abuse code.
func (h *AdminHandler) SetHostAbuse(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	username, _ := h.sessionMgr.GetUsername(r)
	hostID, _ := strconv.ParseInt(r.FormValue("host_id"), 10, 64)

	host, err := h.db.GetHost(hostID)
	if err != nil || host == nil {
		redirectMsg(w, r, "/admin/hosts", "err", "No such host")
		return
	}

	var reason *string
	action := "clear_abuse"
	if raw := strings.TrimSpace(r.FormValue("reason")); raw != "" {
		reason = &raw
		action = "flag_abuse"
	}

	if err := h.db.SetHostAbuse(hostID, reason); err != nil {
		redirectMsg(w, r, "/admin/hosts", "err", "Error: "+err.Error())
		return
	}

	_ = h.db.LogAudit(model.AuditEntry{
		Username:   username,
		Action:     action,
		HostName:   host.Hostname,
		SuffixName: host.SuffixName,
		Detail:     r.FormValue("reason"),
		IPAddress:  util.GetClientIP(r),
	})
	redirectMsg(w, r, "/admin/hosts", "msg", fmt.Sprintf("Host '%s' updated", host.FQDN()))
}

func (h *AdminHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	data := h.page(r, "Audit Log")

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit := 50
	offset := (page - 1) * limit

	entries, total, err := h.db.ListAuditLog(limit, offset)
	if err != nil {
		data["Error"] = "Failed to load audit log: " + err.Error()
	}

	data["Entries"] = entries
	data["Page"] = page
	data["TotalPages"] = (total + limit - 1) / limit
	data["Total"] = total

	h.tmpl.ExecuteTemplate(w, "layout", data)
}
