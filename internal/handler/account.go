package handler

import (
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"dyndnsd/internal/auth"
	"dyndnsd/internal/database"
	"dyndnsd/internal/mail"
	"dyndnsd/internal/model"
	"dyndnsd/internal/util"
)

type AccountHandler struct {
	db         *database.DB
	sessionMgr *auth.SessionManager
	mailer     *mail.Mailer
	tmpl       *template.Template
	resetTmpl  *template.Template
	log        *zap.Logger
}

func NewAccountHandler(db *database.DB, sm *auth.SessionManager, mailer *mail.Mailer, tmpl, resetTmpl *template.Template, log *zap.Logger) *AccountHandler {
	return &AccountHandler{db: db, sessionMgr: sm, mailer: mailer, tmpl: tmpl, resetTmpl: resetTmpl, log: log}
}

func (h *AccountHandler) Show(w http.ResponseWriter, r *http.Request) {
	username, csrfToken, _ := h.sessionMgr.GetSessionInfo(r)
	user, _ := h.db.GetUserByUsername(username)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	h.tmpl.ExecuteTemplate(w, "layout", map[string]interface{}{
		"Title":     "Account",
		"Username":  username,
		"CSRFToken": csrfToken,
		"Admin":     isAdmin(user),
		"User":      user,
		"Flash":     r.URL.Query().Get("msg"),
		"Error":     r.URL.Query().Get("err"),
	})
}

func (h *AccountHandler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	username, _ := h.sessionMgr.GetUsername(r)
	email := strings.TrimSpace(r.FormValue("email"))

	if email == "" || !strings.Contains(email, "@") {
		redirectMsg(w, r, "/account", "err", "A valid email address is required")
		return
	}

	if err := h.db.UpdateUserEmail(username, email); err != nil {
		redirectMsg(w, r, "/account", "err", "Failed to update email: "+err.Error())
		return
	}

	_ = h.db.LogAudit(model.AuditEntry{
		Username:  username,
		Action:    "change_email",
		IPAddress: util.GetClientIP(r),
	})
	redirectMsg(w, r, "/account", "msg", "Email updated")
}

func (h *AccountHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	username, _ := h.sessionMgr.GetUsername(r)
	current := r.FormValue("current_password")
	password := r.FormValue("password")
	confirm := r.FormValue("confirm_password")

	if u, err := h.db.AuthenticateUser(username, current); err != nil || u == nil {
		redirectMsg(w, r, "/account", "err", "Current password is wrong")
		return
	}
	if len(password) < 8 {
		redirectMsg(w, r, "/account", "err", "Password must be at least 8 characters")
		return
	}
	if password != confirm {
		redirectMsg(w, r, "/account", "err", "Passwords do not match")
		return
	}

	if err := h.db.UpdateUserPassword(username, password); err != nil {
		redirectMsg(w, r, "/account", "err", "Failed to update password: "+err.Error())
		return
	}

	_ = h.db.LogAudit(model.AuditEntry{
		Username:  username,
		Action:    "change_password",
		IPAddress: util.GetClientIP(r),
	})
	redirectMsg(w, r, "/account", "msg", "Password updated")
}

// Delete removes the account together with its hosts.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	username, _ := h.sessionMgr.GetUsername(r)

	if r.FormValue("confirm") != username {
		redirectMsg(w, r, "/account", "err", "Type your username to confirm deletion")
		return
	}

	if err := h.db.DeleteUser(username); err != nil {
		redirectMsg(w, r, "/account", "err", "Failed to delete account: "+err.Error())
		return
	}

	_ = h.db.LogAudit(model.AuditEntry{
		Username:  username,
		Action:    "delete_account",
		IPAddress: util.GetClientIP(r),
	})

	_ = h.db.DeleteSessionsForUser(username)
	h.sessionMgr.DestroySession(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *AccountHandler) LostPasswordPage(w http.ResponseWriter, r *http.Request) {
	h.resetTmpl.ExecuteTemplate(w, "lostpasswd.html", nil)
}

// LostPasswordSubmit always renders the same confirmation so the form
// cannot be used to probe for usernames.
func (h *AccountHandler) LostPasswordSubmit(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	username := strings.TrimSpace(r.FormValue("username"))

	user, _ := h.db.GetActiveUser(username)
	if user != nil && user.Email != "" {
		authcode := auth.NewToken()
		if err := h.db.SetAuthcode(username, &authcode); err == nil {
			if err := h.mailer.SendPasswordReset(user.Email, username, authcode); err != nil {
				h.log.Error("failed to send reset mail",
					zap.String("username", username), zap.Error(err))
			}
			_ = h.db.LogAudit(model.AuditEntry{
				Username:  username,
				Action:    "lost_password",
				IPAddress: util.GetClientIP(r),
			})
		}
	}

	h.resetTmpl.ExecuteTemplate(w, "lostpasswd.html", map[string]interface{}{
		"Done":        true,
		"MailEnabled": h.mailer.Enabled(),
	})
}

func (h *AccountHandler) ResetPage(w http.ResponseWriter, r *http.Request) {
	h.resetTmpl.ExecuteTemplate(w, "lostpasswd.html", map[string]interface{}{
		"Reset":    true,
		"Username": r.URL.Query().Get("username"),
		"Authcode": r.URL.Query().Get("authcode"),
	})
}

func (h *AccountHandler) ResetSubmit(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	username := r.FormValue("username")
	authcode := r.FormValue("authcode")
	password := r.FormValue("password")
	confirm := r.FormValue("confirm_password")

	renderErr := func(msg string) {
		h.resetTmpl.ExecuteTemplate(w, "lostpasswd.html", map[string]interface{}{
			"Reset":    true,
			"Username": username,
			"Authcode": authcode,
			"Error":    msg,
		})
	}

	if len(password) < 8 {
		renderErr("Password must be at least 8 characters")
		return
	}
	if password != confirm {
		renderErr("Passwords do not match")
		return
	}

	ok, err := h.db.ResetPassword(username, authcode, password)
	if err != nil || !ok {
		renderErr("The reset link is invalid or was already used")
		return
	}

	_ = h.db.LogAudit(model.AuditEntry{
		Username:  username,
		Action:    "reset_password",
		IPAddress: util.GetClientIP(r),
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func isAdmin(u *model.User) bool {
	return u != nil && u.Admin
}

func redirectMsg(w http.ResponseWriter, r *http.Request, path, key, msg string) {
	http.Redirect(w, r, path+"?"+key+"="+url.QueryEscape(msg), http.StatusSeeOther)
}
