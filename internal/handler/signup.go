package handler

import (
	"html/template"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"dyndnsd/internal/auth"
	"dyndnsd/internal/database"
	"dyndnsd/internal/mail"
	"dyndnsd/internal/model"
	"dyndnsd/internal/util"
)

var (
	usernameRe = regexp.MustCompile(`^[a-z0-9.-]{1,30}$`)
	// Host labels are stricter than usernames: no dots, no leading or
	// trailing hyphen.
	hostnameRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)
)

type SignupHandler struct {
	db     *database.DB
	mailer *mail.Mailer
	tmpl   *template.Template
	log    *zap.Logger
}

func NewSignupHandler(db *database.DB, mailer *mail.Mailer, tmpl *template.Template, log *zap.Logger) *SignupHandler {
	return &SignupHandler{db: db, mailer: mailer, tmpl: tmpl, log: log}
}

func (h *SignupHandler) SignupPage(w http.ResponseWriter, r *http.Request) {
	h.tmpl.ExecuteTemplate(w, "signup.html", nil)
}

func (h *SignupHandler) SignupSubmit(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	username := strings.ToLower(strings.TrimSpace(r.FormValue("username")))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	confirm := r.FormValue("confirm_password")

	if !usernameRe.MatchString(username) {
		h.renderError(w, "Username may only contain lowercase letters, digits, dots and hyphens (max 30)")
		return
	}
	if email == "" || !strings.Contains(email, "@") {
		h.renderError(w, "A valid email address is required")
		return
	}
	if len(password) < 8 {
		h.renderError(w, "Password must be at least 8 characters")
		return
	}
	if password != confirm {
		h.renderError(w, "Passwords do not match")
		return
	}

	if existing, _ := h.db.GetUserByUsername(username); existing != nil {
		h.renderError(w, "Username is already taken")
		return
	}

	authcode := auth.NewToken()
	if err := h.db.CreateUser(username, email, password, false, false, &authcode); err != nil {
		h.renderError(w, "Failed to create account: "+err.Error())
		return
	}

	if err := h.mailer.SendActivation(email, username, authcode); err != nil {
		h.log.Error("failed to send activation mail",
			zap.String("username", username), zap.Error(err))
	}

	_ = h.db.LogAudit(model.AuditEntry{
		Username:  username,
		Action:    "signup",
		IPAddress: util.GetClientIP(r),
	})

	h.tmpl.ExecuteTemplate(w, "signup.html", map[string]interface{}{
		"Done":        true,
		"MailEnabled": h.mailer.Enabled(),
	})
}

// Activate handles the link from the activation mail. The authcode is
// single-use; a second visit reports failure.
func (h *SignupHandler) Activate(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	authcode := r.URL.Query().Get("authcode")

	ok := false
	if username != "" && authcode != "" {
		ok, _ = h.db.ActivateUser(username, authcode)
	}

	if ok {
		_ = h.db.LogAudit(model.AuditEntry{
			Username:  username,
			Action:    "activate",
			IPAddress: util.GetClientIP(r),
		})
	}

	h.tmpl.ExecuteTemplate(w, "signup.html", map[string]interface{}{
		"Activated":        ok,
		"ActivationFailed": !ok,
	})
}

func (h *SignupHandler) renderError(w http.ResponseWriter, msg string) {
	h.tmpl.ExecuteTemplate(w, "signup.html", map[string]string{"Error": msg})
}
